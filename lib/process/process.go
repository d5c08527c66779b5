/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package process runs the podinfo service: it loads the secret material,
// starts the HTTP server and coordinates graceful shutdown.
package process

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gravitational/podinfo/lib/config"
	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/lib/httplib"
	"github.com/gravitational/podinfo/lib/metrics"
	"github.com/gravitational/podinfo/lib/secrets"
	"github.com/gravitational/podinfo/lib/web"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Config is the service process configuration
type Config struct {
	// Config is the service configuration
	*config.Config
	// Loader loads the secret material at startup
	Loader *secrets.Loader
	// Listener overrides the TCP listener the server accepts on.
	// When unset the server listens on the configured port.
	Listener net.Listener
	// Clock is used to compute timestamps and service uptime
	Clock clockwork.Clock
	// DrainDelay is how long the server keeps accepting connections after
	// the readiness probe starts failing
	DrainDelay time.Duration
	// ShutdownTimeout bounds the graceful shutdown of in-flight requests
	ShutdownTimeout time.Duration
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Config == nil {
		return trace.BadParameter("missing parameter Config")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DrainDelay == 0 {
		cfg.DrainDelay = defaults.DrainDelay
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Loader == nil {
		loader, err := secrets.NewLoader(secrets.LoaderConfig{
			SecretARN: cfg.SecretARN,
			Region:    cfg.Region,
		})
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.Loader = loader
	}
	return nil
}

// Process is a running podinfo service instance
type Process struct {
	// FieldLogger allows the process to log messages
	log.FieldLogger
	// cfg is the process configuration
	cfg Config
	// handler is the application API handler
	handler *web.Handler
	// server is the HTTP server fronting the handler
	server *http.Server
}

// New returns a new service process. The secret material is loaded
// before the server starts so the service never serves without it.
func New(ctx context.Context, cfg Config) (*Process, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	loaded := cfg.Loader.Load(ctx)
	handler, err := web.NewHandler(web.Config{
		Config:  cfg.Config,
		Secrets: loaded,
		Clock:   cfg.Clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	logger := log.WithField(trace.Component, constants.ComponentProcess)
	metrics.SetHealthy(true)
	return &Process{
		FieldLogger: logger,
		cfg:         cfg,
		handler:     handler,
		server: &http.Server{
			Addr:         cfg.ListenAddr(),
			Handler:      httplib.Wrap(logger, handler),
			ReadTimeout:  defaults.ReadTimeout,
			WriteTimeout: defaults.WriteTimeout,
			IdleTimeout:  defaults.IdleTimeout,
		},
	}, nil
}

// Handler returns the HTTP handler with the middleware chain applied.
// The Lambda flavor of the service serves this handler through the API
// gateway proxy adapter instead of a TCP listener.
func (p *Process) Handler() http.Handler {
	return p.server.Handler
}

// Serve runs the HTTP server until the context is canceled, then drains
// and shuts the server down. It returns once the server has stopped.
func (p *Process) Serve(ctx context.Context) error {
	listener := p.cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", p.cfg.ListenAddr())
		if err != nil {
			return trace.Wrap(err)
		}
	}

	defer metrics.SetHealthy(false)

	errC := make(chan error, 1)
	go func() {
		errC <- p.server.Serve(listener)
	}()
	p.WithFields(log.Fields{
		"addr":        listener.Addr().String(),
		"environment": p.cfg.Environment,
		"version":     p.cfg.Version,
	}).Info("Server is listening.")

	select {
	case err := <-errC:
		if err != nil && err != http.ErrServerClosed {
			return trace.Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}
	return trace.Wrap(p.shutdown())
}

// shutdown fails the readiness probe, waits out the drain delay so load
// balancers stop routing new connections, then stops the server.
func (p *Process) shutdown() error {
	p.Info("Shutting down.")
	p.handler.SetReady(false)
	p.cfg.Clock.Sleep(p.cfg.DrainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		return trace.Wrap(err)
	}
	p.Info("Server stopped.")
	return nil
}
