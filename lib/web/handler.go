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

// Package web implements the podinfo application HTTP API.
package web

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gravitational/podinfo/lib/config"
	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/httplib"
	"github.com/gravitational/podinfo/lib/metrics"
	"github.com/gravitational/podinfo/lib/secrets"
	"github.com/gravitational/podinfo/lib/version"

	"github.com/dustin/go-humanize"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
)

// Handler serves the podinfo application API
type Handler struct {
	// Router routes application requests
	httprouter.Router
	// cfg is the handler configuration
	cfg Config
	// FieldLogger allows the handler to log messages
	log.FieldLogger

	// mu guards ready
	mu sync.RWMutex
	// ready is flipped off when the service starts draining
	ready bool

	// hostname is the hostname reported by the info endpoints
	hostname string
	// started is when the handler was created, used to compute uptime
	started time.Time
}

// Config is the web handler configuration
type Config struct {
	// Config is the service configuration
	*config.Config
	// Secrets is the secret material loaded at startup
	Secrets secrets.Loaded
	// Clock is used to compute timestamps and service uptime
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Config == nil {
		return trace.BadParameter("missing parameter Config")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// NewHandler returns a new application handler
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	h := &Handler{
		cfg:         cfg,
		FieldLogger: log.WithField(trace.Component, constants.ComponentWeb),
		ready:       true,
		hostname:    hostname,
		started:     cfg.Clock.Now(),
	}

	// health endpoints
	h.HandlerFunc("GET", "/healthz", h.health)
	h.HandlerFunc("GET", "/readyz", h.readiness)

	// application endpoints
	h.HandlerFunc("GET", "/", h.home)
	h.HandlerFunc("GET", "/version", h.version)
	h.HandlerFunc("GET", "/info", h.info)
	h.HandlerFunc("GET", "/api/data", h.data)
	h.HandlerFunc("GET", "/api/secret", h.secretStatus)

	// metrics exposition
	h.Handler("GET", "/metrics", metrics.Handler())

	h.NotFound = http.HandlerFunc(h.notFound)

	return h, nil
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	err := trace.NotFound("%v %v is not recognized", r.Method, r.URL.String())
	h.WithError(err).Info(err.Error())
	trace.WriteError(w, trace.Unwrap(err))
}

// SetReady flips the readiness of the service. The readiness endpoint
// reports draining once set to false so load balancers stop routing new
// connections before the listener closes.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Ready reports whether the service accepts traffic.
func (h *Handler) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

/* health is used by load balancers and orchestrators to validate that the
   process is alive

     GET /healthz
*/
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httplib.ReplyJSON(w, http.StatusOK, StatusResponse{
		Status: constants.StatusHealthy,
	})
}

/* readiness reports whether the service accepts traffic, it returns 503
   once the service starts draining

     GET /readyz
*/
func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	if !h.Ready() {
		httplib.ReplyJSON(w, http.StatusServiceUnavailable, StatusResponse{
			Status: constants.StatusDraining,
		})
		return
	}
	httplib.ReplyJSON(w, http.StatusOK, StatusResponse{
		Status: constants.StatusReady,
	})
}

/* home is the welcome endpoint

     GET /
*/
func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	httplib.ReplyJSON(w, http.StatusOK, HomeResponse{
		Message:     constants.WelcomeMessage,
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		Hostname:    h.hostname,
		Timestamp:   h.now(),
	})
}

/* version reports the build metadata of the running binary

     GET /version
*/
func (h *Handler) version(w http.ResponseWriter, r *http.Request) {
	httplib.ReplyJSON(w, http.StatusOK, version.Info{
		Version:   h.cfg.Version,
		GitCommit: h.cfg.Commit,
		BuildTime: h.cfg.BuildTime,
		GoVersion: runtime.Version(),
	})
}

/* info reports runtime details of the running instance

     GET /info
*/
func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	httplib.ReplyJSON(w, http.StatusOK, InfoResponse{
		Hostname:     h.hostname,
		Version:      h.cfg.Version,
		Environment:  h.cfg.Environment,
		Uptime:       h.uptime().String(),
		Memory:       humanize.Bytes(stats.Alloc),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		GoVersion:    runtime.Version(),
	})
}

/* data serves the demo business payload

     GET /api/data
*/
func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	httplib.ReplyJSON(w, http.StatusOK, DataResponse{
		ID:          httplib.CorrelationID(r.Context()),
		Message:     "Sample data from Podinfo",
		Timestamp:   h.now(),
		Environment: h.cfg.Environment,
		Version:     h.cfg.Version,
	})
}

/* secretStatus reports which secret fields were loaded without exposing
   their values

     GET /api/secret
*/
func (h *Handler) secretStatus(w http.ResponseWriter, r *http.Request) {
	httplib.ReplyJSON(w, http.StatusOK, SecretResponse{
		Message:       "Secret data retrieved successfully",
		Timestamp:     h.now(),
		CorrelationID: httplib.CorrelationID(r.Context()),
		Environment:   h.cfg.Environment,
		SecretStatus:  h.cfg.Secrets.Status(),
	})
}

func (h *Handler) now() string {
	return h.cfg.Clock.Now().UTC().Format(time.RFC3339)
}

func (h *Handler) uptime() time.Duration {
	return h.cfg.Clock.Now().Sub(h.started).Truncate(time.Second)
}
