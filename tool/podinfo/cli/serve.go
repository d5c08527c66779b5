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

package cli

import (
	"context"

	"github.com/gravitational/podinfo/lib/config"
	"github.com/gravitational/podinfo/lib/process"
	"github.com/gravitational/podinfo/lib/utils"

	"github.com/gravitational/trace"
)

// serveOverrides are command line overrides of the environment
// configuration
type serveOverrides struct {
	port        string
	environment string
	logLevel    string
}

// serve runs the podinfo HTTP service until a termination signal arrives
func serve(ctx context.Context, overrides serveOverrides) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return trace.Wrap(err)
	}
	if overrides.port != "" {
		cfg.Port = overrides.port
	}
	if overrides.environment != "" {
		cfg.Environment = overrides.environment
	}
	if overrides.logLevel != "" {
		cfg.LogLevel = overrides.logLevel
	}
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	cfg.SetupLogging()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	utils.WatchTerminationSignals(ctx, cancel, log)

	proc, err := process.New(ctx, process.Config{Config: cfg})
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(proc.Serve(ctx))
}
