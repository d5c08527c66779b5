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

// Package config defines the service configuration and its environment
// parsing.
package config

import (
	"os"
	"strconv"

	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/lib/version"

	"github.com/gravitational/configure"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config is the podinfo service configuration. All values come from the
// container environment, unset values are filled with development defaults
// so the service starts without any configuration at all.
type Config struct {
	// Port is the HTTP listen port
	Port string `env:"PORT" yaml:"port"`
	// Environment is the deployment environment name reported by the
	// info endpoints
	Environment string `env:"ENVIRONMENT" yaml:"environment"`
	// LogLevel sets the logging verbosity
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level"`
	// Version overrides the build version reported by the service
	Version string `env:"VERSION" yaml:"version"`
	// BuildTime overrides the build timestamp reported by the service
	BuildTime string `env:"BUILD_TIME" yaml:"build_time"`
	// Commit overrides the git commit reported by the service
	Commit string `env:"COMMIT" yaml:"commit"`
	// SecretARN is the Secrets Manager secret the service loads at
	// startup, secrets fall back to development defaults when empty
	SecretARN string `env:"SECRET_ARN" yaml:"secret_arn"`
	// Region is the AWS region used for service clients
	Region string `env:"AWS_REGION" yaml:"region"`
}

// FromEnv returns configuration parsed from the process environment.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := configure.ParseEnv(&cfg); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &cfg, nil
}

// CheckAndSetDefaults validates the configuration and fills in defaults.
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return trace.BadParameter("invalid listen port %q", cfg.Port)
	}
	if cfg.Environment == "" {
		cfg.Environment = defaults.Environment
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return trace.BadParameter("invalid log level %q", cfg.LogLevel)
	}
	ver := version.Get()
	if cfg.Version == "" {
		cfg.Version = ver.Version
	}
	if cfg.BuildTime == "" {
		cfg.BuildTime = ver.BuildTime
	}
	if cfg.Commit == "" {
		cfg.Commit = ver.GitCommit
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (cfg *Config) ListenAddr() string {
	return ":" + cfg.Port
}

// SetupLogging configures the process logger according to the configured
// verbosity.
func (cfg *Config) SetupLogging() {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
