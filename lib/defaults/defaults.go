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

// Package defaults contains default values shared between podinfo packages.
package defaults

import (
	"time"
)

const (
	// Port is the default HTTP listen port
	Port = "9898"

	// Environment is the default deployment environment name
	Environment = "development"

	// LogLevel is the default logging verbosity
	LogLevel = "info"

	// Version is reported when no build version was stamped
	Version = "dev"

	// BuildMetadataUnknown is reported when build time or commit was not stamped
	BuildMetadataUnknown = "unknown"
)

const (
	// ReadTimeout is the maximum duration for reading an entire request
	ReadTimeout = 15 * time.Second

	// WriteTimeout is the maximum duration before timing out response writes
	WriteTimeout = 15 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on a
	// keep-alive connection
	IdleTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for in-flight requests
	// during graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// DrainDelay is how long the service keeps serving after flipping
	// readiness so load balancers stop routing new connections to it
	DrainDelay = 5 * time.Second
)

const (
	// SecretLoadTimeout bounds the startup secret fetch, retries included
	SecretLoadTimeout = 20 * time.Second

	// SecretRetryInterval is the initial interval between secret fetch retries
	SecretRetryInterval = time.Second

	// TokenLength is the generated length of the application token secret
	TokenLength = 64

	// APIKeyLength is the generated length of the API key secret
	APIKeyLength = 48

	// PasswordLength is the generated length of the database password
	PasswordLength = 32

	// MinTokenLength is the shortest token accepted by secret validation
	MinTokenLength = 16

	// MinAPIKeyLength is the shortest API key accepted by secret validation
	MinAPIKeyLength = 16

	// MinPasswordLength is the shortest database password accepted by
	// secret validation
	MinPasswordLength = 8
)

const (
	// HookCheckTimeout bounds the smoke checks a deployment hook runs
	// against a new task set before allowing traffic
	HookCheckTimeout = 2 * time.Minute

	// HookRetryInterval is the initial interval between hook smoke check
	// attempts
	HookRetryInterval = 2 * time.Second
)

const (
	// LifecyclePollInterval is how long a lifecycle queue receive waits
	// for messages
	LifecyclePollInterval = 5 * time.Second

	// LifecycleVisibilityTimeout hides an in-flight lifecycle message from
	// other consumers, in seconds
	LifecycleVisibilityTimeout = 30

	// LifecycleHeartbeatInterval is the interval between lifecycle action
	// heartbeats while an instance drains
	LifecycleHeartbeatInterval = 25 * time.Second

	// LifecycleEventTimeout is the maximum time to keep a lifecycle action
	// alive with heartbeats
	LifecycleEventTimeout = 110 * time.Minute

	// DrainPollInterval is the interval between target health polls while
	// waiting for a target to drain or become healthy
	DrainPollInterval = 10 * time.Second

	// DrainTimeout is the maximum time to wait for a target to finish
	// draining before completing the lifecycle action anyway
	DrainTimeout = 5 * time.Minute
)

const (
	// ClientTimeout is the default timeout of the API client
	ClientTimeout = 10 * time.Second
)
