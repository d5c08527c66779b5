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

package web

import "github.com/gravitational/podinfo/lib/secrets"

// StatusResponse is returned by the health and readiness endpoints
type StatusResponse struct {
	// Status is one of healthy, ready or draining
	Status string `json:"status"`
}

// HomeResponse is returned by the welcome endpoint
type HomeResponse struct {
	// Message is the welcome message
	Message string `json:"message"`
	// Version is the running service version
	Version string `json:"version"`
	// Environment is the deployment environment
	Environment string `json:"environment"`
	// Hostname is the hostname of the serving instance
	Hostname string `json:"hostname"`
	// Timestamp is the server time in RFC3339 format
	Timestamp string `json:"timestamp"`
}

// InfoResponse describes the runtime of the serving instance
type InfoResponse struct {
	// Hostname is the hostname of the serving instance
	Hostname string `json:"hostname"`
	// Version is the running service version
	Version string `json:"version"`
	// Environment is the deployment environment
	Environment string `json:"environment"`
	// Uptime is how long the instance has been serving
	Uptime string `json:"uptime"`
	// Memory is the allocated heap in human readable form
	Memory string `json:"memory"`
	// NumGoroutine is the number of live goroutines
	NumGoroutine int `json:"num_goroutine"`
	// NumCPU is the number of usable CPUs
	NumCPU int `json:"num_cpu"`
	// OS is the runtime operating system
	OS string `json:"os"`
	// Arch is the runtime architecture
	Arch string `json:"arch"`
	// GoVersion is the version of the Go runtime
	GoVersion string `json:"go_version"`
}

// DataResponse is returned by the sample data endpoint
type DataResponse struct {
	// ID is the correlation ID of the request
	ID string `json:"id"`
	// Message is the sample payload
	Message string `json:"message"`
	// Timestamp is the server time in RFC3339 format
	Timestamp string `json:"timestamp"`
	// Environment is the deployment environment
	Environment string `json:"environment"`
	// Version is the running service version
	Version string `json:"version"`
}

// SecretResponse reports the status of the loaded secret material.
// It carries no secret values.
type SecretResponse struct {
	// Message describes the outcome
	Message string `json:"message"`
	// Timestamp is the server time in RFC3339 format
	Timestamp string `json:"timestamp"`
	// CorrelationID is the correlation ID of the request
	CorrelationID string `json:"correlation_id"`
	// Environment is the deployment environment
	Environment string `json:"environment"`
	// SecretStatus reports which secret fields are loaded and from where
	SecretStatus secrets.Status `json:"secret_status"`
}
