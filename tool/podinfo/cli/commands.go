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
	"github.com/gravitational/podinfo/lib/constants"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Application represents the command-line "podinfo" application and
// contains definitions of all its flags, arguments and subcommands
type Application struct {
	*kingpin.Application
	// Debug allows to run the command in debug mode
	Debug *bool
	// VersionCmd outputs the binary version
	VersionCmd VersionCmd
	// ServeCmd runs the HTTP service
	ServeCmd ServeCmd
	// StatusCmd queries the health of a running service
	StatusCmd StatusCmd
	// DrainCmd runs the autoscaling lifecycle agent
	DrainCmd DrainCmd
}

// VersionCmd outputs the binary version
type VersionCmd struct {
	*kingpin.CmdClause
	// Output is the output format
	Output *constants.Format
}

// ServeCmd runs the HTTP service
type ServeCmd struct {
	*kingpin.CmdClause
	// Port overrides the listen port
	Port *string
	// Environment overrides the deployment environment name
	Environment *string
	// LogLevel overrides the logging verbosity
	LogLevel *string
}

// StatusCmd queries the health of a running service
type StatusCmd struct {
	*kingpin.CmdClause
	// URL is the address of the service to query
	URL *string
	// Insecure skips TLS certificate verification
	Insecure *bool
	// Format is the output format
	Format *constants.Format
}

// DrainCmd runs the autoscaling lifecycle agent
type DrainCmd struct {
	*kingpin.CmdClause
	// QueueURL is the SQS queue delivering lifecycle hook notifications
	QueueURL *string
	// TargetGroupARN is the load balancer target group instances drain from
	TargetGroupARN *string
	// Region is the AWS region of the autoscaling group
	Region *string
}
