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

// Package constants contains global constants shared between podinfo
// packages and binaries.
package constants

const (
	// ComponentWeb is the web service component
	ComponentWeb = "web"

	// ComponentProcess is the service process supervisor component
	ComponentProcess = "process"

	// ComponentSecrets is the secrets loading component
	ComponentSecrets = "secrets"

	// ComponentRotation is the secret rotation component
	ComponentRotation = "rotation"

	// ComponentHooks is the deployment lifecycle hooks component
	ComponentHooks = "hooks"

	// ComponentLifecycle is the instance lifecycle draining component
	ComponentLifecycle = "lifecycle"

	// ComponentCLI is the command line client component
	ComponentCLI = "cli"

	// ComponentClient is the API client component
	ComponentClient = "client"
)

const (
	// FieldCorrelationID identifies the request correlation ID in log messages
	FieldCorrelationID = "correlation_id"

	// FieldSecretID identifies the secret in log messages
	FieldSecretID = "secret_id"

	// FieldVersionID identifies the secret version in log messages
	FieldVersionID = "version_id"

	// FieldRotationStep identifies the rotation protocol step in log messages
	FieldRotationStep = "step"

	// FieldDeploymentID identifies the deployment in log messages
	FieldDeploymentID = "deployment_id"

	// FieldInstanceID identifies the EC2 instance in log messages
	FieldInstanceID = "instance_id"
)

const (
	// HeaderCorrelationID is the header carrying the request correlation ID
	HeaderCorrelationID = "X-Correlation-ID"

	// ServiceName is the canonical name of the application
	ServiceName = "podinfo"

	// WelcomeMessage is served by the root endpoint
	WelcomeMessage = "Welcome to Podinfo"
)

const (
	// StatusHealthy is reported by the liveness endpoint
	StatusHealthy = "healthy"

	// StatusReady is reported by the readiness endpoint when the service
	// accepts traffic
	StatusReady = "ready"

	// StatusDraining is reported by the readiness endpoint once shutdown
	// has started
	StatusDraining = "draining"
)

const (
	// SecretSourceAWS marks secrets read from AWS Secrets Manager
	SecretSourceAWS = "aws-secrets-manager"

	// SecretSourceDefault marks built-in development secrets
	SecretSourceDefault = "default"

	// SecretSourceFallback marks placeholder secrets used after a failed
	// Secrets Manager fetch
	SecretSourceFallback = "fallback"
)

const (
	// RotationStepCreate creates the new pending secret version
	RotationStepCreate = "createSecret"

	// RotationStepSet configures dependent services with the pending secret
	RotationStepSet = "setSecret"

	// RotationStepTest verifies the pending secret version
	RotationStepTest = "testSecret"

	// RotationStepFinish promotes the pending version to current
	RotationStepFinish = "finishSecret"

	// StageCurrent is the Secrets Manager staging label of the active version
	StageCurrent = "AWSCURRENT"

	// StagePending is the Secrets Manager staging label of the version
	// under rotation
	StagePending = "AWSPENDING"

	// StagePrevious is the Secrets Manager staging label of the retired version
	StagePrevious = "AWSPREVIOUS"
)

const (
	// InstanceLaunching is the lifecycle transition of an instance joining
	// an autoscaling group
	InstanceLaunching = "autoscaling:EC2_INSTANCE_LAUNCHING"

	// InstanceTerminating is the lifecycle transition of an instance leaving
	// an autoscaling group
	InstanceTerminating = "autoscaling:EC2_INSTANCE_TERMINATING"

	// LifecycleActionContinue tells autoscaling to proceed with the
	// lifecycle transition
	LifecycleActionContinue = "CONTINUE"

	// LifecycleActionAbandon tells autoscaling to abandon the lifecycle
	// transition
	LifecycleActionAbandon = "ABANDON"
)

const (
	// EnvPort overrides the service listen port
	EnvPort = "PORT"

	// EnvEnvironment sets the deployment environment name
	EnvEnvironment = "ENVIRONMENT"

	// EnvLogLevel sets the logging verbosity
	EnvLogLevel = "LOG_LEVEL"

	// EnvVersion carries the build version into the container
	EnvVersion = "VERSION"

	// EnvBuildTime carries the build timestamp into the container
	EnvBuildTime = "BUILD_TIME"

	// EnvCommit carries the git commit into the container
	EnvCommit = "COMMIT"

	// EnvSecretARN points the service at its Secrets Manager secret
	EnvSecretARN = "SECRET_ARN"

	// EnvServiceURL points deployment hooks at the service under test
	EnvServiceURL = "SERVICE_URL"

	// EnvAWSRegion is the standard AWS region variable
	EnvAWSRegion = "AWS_REGION"
)

// Format is the type for CLI output format
type Format string

// Set sets the format value
func (f *Format) Set(v string) error {
	*f = Format(v)
	return nil
}

// String returns the format string representation
func (f *Format) String() string {
	return string(*f)
}

var (
	// EncodingJSON is for the JSON encoding format
	EncodingJSON Format = "json"
	// EncodingText is for the plain-text encoding format
	EncodingText Format = "text"
	// EncodingYAML is for the YAML encoding format
	EncodingYAML Format = "yaml"
	// OutputFormats is a list of recognized output formats for podinfo CLI commands
	OutputFormats = []Format{
		EncodingText,
		EncodingJSON,
		EncodingYAML,
	}
)
