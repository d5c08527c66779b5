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

// Package hooks implements the CodeDeploy pre traffic validation of a
// podinfo deployment: the new task set is probed before the deployment
// is allowed to shift production traffic onto it.
package hooks

import (
	"context"
	"net/http"
	"time"

	"github.com/gravitational/podinfo/lib/client"
	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/lib/utils"
	"github.com/gravitational/podinfo/lib/version"
	"github.com/gravitational/podinfo/lib/web"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/codedeploy"
	"github.com/cenkalti/backoff"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// CodeDeploy is the subset of the AWS CodeDeploy API used by the
// validator
type CodeDeploy interface {
	PutLifecycleEventHookExecutionStatusWithContext(aws.Context, *codedeploy.PutLifecycleEventHookExecutionStatusInput, ...request.Option) (*codedeploy.PutLifecycleEventHookExecutionStatusOutput, error)
}

// Checker probes a deployed service instance
type Checker interface {
	// Health checks the liveness endpoint
	Health(ctx context.Context) error
	// Ready checks the readiness endpoint
	Ready(ctx context.Context) error
	// Version returns the build metadata of the deployment
	Version(ctx context.Context) (*version.Info, error)
	// SecretStatus reports which secret fields the deployment loaded
	SecretStatus(ctx context.Context) (*web.SecretResponse, error)
}

// Config is the pre traffic validator configuration
type Config struct {
	// ServiceURL is the base URL of the deployment under validation
	ServiceURL string
	// Service is the CodeDeploy client, constructed from ambient
	// credentials when nil
	Service CodeDeploy
	// Checker is the API client used to probe the deployment
	Checker Checker
	// Region is the AWS region of the deployment
	Region string
	// Timeout bounds the validation of the deployment
	Timeout time.Duration
	// RetryInterval is the initial pause between failed validation
	// attempts, subsequent pauses back off exponentially
	RetryInterval time.Duration
	// FieldLogger is the logger the validator logs with
	log.FieldLogger
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.ServiceURL == "" {
		return trace.BadParameter("missing parameter ServiceURL")
	}
	if cfg.Service == nil {
		awsConfig := aws.Config{}
		if cfg.Region != "" {
			awsConfig.Region = aws.String(cfg.Region)
		}
		sess, err := session.NewSession(&awsConfig)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.Service = codedeploy.New(sess)
	}
	if cfg.Checker == nil {
		checker, err := client.New(cfg.ServiceURL, client.HTTPClient(&http.Client{
			Timeout: defaults.ClientTimeout,
		}))
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.Checker = checker
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.HookCheckTimeout
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaults.HookRetryInterval
	}
	if cfg.FieldLogger == nil {
		cfg.FieldLogger = log.WithField(trace.Component, constants.ComponentHooks)
	}
	return nil
}

// Validator runs the pre traffic smoke checks of a deployment and
// reports the outcome to CodeDeploy
type Validator struct {
	// Config is the validator configuration
	Config
}

// New returns a new deployment validator
func New(cfg Config) (*Validator, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Validator{Config: cfg}, nil
}

// Handle validates the deployment named by the event and reports the
// outcome to CodeDeploy. The report is attempted for failed validations
// as well so the deployment rolls back instead of hanging until its
// hook timeout.
func (v *Validator) Handle(ctx context.Context, event events.CodeDeployLifecycleEvent) error {
	logger := v.WithField(constants.FieldDeploymentID, event.DeploymentID)
	logger.Info("Validating deployment before traffic shift.")

	status := codedeploy.LifecycleEventStatusSucceeded
	err := v.Validate(ctx)
	if err != nil {
		logger.WithError(err).Warn("Deployment failed validation.")
		status = codedeploy.LifecycleEventStatusFailed
	} else {
		logger.Info("Deployment passed validation.")
	}

	_, reportErr := v.Service.PutLifecycleEventHookExecutionStatusWithContext(ctx,
		&codedeploy.PutLifecycleEventHookExecutionStatusInput{
			DeploymentId:                  aws.String(event.DeploymentID),
			LifecycleEventHookExecutionId: aws.String(event.LifecycleEventHookExecutionID),
			Status:                        aws.String(status),
		})
	if reportErr != nil {
		return trace.Wrap(reportErr, "failed to report %v to CodeDeploy", status)
	}
	return trace.Wrap(err)
}

// Validate probes the deployment until it passes all smoke checks or the
// validation timeout expires. Failed attempts back off exponentially to
// tolerate cold starts of the new task set.
func (v *Validator) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()
	interval := backoff.NewExponentialBackOff()
	interval.InitialInterval = v.RetryInterval
	interval.MaxElapsedTime = v.Timeout
	err := utils.RetryWithInterval(ctx, interval, func() error {
		return v.check(ctx)
	})
	return trace.Wrap(err)
}

// check runs a single round of smoke checks against the deployment
func (v *Validator) check(ctx context.Context) error {
	if err := v.Checker.Health(ctx); err != nil {
		return trace.Wrap(err, "health check failed")
	}
	if err := v.Checker.Ready(ctx); err != nil {
		return trace.Wrap(err, "readiness check failed")
	}
	info, err := v.Checker.Version(ctx)
	if err != nil {
		return trace.Wrap(err, "version check failed")
	}
	if info.Version == "" {
		return trace.BadParameter("deployment reports an empty version")
	}
	status, err := v.Checker.SecretStatus(ctx)
	if err != nil {
		return trace.Wrap(err, "secret check failed")
	}
	if !status.SecretStatus.SuperSecretTokenLoaded ||
		!status.SecretStatus.DatabaseURLLoaded ||
		!status.SecretStatus.APIKeyLoaded {
		return trace.BadParameter("deployment is missing secret material")
	}
	return nil
}
