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

// Package rotation implements the four step AWS Secrets Manager rotation
// protocol for the podinfo application secret.
//
// Rotation moves through createSecret, setSecret, testSecret and
// finishSecret. Every step is idempotent: Secrets Manager retries steps
// on failure and may deliver a step more than once for the same version
// token.
package rotation

import (
	"context"
	"encoding/json"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/secrets"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// SecretsManager is the subset of the AWS Secrets Manager API used by the
// rotator
type SecretsManager interface {
	DescribeSecretWithContext(aws.Context, *secretsmanager.DescribeSecretInput, ...request.Option) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValueWithContext(aws.Context, *secretsmanager.GetSecretValueInput, ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValueWithContext(aws.Context, *secretsmanager.PutSecretValueInput, ...request.Option) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecretVersionStageWithContext(aws.Context, *secretsmanager.UpdateSecretVersionStageInput, ...request.Option) (*secretsmanager.UpdateSecretVersionStageOutput, error)
}

// Config is the rotator configuration
type Config struct {
	// Service is the Secrets Manager client, constructed from ambient
	// credentials when nil
	Service SecretsManager
	// Region is the AWS region of the secret
	Region string
	// FieldLogger is the logger the rotator logs with
	log.FieldLogger
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.Service == nil {
		awsConfig := aws.Config{}
		if cfg.Region != "" {
			awsConfig.Region = aws.String(cfg.Region)
		}
		sess, err := session.NewSession(&awsConfig)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.Service = secretsmanager.New(sess)
	}
	if cfg.FieldLogger == nil {
		cfg.FieldLogger = log.WithField(trace.Component, constants.ComponentRotation)
	}
	return nil
}

// Rotator executes secret rotation steps
type Rotator struct {
	// Config is the rotator configuration
	Config
}

// New returns a new rotator
func New(cfg Config) (*Rotator, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Rotator{Config: cfg}, nil
}

// Request describes a single rotation step invocation
type Request struct {
	// SecretID is the ARN of the secret under rotation
	SecretID string
	// Token is the client request token naming the new secret version
	Token string
	// Step is the rotation step to execute
	Step string
}

// Check validates the request
func (r Request) Check() error {
	if r.SecretID == "" {
		return trace.BadParameter("missing parameter SecretID")
	}
	if r.Token == "" {
		return trace.BadParameter("missing parameter Token")
	}
	if r.Step == "" {
		return trace.BadParameter("missing parameter Step")
	}
	return nil
}

// Rotate executes a single step of the rotation protocol. It refuses to
// run when rotation is disabled on the secret or when the version named
// by the request token is not staged for rotation.
func (r *Rotator) Rotate(ctx context.Context, req Request) error {
	if err := req.Check(); err != nil {
		return trace.Wrap(err)
	}
	logger := r.WithFields(log.Fields{
		constants.FieldSecretID:     req.SecretID,
		constants.FieldVersionID:    req.Token,
		constants.FieldRotationStep: req.Step,
	})
	done, err := r.describe(ctx, req)
	if err != nil {
		return trace.Wrap(err)
	}
	if done {
		logger.Info("Secret version is already current.")
		return nil
	}
	switch req.Step {
	case constants.RotationStepCreate:
		return trace.Wrap(r.createSecret(ctx, req, logger))
	case constants.RotationStepSet:
		return trace.Wrap(r.setSecret(ctx, req, logger))
	case constants.RotationStepTest:
		return trace.Wrap(r.testSecret(ctx, req, logger))
	case constants.RotationStepFinish:
		return trace.Wrap(r.finishSecret(ctx, req, logger))
	}
	return trace.BadParameter("unsupported rotation step %q", req.Step)
}

// describe validates the secret is set up for rotation and reports
// whether the version named by the request token is already current
func (r *Rotator) describe(ctx context.Context, req Request) (done bool, err error) {
	out, err := r.Service.DescribeSecretWithContext(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(req.SecretID),
	})
	if err != nil {
		return false, secrets.ConvertError(err)
	}
	if !aws.BoolValue(out.RotationEnabled) {
		return false, trace.CompareFailed("rotation is not enabled for secret %v", req.SecretID)
	}
	stages, ok := out.VersionIdsToStages[req.Token]
	if !ok {
		return false, trace.NotFound("secret %v has no version %v", req.SecretID, req.Token)
	}
	if hasStage(stages, constants.StageCurrent) {
		return true, nil
	}
	if !hasStage(stages, constants.StagePending) {
		return false, trace.CompareFailed("secret version %v is not staged for rotation", req.Token)
	}
	return false, nil
}

// createSecret generates new secret material from the current version and
// stores it as the pending version. The step is a no-op when the pending
// version already exists.
func (r *Rotator) createSecret(ctx context.Context, req Request, logger log.FieldLogger) error {
	_, err := r.pendingSecret(ctx, req)
	if err == nil {
		logger.Info("Pending secret version already exists.")
		return nil
	}
	if !trace.IsNotFound(err) {
		return trace.Wrap(err)
	}
	current, err := r.currentSecret(ctx, req)
	if err != nil {
		return trace.Wrap(err)
	}
	rotated, err := secrets.Rotate(*current)
	if err != nil {
		return trace.Wrap(err)
	}
	payload, err := secrets.Marshal(*rotated)
	if err != nil {
		return trace.Wrap(err)
	}
	_, err = r.Service.PutSecretValueWithContext(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(req.SecretID),
		ClientRequestToken: aws.String(req.Token),
		SecretString:       aws.String(string(payload)),
		VersionStages:      aws.StringSlice([]string{constants.StagePending}),
	})
	if err != nil {
		return secrets.ConvertError(err)
	}
	logger.Info("Created pending secret version.")
	return nil
}

// setSecret would install the pending credentials into downstream
// systems. The application owns no database users or partner accounts,
// so the step only verifies the pending version exists.
func (r *Rotator) setSecret(ctx context.Context, req Request, logger log.FieldLogger) error {
	if _, err := r.pendingSecret(ctx, req); err != nil {
		return trace.Wrap(err)
	}
	logger.Info("No downstream systems to configure.")
	return nil
}

// testSecret validates the pending secret version against the secret
// schema before it can become current
func (r *Rotator) testSecret(ctx context.Context, req Request, logger log.FieldLogger) error {
	payload, err := r.pendingSecret(ctx, req)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := secrets.Validate(payload); err != nil {
		return trace.Wrap(err)
	}
	logger.Info("Pending secret version passed validation.")
	return nil
}

// finishSecret promotes the pending version to current and demotes the
// previously current version in the same call
func (r *Rotator) finishSecret(ctx context.Context, req Request, logger log.FieldLogger) error {
	out, err := r.Service.DescribeSecretWithContext(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(req.SecretID),
	})
	if err != nil {
		return secrets.ConvertError(err)
	}
	var current string
	for version, stages := range out.VersionIdsToStages {
		if hasStage(stages, constants.StageCurrent) {
			current = version
			break
		}
	}
	if current == req.Token {
		logger.Info("Secret version is already current.")
		return nil
	}
	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(req.SecretID),
		VersionStage:    aws.String(constants.StageCurrent),
		MoveToVersionId: aws.String(req.Token),
	}
	if current != "" {
		input.RemoveFromVersionId = aws.String(current)
	}
	if _, err := r.Service.UpdateSecretVersionStageWithContext(ctx, input); err != nil {
		return secrets.ConvertError(err)
	}
	logger.WithField("previous", current).Info("Promoted pending secret version to current.")
	return nil
}

// currentSecret fetches and decodes the current secret version
func (r *Rotator) currentSecret(ctx context.Context, req Request) (*secrets.Secrets, error) {
	out, err := r.Service.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(req.SecretID),
		VersionStage: aws.String(constants.StageCurrent),
	})
	if err != nil {
		return nil, secrets.ConvertError(err)
	}
	var current secrets.Secrets
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &current); err != nil {
		return nil, trace.Wrap(err, "failed to unmarshal current secret version")
	}
	return &current, nil
}

// pendingSecret fetches the raw payload of the pending secret version
func (r *Rotator) pendingSecret(ctx context.Context, req Request) ([]byte, error) {
	out, err := r.Service.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(req.SecretID),
		VersionId:    aws.String(req.Token),
		VersionStage: aws.String(constants.StagePending),
	})
	if err != nil {
		return nil, secrets.ConvertError(err)
	}
	return []byte(aws.StringValue(out.SecretString)), nil
}

func hasStage(stages []*string, stage string) bool {
	for _, s := range stages {
		if aws.StringValue(s) == stage {
			return true
		}
	}
	return false
}
