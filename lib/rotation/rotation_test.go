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

package rotation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/secrets"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/gravitational/trace"
	"gopkg.in/check.v1"
)

func TestRotation(t *testing.T) { check.TestingT(t) }

type RotationSuite struct {
	service *fakeSecretsManager
	rotator *Rotator
}

var _ = check.Suite(&RotationSuite{})

const testSecretARN = "arn:aws:secretsmanager:us-west-2:123456789012:secret:podinfo"

func (s *RotationSuite) SetUpTest(c *check.C) {
	s.service = &fakeSecretsManager{
		rotationEnabled: true,
		stages: map[string][]string{
			"v1": {constants.StageCurrent},
			"v2": {constants.StagePending},
		},
		values: map[string]string{
			"v1": mustMarshal(c, secrets.DevSecrets()),
		},
	}
	rotator, err := New(Config{Service: s.service})
	c.Assert(err, check.IsNil)
	s.rotator = rotator
}

func (s *RotationSuite) TestRotatesThroughAllSteps(c *check.C) {
	steps := []string{
		constants.RotationStepCreate,
		constants.RotationStepSet,
		constants.RotationStepTest,
		constants.RotationStepFinish,
	}
	for _, step := range steps {
		err := s.rotator.Rotate(context.TODO(), Request{
			SecretID: testSecretARN,
			Token:    "v2",
			Step:     step,
		})
		c.Assert(err, check.IsNil, check.Commentf("step %v", step))
	}

	// the pending version became current and displaced the old one
	c.Assert(s.service.hasStage("v2", constants.StageCurrent), check.Equals, true)
	c.Assert(s.service.hasStage("v1", constants.StageCurrent), check.Equals, false)

	// the new version carries fresh material that passes validation
	payload := []byte(s.service.values["v2"])
	c.Assert(secrets.Validate(payload), check.IsNil)
	var rotated secrets.Secrets
	c.Assert(json.Unmarshal(payload, &rotated), check.IsNil)
	c.Assert(rotated.SuperSecretToken, check.Not(check.Equals), secrets.DevSecrets().SuperSecretToken)
}

func (s *RotationSuite) TestCreateIsIdempotent(c *check.C) {
	req := Request{SecretID: testSecretARN, Token: "v2", Step: constants.RotationStepCreate}
	c.Assert(s.rotator.Rotate(context.TODO(), req), check.IsNil)
	created := s.service.values["v2"]
	c.Assert(created, check.Not(check.Equals), "")

	// a retried create leaves the existing pending version alone
	c.Assert(s.rotator.Rotate(context.TODO(), req), check.IsNil)
	c.Assert(s.service.values["v2"], check.Equals, created)
}

func (s *RotationSuite) TestFinishIsIdempotent(c *check.C) {
	for _, step := range []string{constants.RotationStepCreate, constants.RotationStepFinish} {
		err := s.rotator.Rotate(context.TODO(), Request{
			SecretID: testSecretARN,
			Token:    "v2",
			Step:     step,
		})
		c.Assert(err, check.IsNil)
	}
	promoted := s.service.values["v2"]

	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     constants.RotationStepFinish,
	})
	c.Assert(err, check.IsNil)
	c.Assert(s.service.values["v2"], check.Equals, promoted)
	c.Assert(s.service.hasStage("v2", constants.StageCurrent), check.Equals, true)
}

func (s *RotationSuite) TestRefusesWhenRotationDisabled(c *check.C) {
	s.service.rotationEnabled = false
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     constants.RotationStepCreate,
	})
	c.Assert(trace.IsCompareFailed(err), check.Equals, true, check.Commentf("%v", err))
}

func (s *RotationSuite) TestRefusesUnknownVersion(c *check.C) {
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v9",
		Step:     constants.RotationStepCreate,
	})
	c.Assert(trace.IsNotFound(err), check.Equals, true, check.Commentf("%v", err))
}

func (s *RotationSuite) TestRefusesUnstagedVersion(c *check.C) {
	s.service.stages["v2"] = []string{constants.StagePrevious}
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     constants.RotationStepCreate,
	})
	c.Assert(trace.IsCompareFailed(err), check.Equals, true, check.Commentf("%v", err))
}

func (s *RotationSuite) TestSkipsVersionAlreadyCurrent(c *check.C) {
	s.service.stages["v2"] = []string{constants.StageCurrent}
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     constants.RotationStepCreate,
	})
	c.Assert(err, check.IsNil)
	// nothing was generated for the already promoted version
	c.Assert(s.service.values["v2"], check.Equals, "")
}

func (s *RotationSuite) TestRejectsInvalidPendingVersion(c *check.C) {
	s.service.values["v2"] = mustMarshal(c, secrets.Secrets{
		SuperSecretToken: "short",
		DatabaseURL:      "postgresql://app:longenoughpassword@db:5432/podinfo",
		APIKey:           "long-enough-api-key-value",
	})
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     constants.RotationStepTest,
	})
	c.Assert(trace.IsBadParameter(err), check.Equals, true, check.Commentf("%v", err))
}

func (s *RotationSuite) TestRejectsUnsupportedStep(c *check.C) {
	err := s.rotator.Rotate(context.TODO(), Request{
		SecretID: testSecretARN,
		Token:    "v2",
		Step:     "deleteSecret",
	})
	c.Assert(trace.IsBadParameter(err), check.Equals, true, check.Commentf("%v", err))
}

func mustMarshal(c *check.C, value secrets.Secrets) string {
	payload, err := secrets.Marshal(value)
	c.Assert(err, check.IsNil)
	return string(payload)
}

// fakeSecretsManager keeps secret versions and staging labels in memory
type fakeSecretsManager struct {
	rotationEnabled bool
	// stages maps version id to its staging labels
	stages map[string][]string
	// values maps version id to the stored payload
	values map[string]string
}

func (f *fakeSecretsManager) DescribeSecretWithContext(ctx aws.Context, input *secretsmanager.DescribeSecretInput, opts ...request.Option) (*secretsmanager.DescribeSecretOutput, error) {
	versions := make(map[string][]*string)
	for version, stages := range f.stages {
		versions[version] = aws.StringSlice(stages)
	}
	return &secretsmanager.DescribeSecretOutput{
		ARN:                input.SecretId,
		RotationEnabled:    aws.Bool(f.rotationEnabled),
		VersionIdsToStages: versions,
	}, nil
}

func (f *fakeSecretsManager) GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	version := aws.StringValue(input.VersionId)
	if version == "" {
		version = f.versionWithStage(aws.StringValue(input.VersionStage))
	}
	value, ok := f.values[version]
	if !ok {
		return nil, awserr.New(secretsmanager.ErrCodeResourceNotFoundException,
			"secret version not found", nil)
	}
	return &secretsmanager.GetSecretValueOutput{
		ARN:          input.SecretId,
		VersionId:    aws.String(version),
		SecretString: aws.String(value),
	}, nil
}

func (f *fakeSecretsManager) PutSecretValueWithContext(ctx aws.Context, input *secretsmanager.PutSecretValueInput, opts ...request.Option) (*secretsmanager.PutSecretValueOutput, error) {
	version := aws.StringValue(input.ClientRequestToken)
	f.values[version] = aws.StringValue(input.SecretString)
	f.stages[version] = aws.StringValueSlice(input.VersionStages)
	return &secretsmanager.PutSecretValueOutput{
		ARN:       input.SecretId,
		VersionId: input.ClientRequestToken,
	}, nil
}

func (f *fakeSecretsManager) UpdateSecretVersionStageWithContext(ctx aws.Context, input *secretsmanager.UpdateSecretVersionStageInput, opts ...request.Option) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	stage := aws.StringValue(input.VersionStage)
	if from := aws.StringValue(input.RemoveFromVersionId); from != "" {
		f.stages[from] = remove(f.stages[from], stage)
	}
	if to := aws.StringValue(input.MoveToVersionId); to != "" {
		f.stages[to] = append(remove(f.stages[to], stage), stage)
	}
	return &secretsmanager.UpdateSecretVersionStageOutput{ARN: input.SecretId}, nil
}

func (f *fakeSecretsManager) versionWithStage(stage string) string {
	for version, stages := range f.stages {
		for _, s := range stages {
			if s == stage {
				return version
			}
		}
	}
	return ""
}

func (f *fakeSecretsManager) hasStage(version, stage string) bool {
	for _, s := range f.stages[version] {
		if s == stage {
			return true
		}
	}
	return false
}

func remove(stages []string, stage string) []string {
	result := stages[:0]
	for _, s := range stages {
		if s != stage {
			result = append(result, s)
		}
	}
	return result
}
