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

// Command podinfo-hook is the CodeDeploy pre-traffic lifecycle hook that
// smoke-tests a new podinfo deployment and reports the outcome back to
// CodeDeploy before traffic shifts to it.
package main

import (
	"os"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/hooks"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		log.Error(trace.DebugReport(err))
		os.Exit(255)
	}
}

func run() error {
	validator, err := hooks.New(hooks.Config{
		ServiceURL: os.Getenv(constants.EnvServiceURL),
		Region:     os.Getenv(constants.EnvAWSRegion),
	})
	if err != nil {
		return trace.Wrap(err)
	}

	lambda.Start(validator.Handle)
	return nil
}
