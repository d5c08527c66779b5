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

// Command podinfo-lambda serves the podinfo HTTP API behind the AWS
// Lambda runtime. The handler is built once at cold start, secrets
// included, and proxied through the API Gateway integration.
package main

import (
	"context"
	"os"

	"github.com/gravitational/podinfo/lib/config"
	"github.com/gravitational/podinfo/lib/process"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
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
	cfg, err := config.FromEnv()
	if err != nil {
		return trace.Wrap(err)
	}
	cfg.SetupLogging()

	process, err := process.New(context.Background(), process.Config{Config: cfg})
	if err != nil {
		return trace.Wrap(err)
	}

	adapter := httpadapter.New(process.Handler())
	lambda.Start(adapter.ProxyWithContext)
	return nil
}
