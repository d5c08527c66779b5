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
	"fmt"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/tool/common"

	"gopkg.in/alecthomas/kingpin.v2"
)

// RegisterCommands registers all podinfo tool flags, arguments and subcommands
func RegisterCommands(app *kingpin.Application) Application {
	podinfo := Application{
		Application: app,
	}

	podinfo.Debug = app.Flag("debug", "Enable debug mode.").Bool()

	podinfo.VersionCmd.CmdClause = app.Command("version", "Print version information and exit.")
	podinfo.VersionCmd.Output = common.Format(podinfo.VersionCmd.Flag("output", fmt.Sprintf("Output format: %v.", constants.OutputFormats)).Short('o').Default(string(constants.EncodingText)))

	podinfo.ServeCmd.CmdClause = app.Command("serve", "Start the podinfo HTTP service.")
	podinfo.ServeCmd.Port = podinfo.ServeCmd.Flag("port", fmt.Sprintf("Listen port. Defaults to the PORT environment variable or %v.", defaults.Port)).String()
	podinfo.ServeCmd.Environment = podinfo.ServeCmd.Flag("env", "Deployment environment name reported by the service. Defaults to the ENVIRONMENT environment variable.").String()
	podinfo.ServeCmd.LogLevel = podinfo.ServeCmd.Flag("log-level", "Logging verbosity. Defaults to the LOG_LEVEL environment variable.").String()

	podinfo.StatusCmd.CmdClause = app.Command("status", "Query the health of a running podinfo service.")
	podinfo.StatusCmd.URL = podinfo.StatusCmd.Flag("url", "Address of the service to query.").Default(fmt.Sprintf("http://localhost:%v", defaults.Port)).String()
	podinfo.StatusCmd.Insecure = podinfo.StatusCmd.Flag("insecure", "Skip TLS certificate verification.").Bool()
	podinfo.StatusCmd.Format = common.Format(podinfo.StatusCmd.Flag("output", fmt.Sprintf("Output format: %v.", constants.OutputFormats)).Short('o').Default(string(constants.EncodingText)))

	podinfo.DrainCmd.CmdClause = app.Command("drain", "Run the autoscaling lifecycle agent that drains terminating instances.")
	podinfo.DrainCmd.QueueURL = podinfo.DrainCmd.Flag("queue-url", "SQS queue delivering autoscaling lifecycle hook notifications.").Required().String()
	podinfo.DrainCmd.TargetGroupARN = podinfo.DrainCmd.Flag("target-group-arn", "Load balancer target group the instances are registered in.").Required().String()
	podinfo.DrainCmd.Region = podinfo.DrainCmd.Flag("region", "AWS region of the autoscaling group. Defaults to the AWS_REGION environment variable.").String()

	return podinfo
}
