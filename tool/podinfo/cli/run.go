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
	"context"
	"os"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/lifecycle"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField(trace.Component, constants.ComponentCLI)

// Run parses CLI arguments and executes an appropriate podinfo command
func Run(podinfo Application) error {
	log.Debugf("Executing: %v.", os.Args)
	cmd, err := podinfo.Parse(os.Args[1:])
	if err != nil {
		return trace.Wrap(err)
	}

	trace.SetDebug(*podinfo.Debug)
	if *podinfo.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch cmd {
	case podinfo.VersionCmd.FullCommand():
		return printVersion(*podinfo.VersionCmd.Output)
	case podinfo.ServeCmd.FullCommand():
		logLevel := *podinfo.ServeCmd.LogLevel
		if logLevel == "" && *podinfo.Debug {
			logLevel = "debug"
		}
		return serve(context.Background(), serveOverrides{
			port:        *podinfo.ServeCmd.Port,
			environment: *podinfo.ServeCmd.Environment,
			logLevel:    logLevel,
		})
	case podinfo.StatusCmd.FullCommand():
		return status(context.Background(), *podinfo.StatusCmd.URL,
			*podinfo.StatusCmd.Insecure, *podinfo.StatusCmd.Format)
	case podinfo.DrainCmd.FullCommand():
		return drain(context.Background(), lifecycle.Config{
			QueueURL:       *podinfo.DrainCmd.QueueURL,
			TargetGroupARN: *podinfo.DrainCmd.TargetGroupARN,
			Region:         *podinfo.DrainCmd.Region,
		})
	}
	return trace.NotFound("unknown command %v", cmd)
}
