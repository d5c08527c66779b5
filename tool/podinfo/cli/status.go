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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gravitational/podinfo/lib/client"
	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/lib/secrets"
	"github.com/gravitational/podinfo/lib/version"
	"github.com/gravitational/podinfo/tool/common"

	"github.com/ghodss/yaml"
	"github.com/gravitational/trace"
)

// Status describes the state of a running podinfo service
type Status struct {
	// Healthy is true when the liveness check passes
	Healthy bool `json:"healthy"`
	// Ready is true when the service accepts traffic
	Ready bool `json:"ready"`
	// Version is the build version reported by the service
	Version *version.Info `json:"version,omitempty"`
	// Secrets is the secret material load status
	Secrets *secrets.Status `json:"secrets,omitempty"`
}

// status queries the service at url and prints its state in the requested
// format. Returns an error when the service fails its health check so
// scripted callers get a nonzero exit code.
func status(ctx context.Context, url string, insecure bool, format constants.Format) error {
	params := []client.ClientParam{client.HTTPClient(&http.Client{
		Timeout: defaults.ClientTimeout,
	})}
	if insecure {
		params = append(params, client.Insecure())
	}
	clt, err := client.New(url, params...)
	if err != nil {
		return trace.Wrap(err)
	}

	var result Status
	if err := clt.Health(ctx); err != nil {
		log.WithError(err).Debug("Health check failed.")
	} else {
		result.Healthy = true
	}
	if err := clt.Ready(ctx); err != nil {
		log.WithError(err).Debug("Readiness check failed.")
	} else {
		result.Ready = true
	}
	if ver, err := clt.Version(ctx); err == nil {
		result.Version = ver
	}
	if secretStatus, err := clt.SecretStatus(ctx); err == nil {
		result.Secrets = &secretStatus.SecretStatus
	}

	switch format {
	case constants.EncodingText:
		printStatus(url, result)
	case constants.EncodingJSON:
		bytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return trace.Wrap(err)
		}
		fmt.Println(string(bytes))
	case constants.EncodingYAML:
		bytes, err := yaml.Marshal(result)
		if err != nil {
			return trace.Wrap(err)
		}
		fmt.Print(string(bytes))
	default:
		return trace.BadParameter("unsupported output format %q, supported are: %v",
			format, constants.OutputFormats)
	}

	if !result.Healthy {
		return trace.ConnectionProblem(nil, "service at %v failed its health check", url)
	}
	return nil
}

func printStatus(url string, status Status) {
	common.PrintHeader(fmt.Sprintf("Podinfo at %v", url))
	common.PrintCheck("Healthy", status.Healthy)
	common.PrintCheck("Ready", status.Ready)
	if status.Version != nil {
		fmt.Printf("Version:\t%v (%v)\n", status.Version.Version, status.Version.GitCommit)
	}
	if status.Secrets != nil {
		fmt.Printf("Secrets:\t%v\n", status.Secrets.Source)
	}
}
