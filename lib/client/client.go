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

// Package client implements a client for the podinfo API.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gravitational/podinfo/lib/defaults"
	"github.com/gravitational/podinfo/lib/version"
	"github.com/gravitational/podinfo/lib/web"

	"github.com/gravitational/roundtrip"
	"github.com/gravitational/trace"
)

// Client is a client for the podinfo API
type Client struct {
	roundtrip.Client
	addr string
}

// New returns a client for the podinfo API served at addr
func New(addr string, params ...ClientParam) (*Client, error) {
	if addr == "" {
		return nil, trace.BadParameter("missing parameter addr")
	}
	addr = strings.TrimRight(addr, "/")
	rt, err := roundtrip.NewClient(addr, "")
	if err != nil {
		return nil, trace.Wrap(err)
	}
	client := &Client{Client: *rt, addr: addr}
	for _, param := range params {
		if err := param(client); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	return client, nil
}

// ClientParam defines a client configuration option
type ClientParam func(client *Client) error

// HTTPClient sends API requests with the given HTTP client
func HTTPClient(httpClient *http.Client) ClientParam {
	return func(c *Client) error {
		return roundtrip.HTTPClient(httpClient)(&c.Client)
	}
}

// Insecure accepts any TLS certificate presented by the service. Used to
// probe deployments fronted by self-signed load balancer certificates.
func Insecure() ClientParam {
	return func(c *Client) error {
		return roundtrip.HTTPClient(&http.Client{
			Timeout: defaults.ClientTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		})(&c.Client)
	}
}

// Health checks the liveness endpoint of the service
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, c.endpoint("healthz"))
	return trace.Wrap(err)
}

// Ready checks the readiness endpoint of the service. It returns an
// error while the service is draining.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.get(ctx, c.endpoint("readyz"))
	return trace.Wrap(err)
}

// Home returns the welcome payload of the service
func (c *Client) Home(ctx context.Context) (*web.HomeResponse, error) {
	re, err := c.get(ctx, c.endpoint())
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var home web.HomeResponse
	if err := json.Unmarshal(re.Bytes(), &home); err != nil {
		return nil, trace.Wrap(err)
	}
	return &home, nil
}

// Version returns the build metadata of the running service
func (c *Client) Version(ctx context.Context) (*version.Info, error) {
	re, err := c.get(ctx, c.endpoint("version"))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var info version.Info
	if err := json.Unmarshal(re.Bytes(), &info); err != nil {
		return nil, trace.Wrap(err)
	}
	return &info, nil
}

// Info returns the runtime details of the serving instance
func (c *Client) Info(ctx context.Context) (*web.InfoResponse, error) {
	re, err := c.get(ctx, c.endpoint("info"))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var info web.InfoResponse
	if err := json.Unmarshal(re.Bytes(), &info); err != nil {
		return nil, trace.Wrap(err)
	}
	return &info, nil
}

// Data returns the payload of the sample data endpoint
func (c *Client) Data(ctx context.Context) (*web.DataResponse, error) {
	re, err := c.get(ctx, c.endpoint("api", "data"))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var data web.DataResponse
	if err := json.Unmarshal(re.Bytes(), &data); err != nil {
		return nil, trace.Wrap(err)
	}
	return &data, nil
}

// SecretStatus reports which secret fields the service has loaded
func (c *Client) SecretStatus(ctx context.Context) (*web.SecretResponse, error) {
	re, err := c.get(ctx, c.endpoint("api", "secret"))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var status web.SecretResponse
	if err := json.Unmarshal(re.Bytes(), &status); err != nil {
		return nil, trace.Wrap(err)
	}
	return &status, nil
}

// get issues an HTTP GET request and converts errors to trace errors
func (c *Client) get(ctx context.Context, endpoint string) (*roundtrip.Response, error) {
	return convertResponse(c.Client.Get(ctx, endpoint, url.Values{}))
}

// endpoint builds the full URL of an API endpoint
func (c *Client) endpoint(params ...string) string {
	return strings.Join(append([]string{c.addr}, params...), "/")
}

// convertResponse converts an error response to a trace error
func convertResponse(re *roundtrip.Response, err error) (*roundtrip.Response, error) {
	if err != nil {
		if uerr, ok := err.(*url.Error); ok && uerr != nil && uerr.Err != nil {
			return nil, trace.Wrap(uerr.Err)
		}
		return nil, trace.Wrap(err)
	}
	if re.Code() < http.StatusOK || re.Code() >= http.StatusMultipleChoices {
		return re, trace.ReadError(re.Code(), re.Bytes())
	}
	return re, nil
}
