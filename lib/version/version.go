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

// Package version reports the build metadata of podinfo binaries.
package version

import (
	"runtime"
	"strings"

	"github.com/gravitational/podinfo/lib/defaults"

	"github.com/gravitational/version"
)

// buildTime is stamped by the linker, RFC3339 UTC
var buildTime string

// Info describes the build version of the running binary.
type Info struct {
	// Version is the semantic version of the build
	Version string `json:"version"`
	// GitCommit is the git commit the binary was built from
	GitCommit string `json:"commit"`
	// BuildTime is the UTC timestamp of the build
	BuildTime string `json:"build_time"`
	// GoVersion is the Go toolchain the binary was built with
	GoVersion string `json:"go_version"`
}

// Get returns the build information stamped into the binary at link time.
// Unstamped fields fall back to development placeholders, container images
// override those through the environment via the configuration layer.
func Get() Info {
	info := Info{
		Version:   defaults.Version,
		GitCommit: defaults.BuildMetadataUnknown,
		BuildTime: defaults.BuildMetadataUnknown,
		GoVersion: runtime.Version(),
	}
	ver := version.Get()
	if stamped(ver.Version) {
		info.Version = ver.Version
	}
	if stamped(ver.GitCommit) {
		info.GitCommit = ver.GitCommit
	}
	if buildTime != "" {
		info.BuildTime = buildTime
	}
	return info
}

// Init sets the build version, used in tests.
func Init(v string) {
	version.Init(v)
}

// stamped reports whether the value was set by the linker as opposed to
// the source placeholders the version package defaults to.
func stamped(value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(value, "$Format") {
		return false
	}
	return !strings.HasPrefix(value, "v0.0.0-master")
}
