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

	"github.com/gravitational/podinfo/lib/lifecycle"
	"github.com/gravitational/podinfo/lib/utils"

	"github.com/gravitational/trace"
)

// drain runs the autoscaling lifecycle agent until a termination signal
// arrives
func drain(ctx context.Context, cfg lifecycle.Config) error {
	agent, err := lifecycle.New(cfg)
	if err != nil {
		return trace.Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	utils.WatchTerminationSignals(ctx, cancel, log)

	agent.ProcessEvents(ctx)
	return nil
}
