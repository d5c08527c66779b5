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

package process

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gravitational/podinfo/lib/client"
	"github.com/gravitational/podinfo/lib/config"
	"github.com/gravitational/podinfo/lib/utils"

	"github.com/gravitational/trace"
	"gopkg.in/check.v1"
)

func TestProcess(t *testing.T) { check.TestingT(t) }

type ProcessSuite struct{}

var _ = check.Suite(&ProcessSuite{})

func (s *ProcessSuite) TestServesAndShutsDown(c *check.C) {
	process, listener := s.newProcess(c, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	doneC := make(chan error, 1)
	go func() {
		doneC <- process.Serve(ctx)
	}()

	clt, err := client.New("http://" + listener.Addr().String())
	c.Assert(err, check.IsNil)

	// wait for the server to come up
	err = utils.Retry(10*time.Millisecond, 100, func() error {
		return clt.Health(context.TODO())
	})
	c.Assert(err, check.IsNil)
	c.Assert(clt.Ready(context.TODO()), check.IsNil)

	version, err := clt.Version(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(version.Version, check.Equals, "1.2.3")

	cancel()
	select {
	case err := <-doneC:
		c.Assert(err, check.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatalf("timeout waiting for the server to stop")
	}

	// the listener is closed once the server has stopped
	c.Assert(clt.Health(context.TODO()), check.NotNil)
}

func (s *ProcessSuite) TestDrainsBeforeShutdown(c *check.C) {
	process, listener := s.newProcess(c, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	doneC := make(chan error, 1)
	go func() {
		doneC <- process.Serve(ctx)
	}()

	clt, err := client.New("http://" + listener.Addr().String())
	c.Assert(err, check.IsNil)
	err = utils.Retry(10*time.Millisecond, 100, func() error {
		return clt.Ready(context.TODO())
	})
	c.Assert(err, check.IsNil)

	cancel()
	// readiness fails as soon as the shutdown starts
	err = utils.Retry(time.Millisecond, 100, func() error {
		if process.handler.Ready() {
			return trace.CompareFailed("still ready")
		}
		return nil
	})
	c.Assert(err, check.IsNil)

	// the server keeps accepting connections during the drain window
	c.Assert(clt.Health(context.TODO()), check.IsNil)
	c.Assert(clt.Ready(context.TODO()), check.NotNil)

	select {
	case err := <-doneC:
		c.Assert(err, check.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatalf("timeout waiting for the server to stop")
	}
}

func (s *ProcessSuite) newProcess(c *check.C, drainDelay time.Duration) (*Process, net.Listener) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, check.IsNil)
	process, err := New(context.TODO(), Config{
		Config: &config.Config{
			Port:        "9898",
			Environment: "test",
			LogLevel:    "debug",
			Version:     "1.2.3",
			BuildTime:   "2024-04-01T09:00:00Z",
			Commit:      "abcdef12",
		},
		Listener:        listener,
		DrainDelay:      drainDelay,
		ShutdownTimeout: time.Second,
	})
	c.Assert(err, check.IsNil)
	return process, listener
}
