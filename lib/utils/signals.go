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

package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// WatchTerminationSignals invokes the specified cancel when the process
// receives an interrupt signal
func WatchTerminationSignals(ctx context.Context, cancel context.CancelFunc, logger logrus.FieldLogger) {
	signalC := make(chan os.Signal, 1)
	signals := []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
	signal.Notify(signalC, signals...)
	go func() {
		defer signal.Reset(signals...)
		select {
		case <-ctx.Done():
		case sig := <-signalC:
			logger.WithField("signal", sig).Info("Received signal, shutting down.")
			cancel()
		}
	}()
}
