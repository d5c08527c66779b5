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
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Abort causes Retry function to stop with error
func Abort(err error) *AbortRetry {
	return &AbortRetry{Err: err}
}

// IsAbortError returns true if the specified error is of type AbortRetry
func IsAbortError(err error) bool {
	_, ok := trace.Unwrap(err).(*AbortRetry)
	return ok
}

// Continue causes Retry function to continue trying and logging message
func Continue(format string, args ...interface{}) *ContinueRetry {
	return &ContinueRetry{Message: fmt.Sprintf(format, args...)}
}

// AbortRetry if returned from Retry, will lead to retries to be stopped,
// but the Retry function will return internal Error
type AbortRetry struct {
	Err error
}

// Error returns the abort error string representation
func (a *AbortRetry) Error() string {
	return fmt.Sprintf("Abort(%v)", a.Err)
}

// OriginalError returns the original error message this abort error wraps
func (a *AbortRetry) OriginalError() string {
	return a.Err.Error()
}

// ContinueRetry if returned from Retry, will be lead to retry next time
type ContinueRetry struct {
	Message string
}

// Error returns the continue error string representation
func (s *ContinueRetry) Error() string {
	return fmt.Sprintf("ContinueRetry(%v)", s.Message)
}

// Retry attempts to execute fn up to maxAttempts sleeping for period between attempts.
// fn can return an instance of Abort to abort or Continue to continue the execution.
func Retry(period time.Duration, maxAttempts int, fn func() error) error {
	var err error
	for i := 1; i <= maxAttempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		switch origErr := err.(type) {
		case *AbortRetry:
			return origErr.Err
		case *ContinueRetry:
			log.Debugf("%v retry in %v.", origErr.Message, period)
		default:
			log.Debugf("Unsuccessful attempt %v/%v: %v, retry in %v.",
				i, maxAttempts, trace.UserMessage(err), period)
		}
		time.Sleep(period)
	}
	log.Errorf("All attempts failed:\n%v.", trace.DebugReport(err))
	return err
}

// RetryWithInterval retries the specified operation fn using the specified
// backoff interval. fn can return backoff.PermanentError if the error
// should not be retried and returned directly.
// Returns nil on success or the last received error upon exhausting the interval.
func RetryWithInterval(ctx context.Context, interval backoff.BackOff, fn func() error) error {
	b := backoff.WithContext(interval, ctx)
	err := backoff.RetryNotify(func() (err error) {
		err = fn()
		return err
	}, b, func(err error, d time.Duration) {
		log.WithError(err).Debugf("Retrying in %v.", d)
	})
	if err != nil {
		log.Warnf("All attempts failed: %v.", trace.DebugReport(err))
		return trace.Wrap(err)
	}
	return nil
}
