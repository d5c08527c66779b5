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

package httplib

import (
	"context"
	"net/http"
	"time"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/metrics"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

type contextKey string

// correlationKey keys the request correlation ID in the request context
const correlationKey contextKey = "correlation-id"

// quietRoutes are logged at debug level to keep probe traffic out of the logs
var quietRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Wrap applies the standard middleware chain to the handler: correlation ID,
// request logging, metrics and CORS, outermost first.
func Wrap(logger log.FieldLogger, handler http.Handler) http.Handler {
	return WithCorrelationID(WithLogging(logger, WithMetrics(WithCORS(handler))))
}

// WithCorrelationID makes sure every request carries a correlation ID: the
// incoming header value is reused when present, otherwise a new one is
// generated. The ID is set on the response header and the request context.
func WithCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(constants.HeaderCorrelationID)
		if id == "" {
			id = uuid.New()
		}
		w.Header().Set(constants.HeaderCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), correlationKey, id)))
	})
}

// CorrelationID returns the correlation ID of the request, if any.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// WithLogging logs every completed request with its method, path, status
// code and duration. Probe endpoints log at debug level.
func WithLogging(logger log.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(recorder, r)
		entry := logger.WithFields(log.Fields{
			"method":                     r.Method,
			"path":                       r.URL.Path,
			"status":                     recorder.status,
			"duration":                   time.Since(started).String(),
			constants.FieldCorrelationID: CorrelationID(r.Context()),
		})
		if quietRoutes[r.URL.Path] {
			entry.Debug("Request completed.")
			return
		}
		entry.Info("Request completed.")
	})
}

// WithMetrics records the request counter and duration histogram for
// every completed request.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(recorder, r)
		metrics.ObserveRequest(r.Method, r.URL.Path, recorder.status, time.Since(started))
	})
}

// WithCORS sets permissive CORS headers and short-circuits preflight
// requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status code for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status code before passing it through
func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
