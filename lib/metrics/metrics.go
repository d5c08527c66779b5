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

// Package metrics defines the Prometheus collectors exposed by the
// metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gravitational/podinfo/lib/constants"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	applicationHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_health",
			Help: "Application health status (1 = healthy, 0 = unhealthy)",
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(applicationHealth)
}

// Handler returns the Prometheus text exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records a completed HTTP request in the request counter
// and the duration histogram.
func ObserveRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetHealthy publishes the application health gauge for the service.
func SetHealthy(healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	applicationHealth.WithLabelValues(constants.ServiceName).Set(value)
}
