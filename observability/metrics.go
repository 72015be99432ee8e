package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type apiMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics
)

// API returns the lazily-initialised metrics registry used to record HTTP API
// activity.
func API() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route, method and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "yzy",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			apiRegistry.requests,
			apiRegistry.errors,
			apiRegistry.latency,
			apiRegistry.throttles,
		)
	})
	return apiRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *apiMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *apiMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}
