package metrics

import (
	"strconv"
	"time"

	"sentinel-hq/bastion/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks metrics for the HTTP API.
//
// Metrics:
//   - bastion_firewall_http_requests_total: requests by method, path and status
//   - bastion_firewall_http_request_duration_seconds: request duration by method and path
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers HTTP request metrics with
// the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
	)

	return rm
}

// RecordRequest records a completed HTTP request.
func (rm *RequestMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
