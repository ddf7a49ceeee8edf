// Package metrics collects Prometheus metrics for connection
// evaluation and the HTTP API, and exposes them over /metrics.
package metrics
