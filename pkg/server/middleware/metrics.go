package middleware

import (
	"net/http"
	"strings"
	"time"

	"sentinel-hq/bastion/pkg/telemetry/metrics"
)

// Metrics records request count and latency per route. Paths are
// normalized to route patterns so label cardinality stays bounded.
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if collector == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			collector.RecordHTTPRequest(r.Method, routePattern(r.URL.Path), rw.statusCode, time.Since(start))
		})
	}
}

// routePattern collapses resource ids into a placeholder.
func routePattern(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "connection", "policy":
		if len(parts) > 1 {
			return "/" + parts[0] + "/{id}"
		}
		return "/" + parts[0]
	default:
		return "/" + parts[0]
	}
}
