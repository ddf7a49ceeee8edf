package metrics

import (
	"time"

	"sentinel-hq/bastion/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector manages Prometheus metric registration and provides a
// unified interface for recording metrics across components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	requestMetrics    *RequestMetrics
}

// NewCollector creates a metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "bastion"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "firewall"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.evaluationMetrics = NewEvaluationMetrics(cfg, registry)
	c.requestMetrics = NewRequestMetrics(cfg, registry)

	return c
}

// RecordEvaluation records a completed connection evaluation.
//
// Parameters:
//   - decision: final decision ("allow", "alert", "block")
//   - scored: whether the anomaly scorer was invoked
//   - duration: total evaluation duration
func (c *Collector) RecordEvaluation(decision string, scored bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordEvaluation(decision, scored, duration)
}

// RecordPolicyHit records that a policy matched a connection.
func (c *Collector) RecordPolicyHit(policyID string) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordHit(policyID)
}

// RecordPolicyMiss records that no policy matched a connection.
func (c *Collector) RecordPolicyMiss() {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordMiss()
}

// RecordScorerError records a failed anomaly scorer invocation.
func (c *Collector) RecordScorerError() {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordScorerError()
}

// RecordHTTPRequest records a completed HTTP request.
//
// Parameters:
//   - method: HTTP method
//   - path: route pattern (not the raw URL, to bound cardinality)
//   - status: response status code
//   - duration: request duration
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, path, status, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
