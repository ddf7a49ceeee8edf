package metrics

import (
	"strconv"
	"time"

	"sentinel-hq/bastion/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks metrics for connection evaluation.
//
// Metrics:
//   - bastion_firewall_evaluations_total: evaluations by decision and scored flag
//   - bastion_firewall_evaluation_duration_seconds: evaluation duration
//   - bastion_firewall_policy_hits_total: policy matches by policy id
//   - bastion_firewall_policy_misses_total: connections no policy matched
//   - bastion_firewall_scorer_errors_total: failed scorer invocations
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	hitsTotal          *prometheus.CounterVec
	missesTotal        prometheus.Counter
	scorerErrorsTotal  prometheus.Counter
}

// NewEvaluationMetrics creates and registers evaluation metrics with
// the provided registry.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of connection evaluations",
			},
			[]string{"decision", "scored"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of connection evaluation in seconds",
				// Evaluations should be fast (< 10ms)
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),

		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_hits_total",
				Help:      "Total number of policy matches",
			},
			[]string{"policy_id"},
		),

		missesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_misses_total",
				Help:      "Total number of connections no policy matched",
			},
		),

		scorerErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scorer_errors_total",
				Help:      "Total number of failed anomaly scorer invocations",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.hitsTotal,
		em.missesTotal,
		em.scorerErrorsTotal,
	)

	return em
}

// RecordEvaluation records a completed connection evaluation.
func (em *EvaluationMetrics) RecordEvaluation(decision string, scored bool, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(decision, strconv.FormatBool(scored)).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}

// RecordHit records that a policy matched a connection.
func (em *EvaluationMetrics) RecordHit(policyID string) {
	em.hitsTotal.WithLabelValues(policyID).Inc()
}

// RecordMiss records that no policy matched a connection.
func (em *EvaluationMetrics) RecordMiss() {
	em.missesTotal.Inc()
}

// RecordScorerError records a failed scorer invocation.
func (em *EvaluationMetrics) RecordScorerError() {
	em.scorerErrorsTotal.Inc()
}
