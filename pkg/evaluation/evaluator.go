package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sentinel-hq/bastion/pkg/audit"
	"sentinel-hq/bastion/pkg/decision"
	"sentinel-hq/bastion/pkg/policystore"
	"sentinel-hq/bastion/pkg/scoring"
	"sentinel-hq/bastion/pkg/telemetry/metrics"
)

// ErrConnectionNotFound is returned by Get when no evaluation has been
// recorded for a connection id.
var ErrConnectionNotFound = errors.New("connection not found")

// Result is the outcome of evaluating one connection.
type Result struct {
	// ConnectionID identifies this evaluation in the audit store.
	ConnectionID string `json:"connection_id"`

	// Decision is the final verdict.
	Decision decision.Decision `json:"decision"`

	// AnomalyScore is the score used to reach the verdict. 0.0 when
	// a policy resolved the connection without scoring.
	AnomalyScore float64 `json:"anomaly_score"`

	// MatchedPolicyID is the id of the first matching policy, empty
	// when no policy matched.
	MatchedPolicyID string `json:"matched_policy_id,omitempty"`
}

// Evaluator runs connections through policy matching and, when
// policies are not conclusive, anomaly scoring. All collaborators are
// injected; the evaluator holds no global state.
type Evaluator struct {
	engine   *decision.Engine
	policies policystore.Store
	scorer   scoring.Scorer
	records  audit.Store
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator. The metrics collector may be nil
// when metric collection is disabled; policies, scorer and records must
// be non-nil.
func NewEvaluator(
	policies policystore.Store,
	scorer scoring.Scorer,
	records audit.Store,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "evaluation")

	return &Evaluator{
		engine:   decision.NewEngine(logger),
		policies: policies,
		scorer:   scorer,
		records:  records,
		metrics:  collector,
		logger:   logger,
	}
}

// Evaluate decides the fate of one connection.
//
// The policy snapshot is taken once at the start, so a concurrent
// policy reload cannot change the rules mid-evaluation. The scorer is
// invoked at most once: only when the first decision pass reports that
// a score is required.
func (e *Evaluator) Evaluate(ctx context.Context, conn decision.Connection) (Result, error) {
	start := time.Now()

	policies, err := e.policies.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load policies: %w", err)
	}

	outcome, err := e.engine.Decide(conn, policies, nil)
	if err != nil {
		return Result{}, err
	}

	score := 0.0
	scored := false
	if outcome.NeedsScore {
		score, err = e.scorer.Score(ctx, conn)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordScorerError()
			}
			return Result{}, fmt.Errorf("anomaly scoring failed: %w", err)
		}
		scored = true

		outcome, err = e.engine.Decide(conn, policies, &score)
		if err != nil {
			return Result{}, err
		}
	}

	result := Result{
		ConnectionID:    uuid.New().String(),
		Decision:        outcome.Decision,
		AnomalyScore:    score,
		MatchedPolicyID: outcome.MatchedPolicyID,
	}

	if e.records != nil {
		rec := &audit.ConnectionRecord{
			ConnectionID:    result.ConnectionID,
			Connection:      conn,
			Decision:        result.Decision,
			AnomalyScore:    result.AnomalyScore,
			MatchedPolicyID: result.MatchedPolicyID,
			EvaluatedAt:     time.Now().UTC(),
		}
		if err := e.records.Save(ctx, rec); err != nil {
			return Result{}, fmt.Errorf("failed to record evaluation: %w", err)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordEvaluation(string(result.Decision), scored, time.Since(start))
		if result.MatchedPolicyID != "" {
			e.metrics.RecordPolicyHit(result.MatchedPolicyID)
		} else {
			e.metrics.RecordPolicyMiss()
		}
	}

	e.logger.Info("connection evaluated",
		"connection_id", result.ConnectionID,
		"source_ip", conn.SourceIP,
		"destination_ip", conn.DestinationIP,
		"destination_port", conn.DestinationPort,
		"protocol", conn.Protocol,
		"decision", result.Decision,
		"anomaly_score", result.AnomalyScore,
		"matched_policy_id", result.MatchedPolicyID,
		"scored", scored,
	)

	return result, nil
}

// Get returns the stored record for a past evaluation.
func (e *Evaluator) Get(ctx context.Context, connectionID string) (*audit.ConnectionRecord, error) {
	if e.records == nil {
		return nil, fmt.Errorf("connection %q: %w", connectionID, ErrConnectionNotFound)
	}

	rec, err := e.records.Get(ctx, connectionID)
	if errors.Is(err, audit.ErrRecordNotFound) {
		return nil, fmt.Errorf("connection %q: %w", connectionID, ErrConnectionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
