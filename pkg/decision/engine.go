package decision

import (
	"log/slog"
	"math"
)

// Engine orchestrates policy matching and score thresholding into the
// two-phase evaluation protocol. It is stateless across calls: the
// two-phase behavior is realized by the caller invoking Decide twice,
// not by the engine retaining context.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a decision engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Decide evaluates a connection against an ordered policy snapshot and,
// optionally, an anomaly score.
//
// Phase 1 (score == nil): if the first matching policy carries an allow
// or block action the outcome is terminal and no scorer is ever needed.
// Otherwise (alert action or no match) the outcome is provisional:
// Status is StatusNeedsScore, NeedsScore is true, and the Decision field
// must be discarded by the caller.
//
// Phase 2 (score != nil): the score is classified against the fixed
// thresholds and the matched policy id from phase 1 is preserved for
// audit even though the score determined the verdict.
//
// The only error Decide can return is a *ScoreError for a non-finite
// score; malformed policy conditions simply fail to match.
func (e *Engine) Decide(conn Connection, policies []Policy, score *float64) (Outcome, error) {
	if score != nil && (math.IsNaN(*score) || math.IsInf(*score, 0)) {
		return Outcome{}, &ScoreError{Score: *score}
	}

	matched := FindMatch(conn, policies)

	if matched != nil && (matched.Action == DecisionAllow || matched.Action == DecisionBlock) {
		e.logger.Debug("policy resolved connection without scoring",
			"policy_id", matched.ID,
			"action", matched.Action,
		)
		return Outcome{
			Decision:        matched.Action,
			MatchedPolicyID: matched.ID,
			Status:          StatusResolved,
		}, nil
	}

	matchedID := ""
	if matched != nil {
		matchedID = matched.ID
	}

	if score == nil {
		e.logger.Debug("anomaly score required",
			"matched_policy_id", matchedID,
		)
		return Outcome{
			Decision:        DecisionAlert,
			MatchedPolicyID: matchedID,
			NeedsScore:      true,
			Status:          StatusNeedsScore,
		}, nil
	}

	verdict := Classify(*score)
	e.logger.Debug("score classified",
		"score", *score,
		"decision", verdict,
		"matched_policy_id", matchedID,
	)

	return Outcome{
		Decision:        verdict,
		MatchedPolicyID: matchedID,
		Status:          StatusResolved,
	}, nil
}
