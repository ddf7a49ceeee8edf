package decision

// Score thresholds for anomaly classification. The block threshold is
// strictly greater-than, the alert lower bound is inclusive: 0.8 itself
// classifies as alert, as does 0.5.
const (
	// BlockThreshold is the score above which a connection is blocked.
	BlockThreshold = 0.8

	// AlertThreshold is the score at or above which a connection is
	// flagged for review.
	AlertThreshold = 0.5
)

// Classify maps an anomaly score to a decision:
//
//	score > 0.8          -> block
//	0.5 <= score <= 0.8  -> alert
//	score < 0.5          -> allow
//
// The score is assumed already clamped to [0,1] by the scorer; Classify
// does not re-clamp.
func Classify(score float64) Decision {
	switch {
	case score > BlockThreshold:
		return DecisionBlock
	case score >= AlertThreshold:
		return DecisionAlert
	default:
		return DecisionAllow
	}
}
