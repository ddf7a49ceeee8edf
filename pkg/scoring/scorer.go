package scoring

import (
	"context"

	"sentinel-hq/bastion/pkg/decision"
)

// Scorer produces an anomaly score for a connection. Implementations
// must return a value in [0.0, 1.0]; the caller does not re-clamp.
// Swapping the scoring technology (rule table, ML model, remote
// service) must not require changes anywhere else.
type Scorer interface {
	// Score computes the anomaly score for one connection. The context
	// bounds any remote work the implementation performs.
	Score(ctx context.Context, conn decision.Connection) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, conn decision.Connection) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, conn decision.Connection) (float64, error) {
	return f(ctx, conn)
}
