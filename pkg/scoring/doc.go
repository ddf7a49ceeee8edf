// Package scoring defines the anomaly scorer contract consumed by the
// evaluation pipeline and provides a reputation-table implementation
// that stands in for a real model. Scorers must return values already
// clamped to [0,1]; the decision core does not re-validate the range.
package scoring
