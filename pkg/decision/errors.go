package decision

import (
	"errors"
	"fmt"
)

// ErrScoreRequired indicates a caller consumed the decision value of a
// provisional outcome instead of re-invoking Decide with a score.
var ErrScoreRequired = errors.New("anomaly score required to resolve decision")

// ScoreError indicates a caller supplied a score the classifier cannot
// work with (NaN or infinite). A silent mis-classification in a security
// path is worse than a fast failure, so this surfaces as a typed error
// instead of degrading.
type ScoreError struct {
	Score float64
}

// Error returns the error message.
func (e *ScoreError) Error() string {
	return fmt.Sprintf("invalid anomaly score: %v is not finite", e.Score)
}
