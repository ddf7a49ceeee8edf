package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentinel-hq/bastion/pkg/decision"
)

// ErrRecordNotFound indicates the requested connection id does not
// exist in the audit store.
var ErrRecordNotFound = errors.New("connection record not found")

// ConnectionRecord is the persisted detail of one evaluated connection.
type ConnectionRecord struct {
	// ConnectionID uniquely identifies the evaluation.
	ConnectionID string `json:"connection_id"`

	// Connection is the descriptor as submitted by the caller.
	Connection decision.Connection `json:"connection"`

	// Decision is the final verdict.
	Decision decision.Decision `json:"decision"`

	// AnomalyScore is the score actually used; 0.0 when a conclusive
	// policy made scoring unnecessary.
	AnomalyScore float64 `json:"anomaly_score"`

	// MatchedPolicyID is the id of the policy that contributed to the
	// decision, empty when none matched.
	MatchedPolicyID string `json:"matched_policy_id,omitempty"`

	// EvaluatedAt is when the evaluation completed.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Store persists connection records.
type Store interface {
	// Save stores a record. Records are immutable once written.
	Save(ctx context.Context, rec *ConnectionRecord) error

	// Get returns a record by connection id, or ErrRecordNotFound.
	Get(ctx context.Context, connectionID string) (*ConnectionRecord, error)

	// List returns up to limit records, newest first. A limit <= 0
	// returns all records.
	List(ctx context.Context, limit int) ([]*ConnectionRecord, error)

	// Prune removes records evaluated before the cutoff and returns
	// the number deleted.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// StorageError wraps a backend failure with the audit operation that
// produced it.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit store %s: %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
