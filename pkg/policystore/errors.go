package policystore

import (
	"errors"
	"fmt"
)

// Sentinel errors for store lookups.
var (
	// ErrPolicyNotFound indicates the requested policy id does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyExists indicates a create collided with an existing id.
	ErrPolicyExists = errors.New("policy already exists")
)

// StoreError wraps a backend failure with the store operation that
// produced it.
type StoreError struct {
	Backend string
	Op      string
	Cause   error
}

// NewStoreError creates a StoreError.
func NewStoreError(backend, op string, cause error) *StoreError {
	return &StoreError{Backend: backend, Op: op, Cause: cause}
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("policy store %s: %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
