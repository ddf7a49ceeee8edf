package policystore

import (
	"context"

	"sentinel-hq/bastion/pkg/decision"
)

// Store persists security policies and hands out ordered snapshots for
// evaluation. Implementations must preserve creation order in List and
// report absence through ErrPolicyNotFound rather than panics or nils.
type Store interface {
	// Create stores a new policy. Returns ErrPolicyExists if the id is
	// already taken.
	Create(ctx context.Context, p decision.Policy) error

	// Update replaces an existing policy in place, keeping its position
	// in the evaluation order. Returns ErrPolicyNotFound if absent.
	Update(ctx context.Context, id string, p decision.Policy) error

	// Get returns a policy by id, or ErrPolicyNotFound.
	Get(ctx context.Context, id string) (decision.Policy, error)

	// Delete removes a policy by id, or returns ErrPolicyNotFound.
	Delete(ctx context.Context, id string) error

	// List returns all policies in creation order. The returned slice
	// is a snapshot owned by the caller.
	List(ctx context.Context) ([]decision.Policy, error)

	// Replace atomically swaps the entire policy set for the given
	// one, preserving the order of the slice as the new evaluation
	// order. Readers observe either the old set or the new set in
	// full, never an intermediate state, and a failed Replace leaves
	// the old set intact.
	Replace(ctx context.Context, policies []decision.Policy) error

	// Close releases backend resources.
	Close() error
}
