package policystore

import (
	"context"
	"fmt"
	"sync"

	"sentinel-hq/bastion/pkg/decision"
)

// MemoryStore implements Store using in-memory storage. It is the
// default backend; all policies are lost when the process exits.
//
// MemoryStore is thread-safe and preserves creation order with an
// ordered id slice alongside the lookup map.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]decision.Policy
	order    []string
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]decision.Policy),
	}
}

// Create stores a new policy at the end of the evaluation order.
func (s *MemoryStore) Create(ctx context.Context, p decision.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id cannot be empty")
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy %q: conditions cannot be empty", p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.ID]; ok {
		return fmt.Errorf("policy %q: %w", p.ID, ErrPolicyExists)
	}

	s.policies[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

// Update replaces an existing policy, keeping its position.
func (s *MemoryStore) Update(ctx context.Context, id string, p decision.Policy) error {
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy %q: conditions cannot be empty", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}

	p.ID = id
	s.policies[id] = p
	return nil
}

// Get returns a policy by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (decision.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return decision.Policy{}, fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}
	return p, nil
}

// Delete removes a policy by id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}

	delete(s.policies, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns all policies in creation order.
func (s *MemoryStore) List(ctx context.Context) ([]decision.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]decision.Policy, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.policies[id])
	}
	return snapshot, nil
}

// Replace atomically swaps the entire policy set. The new map and
// order are built before the lock is taken, so readers see either the
// complete old set or the complete new set.
func (s *MemoryStore) Replace(ctx context.Context, policies []decision.Policy) error {
	newPolicies := make(map[string]decision.Policy, len(policies))
	newOrder := make([]string, 0, len(policies))
	for _, p := range policies {
		if p.ID == "" {
			return fmt.Errorf("policy id cannot be empty")
		}
		if len(p.Conditions) == 0 {
			return fmt.Errorf("policy %q: conditions cannot be empty", p.ID)
		}
		if _, ok := newPolicies[p.ID]; ok {
			return fmt.Errorf("policy %q: %w", p.ID, ErrPolicyExists)
		}
		newPolicies[p.ID] = p
		newOrder = append(newOrder, p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies = newPolicies
	s.order = newOrder
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
