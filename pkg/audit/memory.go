package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage. Records are
// lost when the process exits; use the SQLite backend when the audit
// trail must survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ConnectionRecord
	order   []string // insertion order, oldest first
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*ConnectionRecord),
	}
}

// Save stores a record.
func (s *MemoryStore) Save(ctx context.Context, rec *ConnectionRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ConnectionID == "" {
		return fmt.Errorf("connection id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ConnectionID]; !ok {
		s.order = append(s.order, rec.ConnectionID)
	}
	clone := *rec
	s.records[rec.ConnectionID] = &clone
	return nil
}

// Get returns a record by connection id.
func (s *MemoryStore) Get(ctx context.Context, connectionID string) (*ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[connectionID]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", connectionID, ErrRecordNotFound)
	}
	clone := *rec
	return &clone, nil
}

// List returns up to limit records, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*ConnectionRecord, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		clone := *s.records[s.order[i]]
		out = append(out, &clone)
	}
	return out, nil
}

// Prune removes records evaluated before the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].EvaluatedAt.Before(olderThan) {
			delete(s.records, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
