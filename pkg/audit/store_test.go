package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"sentinel-hq/bastion/pkg/decision"
)

// auditFactories builds every backend so the contract tests run
// against all of them.
var auditFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		cfg := DefaultSQLiteConfig()
		cfg.Path = filepath.Join(t.TempDir(), "audit.db")
		s, err := NewSQLiteStore(cfg)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		return s
	},
}

func testRecord(id string, evaluatedAt time.Time) *ConnectionRecord {
	return &ConnectionRecord{
		ConnectionID: id,
		Connection: decision.Connection{
			SourceIP:        "192.168.1.10",
			DestinationIP:   "10.0.0.5",
			DestinationPort: 443,
			Protocol:        decision.ProtocolTCP,
			Timestamp:       evaluatedAt.Add(-time.Second),
		},
		Decision:        decision.DecisionAllow,
		AnomalyScore:    0.12,
		MatchedPolicyID: "",
		EvaluatedAt:     evaluatedAt,
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	for name, factory := range auditFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			now := time.Now().UTC().Truncate(time.Microsecond)
			rec := testRecord("conn-1", now)
			rec.Decision = decision.DecisionBlock
			rec.AnomalyScore = 0.91
			rec.MatchedPolicyID = "P-SSH"

			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := store.Get(ctx, "conn-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Decision != decision.DecisionBlock {
				t.Errorf("Decision = %q, want %q", got.Decision, decision.DecisionBlock)
			}
			if got.AnomalyScore != 0.91 {
				t.Errorf("AnomalyScore = %v, want 0.91", got.AnomalyScore)
			}
			if got.MatchedPolicyID != "P-SSH" {
				t.Errorf("MatchedPolicyID = %q, want %q", got.MatchedPolicyID, "P-SSH")
			}
			if got.Connection.DestinationPort != 443 {
				t.Errorf("DestinationPort = %d, want 443", got.Connection.DestinationPort)
			}
			if !got.EvaluatedAt.Equal(now) {
				t.Errorf("EvaluatedAt = %v, want %v", got.EvaluatedAt, now)
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, factory := range auditFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			_, err := store.Get(context.Background(), "no-such-connection")
			if !errors.Is(err, ErrRecordNotFound) {
				t.Errorf("Get() error = %v, want ErrRecordNotFound", err)
			}
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for name, factory := range auditFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			base := time.Now().UTC().Truncate(time.Microsecond)
			for i := 0; i < 5; i++ {
				rec := testRecord(fmt.Sprintf("conn-%d", i), base.Add(time.Duration(i)*time.Minute))
				if err := store.Save(ctx, rec); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}

			records, err := store.List(ctx, 0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(records) != 5 {
				t.Fatalf("List() returned %d records, want 5", len(records))
			}
			for i, rec := range records {
				want := fmt.Sprintf("conn-%d", 4-i)
				if rec.ConnectionID != want {
					t.Errorf("records[%d].ConnectionID = %q, want %q", i, rec.ConnectionID, want)
				}
			}

			limited, err := store.List(ctx, 2)
			if err != nil {
				t.Fatalf("List(2) error = %v", err)
			}
			if len(limited) != 2 {
				t.Fatalf("List(2) returned %d records, want 2", len(limited))
			}
			if limited[0].ConnectionID != "conn-4" {
				t.Errorf("limited[0].ConnectionID = %q, want conn-4", limited[0].ConnectionID)
			}
		})
	}
}

func TestStorePrune(t *testing.T) {
	for name, factory := range auditFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			base := time.Now().UTC().Truncate(time.Microsecond)
			old := testRecord("conn-old", base.Add(-48*time.Hour))
			fresh := testRecord("conn-fresh", base)
			if err := store.Save(ctx, old); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := store.Save(ctx, fresh); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			deleted, err := store.Prune(ctx, base.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != 1 {
				t.Errorf("Prune() deleted %d, want 1", deleted)
			}

			if _, err := store.Get(ctx, "conn-old"); !errors.Is(err, ErrRecordNotFound) {
				t.Errorf("Get(conn-old) error = %v, want ErrRecordNotFound", err)
			}
			if _, err := store.Get(ctx, "conn-fresh"); err != nil {
				t.Errorf("Get(conn-fresh) error = %v", err)
			}

			count, err := store.Count(ctx)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != 1 {
				t.Errorf("Count() = %d, want 1", count)
			}
		})
	}
}

func TestSQLiteStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	cfg := DefaultSQLiteConfig()
	cfg.Path = path
	store, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := store.Save(ctx, testRecord("conn-persist", now)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Idempotent close.
	if err := store.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "conn-persist")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Connection.SourceIP != "192.168.1.10" {
		t.Errorf("SourceIP = %q, want 192.168.1.10", got.Connection.SourceIP)
	}
}
