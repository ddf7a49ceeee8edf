package policystore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"sentinel-hq/bastion/pkg/decision"
)

func testPolicy(id string, action decision.Decision) decision.Policy {
	return decision.Policy{
		ID: id,
		Conditions: []decision.Condition{
			{Field: decision.FieldDestinationPort, Operator: decision.OperatorEqual, Value: "22"},
		},
		Action: action,
	}
}

// storeFactories returns constructors for each backend so the contract
// tests run against both.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "policies.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			return store
		},
	}
}

// TestStore_CreateGetDelete exercises the basic lifecycle on both
// backends.
func TestStore_CreateGetDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			p := testPolicy("P-001", decision.DecisionBlock)
			if err := store.Create(ctx, p); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			got, err := store.Get(ctx, "P-001")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ID != "P-001" || got.Action != decision.DecisionBlock {
				t.Errorf("Get() = %+v, want stored policy", got)
			}
			if len(got.Conditions) != 1 || got.Conditions[0].Value != "22" {
				t.Errorf("Get() conditions = %+v, want original conditions", got.Conditions)
			}

			if err := store.Delete(ctx, "P-001"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, "P-001"); !errors.Is(err, ErrPolicyNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrPolicyNotFound", err)
			}
		})
	}
}

// TestStore_DuplicateCreate verifies ErrPolicyExists on id collision.
func TestStore_DuplicateCreate(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if err := store.Create(ctx, testPolicy("P-001", decision.DecisionAllow)); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			err := store.Create(ctx, testPolicy("P-001", decision.DecisionBlock))
			if !errors.Is(err, ErrPolicyExists) {
				t.Errorf("Create() duplicate error = %v, want ErrPolicyExists", err)
			}
		})
	}
}

// TestStore_UpdateMissing verifies ErrPolicyNotFound surfaces on update
// and delete of absent ids.
func TestStore_UpdateMissing(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			err := store.Update(ctx, "P-404", testPolicy("P-404", decision.DecisionAllow))
			if !errors.Is(err, ErrPolicyNotFound) {
				t.Errorf("Update() error = %v, want ErrPolicyNotFound", err)
			}
			if err := store.Delete(ctx, "P-404"); !errors.Is(err, ErrPolicyNotFound) {
				t.Errorf("Delete() error = %v, want ErrPolicyNotFound", err)
			}
		})
	}
}

// TestStore_ListPreservesCreationOrder verifies List hands back the
// evaluation snapshot in creation order, with updates keeping position.
func TestStore_ListPreservesCreationOrder(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			ids := []string{"P-003", "P-001", "P-002"}
			for _, id := range ids {
				if err := store.Create(ctx, testPolicy(id, decision.DecisionAlert)); err != nil {
					t.Fatalf("Create(%s) error = %v", id, err)
				}
			}

			// Updating the first policy must not move it.
			updated := testPolicy("P-003", decision.DecisionBlock)
			if err := store.Update(ctx, "P-003", updated); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			got, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(ids) {
				t.Fatalf("List() returned %d policies, want %d", len(got), len(ids))
			}
			for i, id := range ids {
				if got[i].ID != id {
					t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
			if got[0].Action != decision.DecisionBlock {
				t.Errorf("List()[0].Action = %v, want updated block action", got[0].Action)
			}
		})
	}
}

// TestStore_RejectsEmptyConditions verifies the non-empty conditions
// invariant at the store boundary.
func TestStore_RejectsEmptyConditions(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			p := decision.Policy{ID: "P-EMPTY", Action: decision.DecisionAllow}
			if err := store.Create(ctx, p); err == nil {
				t.Error("Create() error = nil, want error for empty conditions")
			}
		})
	}
}

// TestSQLiteStore_PersistsAcrossReopen verifies policies and their
// ordering survive a close/reopen cycle.
func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "policies.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	for _, id := range []string{"P-B", "P-A"} {
		if err := store.Create(ctx, testPolicy(id, decision.DecisionAlert)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "P-B" || got[1].ID != "P-A" {
		t.Errorf("List() after reopen = %+v, want [P-B P-A]", got)
	}
}

// TestStore_ReplaceSwapsEntireSet verifies Replace installs the new set
// in the given order and drops everything from the old set.
func TestStore_ReplaceSwapsEntireSet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			for _, id := range []string{"OLD-1", "OLD-2"} {
				if err := store.Create(ctx, testPolicy(id, decision.DecisionAllow)); err != nil {
					t.Fatalf("Create(%s) error = %v", id, err)
				}
			}

			next := []decision.Policy{
				testPolicy("NEW-1", decision.DecisionBlock),
				testPolicy("NEW-2", decision.DecisionAlert),
				testPolicy("NEW-3", decision.DecisionAllow),
			}
			if err := store.Replace(ctx, next); err != nil {
				t.Fatalf("Replace() error = %v", err)
			}

			got, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("List() returned %d policies, want 3", len(got))
			}
			for i, want := range []string{"NEW-1", "NEW-2", "NEW-3"} {
				if got[i].ID != want {
					t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, want)
				}
			}
			if _, err := store.Get(ctx, "OLD-1"); !errors.Is(err, ErrPolicyNotFound) {
				t.Errorf("Get(OLD-1) error = %v, want ErrPolicyNotFound", err)
			}
		})
	}
}

// TestStore_ReplaceFailureKeepsOldSet verifies a rejected Replace
// leaves the previous policy set untouched.
func TestStore_ReplaceFailureKeepsOldSet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if err := store.Create(ctx, testPolicy("KEEP", decision.DecisionBlock)); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			dup := []decision.Policy{
				testPolicy("NEW", decision.DecisionAllow),
				testPolicy("NEW", decision.DecisionBlock),
			}
			if err := store.Replace(ctx, dup); !errors.Is(err, ErrPolicyExists) {
				t.Fatalf("Replace() with duplicate ids error = %v, want ErrPolicyExists", err)
			}

			got, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 1 || got[0].ID != "KEEP" {
				t.Errorf("List() after failed Replace = %+v, want only KEEP", got)
			}
		})
	}
}

// TestStore_ReplaceEmptySet verifies Replace with an empty slice clears
// the store.
func TestStore_ReplaceEmptySet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if err := store.Create(ctx, testPolicy("P-1", decision.DecisionBlock)); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if err := store.Replace(ctx, nil); err != nil {
				t.Fatalf("Replace(nil) error = %v", err)
			}

			got, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("List() returned %d policies, want 0", len(got))
			}
		})
	}
}

// TestMemoryStore_ReplaceNeverExposesPartialSet flips the store between
// a one-policy set and a three-policy set while a reader lists
// concurrently. Every observed snapshot must be one of the two complete
// sets.
func TestMemoryStore_ReplaceNeverExposesPartialSet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	small := []decision.Policy{testPolicy("S-1", decision.DecisionBlock)}
	large := []decision.Policy{
		testPolicy("L-1", decision.DecisionBlock),
		testPolicy("L-2", decision.DecisionAlert),
		testPolicy("L-3", decision.DecisionAllow),
	}
	if err := store.Replace(ctx, small); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			set := small
			if i%2 == 0 {
				set = large
			}
			if err := store.Replace(ctx, set); err != nil {
				t.Errorf("Replace() error = %v", err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		got, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 && len(got) != 3 {
			t.Fatalf("List() observed %d policies mid-reload, want 1 or 3", len(got))
		}
	}
}
