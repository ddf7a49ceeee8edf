package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sentinel-hq/bastion/pkg/audit"
	"sentinel-hq/bastion/pkg/decision"
)

func seedRecords(t *testing.T, store audit.Store, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &audit.ConnectionRecord{
			ConnectionID: fmt.Sprintf("conn-%d", i),
			Connection: decision.Connection{
				SourceIP:        "192.168.1.10",
				DestinationIP:   "10.0.0.5",
				DestinationPort: 443,
				Protocol:        decision.ProtocolTCP,
				Timestamp:       base.Add(time.Duration(i) * time.Hour),
			},
			Decision:     decision.DecisionAllow,
			AnomalyScore: 0.2,
			EvaluatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Save(context.Background(), rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestPruneByAge(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	// 3 records well past the retention window, 2 recent ones.
	seedRecords(t, store, 3, time.Now().AddDate(0, 0, -60))
	seedRecords(t, store, 2, time.Now().Add(-time.Hour))

	pruner := NewPruner(store, &Config{RetentionDays: 30})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() deleted %d, want 3", deleted)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestPruneByCount(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	seedRecords(t, store, 10, time.Now().Add(-10*time.Hour))

	pruner := NewPruner(store, &Config{MaxRecords: 4})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 6 {
		t.Errorf("Prune() deleted %d, want 6", deleted)
	}

	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("List() returned %d records, want 4", len(records))
	}
	// The newest records survive.
	if records[0].ConnectionID != "conn-9" {
		t.Errorf("records[0].ConnectionID = %q, want conn-9", records[0].ConnectionID)
	}
	if records[3].ConnectionID != "conn-6" {
		t.Errorf("records[3].ConnectionID = %q, want conn-6", records[3].ConnectionID)
	}
}

func TestPruneDisabled(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	seedRecords(t, store, 5, time.Now().AddDate(0, 0, -365))

	pruner := NewPruner(store, &Config{RetentionDays: 0, MaxRecords: 0})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() deleted %d, want 0", deleted)
	}
}

func TestSchedulerInvalidCron(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	pruner := NewPruner(store, &Config{
		RetentionDays: 30,
		PruneSchedule: "not a cron expression",
	})

	if err := pruner.Start(context.Background()); err == nil {
		t.Error("Start() with invalid cron expression should return error")
	}
}

func TestSchedulerEmptyScheduleIsNoop(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	pruner := NewPruner(store, &Config{RetentionDays: 30, PruneSchedule: ""})

	if err := pruner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if pruner.scheduler.IsRunning() {
		t.Error("scheduler should not be running with empty schedule")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	store := audit.NewMemoryStore()
	defer store.Close()

	pruner := NewPruner(store, &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !pruner.scheduler.IsRunning() {
		t.Error("scheduler should be running after Start()")
	}
	if pruner.NextPruning() == nil {
		t.Error("NextPruning() should not be nil while running")
	}

	pruner.Stop()
	if pruner.scheduler.IsRunning() {
		t.Error("scheduler should not be running after Stop()")
	}
}
