package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sentinel-hq/bastion/pkg/audit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain connection
	// records. 0 means keep records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
		MaxRecords:    0,
	}
}

// Pruner enforces retention policies on audit records.
type Pruner struct {
	store     audit.Store
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner.
func NewPruner(store audit.Store, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "audit.retention"),
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes audit records older than the retention period or
// exceeding the max record count.
//
// Pruning happens in two phases:
//  1. Age-based: delete records older than retention_days
//  2. Count-based: if total records > max_records, delete oldest
//
// Both can run together. Returns the total number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	var totalDeleted int

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
		totalDeleted += deleted
	}

	if totalDeleted == 0 {
		p.logger.Debug("no records pruned",
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Info("audit pruning completed",
			"total_deleted", totalDeleted,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}

	return totalDeleted, nil
}

// pruneByAge deletes records older than the retention period.
func (p *Pruner) pruneByAge(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)

	p.logger.Debug("pruning by age",
		"cutoff_time", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	return p.store.Prune(ctx, cutoff)
}

// pruneByCount deletes the oldest records if the total count exceeds
// max_records.
func (p *Pruner) pruneByCount(ctx context.Context) (int, error) {
	count, err := p.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	if count <= p.config.MaxRecords {
		p.logger.Debug("record count within limit",
			"current", count,
			"max", p.config.MaxRecords,
		)
		return 0, nil
	}

	// List returns newest first, so the record at index max_records-1
	// is the oldest one we keep. Everything evaluated before it goes.
	kept, err := p.store.List(ctx, p.config.MaxRecords)
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	cutoff := kept[len(kept)-1].EvaluatedAt

	p.logger.Info("record count exceeds limit, pruning oldest",
		"current_count", count,
		"max_records", p.config.MaxRecords,
		"cutoff_time", cutoff,
	)

	return p.store.Prune(ctx, cutoff)
}

// Start starts the automatic pruning scheduler.
// Call this when starting the application.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
// Call this during graceful shutdown.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
