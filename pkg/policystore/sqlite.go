package policystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"sentinel-hq/bastion/pkg/decision"
)

// SQLiteStore implements Store using SQLite for persistence. It is
// suitable for single-instance deployments where policies must survive
// restarts.
//
// The store keeps a monotonically increasing position column so List
// reproduces creation order exactly; updates keep the original
// position, so editing a policy never changes the evaluation tie-break.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once

	createStmt *sql.Stmt
	updateStmt *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite policy store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite policy store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{
		DBPath:      dbPath,
		BusyTimeout: 5 * time.Second,
	})
}

// NewSQLiteStoreWithConfig creates a SQLite policy store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStoreError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, NewStoreError("sqlite", "init schema", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, NewStoreError("sqlite", "prepare statements", err)
	}

	return store, nil
}

// initSchema creates the policy table if it does not exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		policy_id TEXT PRIMARY KEY,
		conditions TEXT NOT NULL,
		action TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_position ON policies(position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.createStmt, err = s.db.Prepare(`
		INSERT INTO policies (policy_id, conditions, action, position, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM policies), ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare create statement: %w", err)
	}

	s.updateStmt, err = s.db.Prepare(`
		UPDATE policies SET conditions = ?, action = ?, updated_at = ?
		WHERE policy_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT policy_id, conditions, action FROM policies WHERE policy_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM policies WHERE policy_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT policy_id, conditions, action FROM policies ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Create stores a new policy at the end of the evaluation order.
func (s *SQLiteStore) Create(ctx context.Context, p decision.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id cannot be empty")
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy %q: conditions cannot be empty", p.ID)
	}

	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return NewStoreError("sqlite", "marshal conditions", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if exists, err := s.existsLocked(ctx, p.ID); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("policy %q: %w", p.ID, ErrPolicyExists)
	}

	now := time.Now().Unix()
	if _, err := s.createStmt.ExecContext(ctx, p.ID, string(conditions), string(p.Action), now, now); err != nil {
		return NewStoreError("sqlite", "create", err)
	}
	return nil
}

// Update replaces an existing policy, keeping its position.
func (s *SQLiteStore) Update(ctx context.Context, id string, p decision.Policy) error {
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy %q: conditions cannot be empty", id)
	}

	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return NewStoreError("sqlite", "marshal conditions", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.updateStmt.ExecContext(ctx, string(conditions), string(p.Action), time.Now().Unix(), id)
	if err != nil {
		return NewStoreError("sqlite", "update", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("sqlite", "update", err)
	}
	if affected == 0 {
		return fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}
	return nil
}

// Get returns a policy by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (decision.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		policyID   string
		conditions string
		action     string
	)

	err := s.getStmt.QueryRowContext(ctx, id).Scan(&policyID, &conditions, &action)
	if errors.Is(err, sql.ErrNoRows) {
		return decision.Policy{}, fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}
	if err != nil {
		return decision.Policy{}, NewStoreError("sqlite", "get", err)
	}

	return unmarshalPolicy(policyID, conditions, action)
}

// Delete removes a policy by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.deleteStmt.ExecContext(ctx, id)
	if err != nil {
		return NewStoreError("sqlite", "delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("sqlite", "delete", err)
	}
	if affected == 0 {
		return fmt.Errorf("policy %q: %w", id, ErrPolicyNotFound)
	}
	return nil
}

// List returns all policies in creation order.
func (s *SQLiteStore) List(ctx context.Context) ([]decision.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, NewStoreError("sqlite", "list", err)
	}
	defer rows.Close()

	var policies []decision.Policy
	for rows.Next() {
		var (
			policyID   string
			conditions string
			action     string
		)
		if err := rows.Scan(&policyID, &conditions, &action); err != nil {
			return nil, NewStoreError("sqlite", "scan row", err)
		}

		p, err := unmarshalPolicy(policyID, conditions, action)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, NewStoreError("sqlite", "iterate rows", err)
	}

	return policies, nil
}

// Replace atomically swaps the entire policy set in one transaction.
// A failure at any point rolls back to the previous set.
func (s *SQLiteStore) Replace(ctx context.Context, policies []decision.Policy) error {
	seen := make(map[string]struct{}, len(policies))
	for _, p := range policies {
		if p.ID == "" {
			return fmt.Errorf("policy id cannot be empty")
		}
		if len(p.Conditions) == 0 {
			return fmt.Errorf("policy %q: conditions cannot be empty", p.ID)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("policy %q: %w", p.ID, ErrPolicyExists)
		}
		seen[p.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStoreError("sqlite", "replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM policies"); err != nil {
		return NewStoreError("sqlite", "replace", err)
	}

	now := time.Now().Unix()
	for i, p := range policies {
		conditions, err := json.Marshal(p.Conditions)
		if err != nil {
			return NewStoreError("sqlite", "marshal conditions", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO policies (policy_id, conditions, action, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, string(conditions), string(p.Action), i+1, now, now)
		if err != nil {
			return NewStoreError("sqlite", "replace", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("sqlite", "replace", err)
	}
	return nil
}

// Close releases database resources. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.createStmt, s.updateStmt, s.getStmt, s.deleteStmt, s.listStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// existsLocked reports whether a policy id is present. Caller holds the
// write lock.
func (s *SQLiteStore) existsLocked(ctx context.Context, id string) (bool, error) {
	var policyID, conditions, action string
	err := s.getStmt.QueryRowContext(ctx, id).Scan(&policyID, &conditions, &action)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, NewStoreError("sqlite", "exists", err)
	}
	return true, nil
}

// unmarshalPolicy reassembles a policy from its stored columns.
func unmarshalPolicy(id, conditions, action string) (decision.Policy, error) {
	p := decision.Policy{
		ID:     id,
		Action: decision.Decision(action),
	}
	if err := json.Unmarshal([]byte(conditions), &p.Conditions); err != nil {
		return decision.Policy{}, NewStoreError("sqlite", "unmarshal conditions", err)
	}
	return p, nil
}
