package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sentinel-hq/bastion/pkg/decision"
)

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite audit configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	config    *SQLiteConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt  *sql.Stmt
	getStmt   *sql.Stmt
	pruneStmt *sql.Stmt
	countStmt *sql.Stmt
}

// NewSQLiteStore creates a SQLite audit store, initializing the schema
// and enabling WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize applies pragmas, creates the schema, and prepares
// statements.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return NewStorageError("sqlite", "enable WAL", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return NewStorageError("sqlite", "set busy timeout", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS connection_records (
		connection_id TEXT PRIMARY KEY,
		source_ip TEXT NOT NULL,
		destination_ip TEXT NOT NULL,
		destination_port INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		observed_at INTEGER NOT NULL,
		decision TEXT NOT NULL,
		anomaly_score REAL NOT NULL,
		matched_policy_id TEXT,
		evaluated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_evaluated_at ON connection_records(evaluated_at);
	CREATE INDEX IF NOT EXISTS idx_records_decision ON connection_records(decision);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return NewStorageError("sqlite", "init schema", err)
	}

	return s.prepareStatements()
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO connection_records
			(connection_id, source_ip, destination_ip, destination_port, protocol,
			 observed_at, decision, anomaly_score, matched_policy_id, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare save", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT connection_id, source_ip, destination_ip, destination_port, protocol,
		       observed_at, decision, anomaly_score, matched_policy_id, evaluated_at
		FROM connection_records
		WHERE connection_id = ?
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare get", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM connection_records WHERE evaluated_at < ?
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare prune", err)
	}

	s.countStmt, err = s.db.Prepare(`
		SELECT COUNT(*) FROM connection_records
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare count", err)
	}

	return nil
}

// Save stores a record.
func (s *SQLiteStore) Save(ctx context.Context, rec *ConnectionRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ConnectionID == "" {
		return fmt.Errorf("connection id cannot be empty")
	}

	var matchedID sql.NullString
	if rec.MatchedPolicyID != "" {
		matchedID = sql.NullString{String: rec.MatchedPolicyID, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.saveStmt.ExecContext(ctx,
		rec.ConnectionID,
		rec.Connection.SourceIP,
		rec.Connection.DestinationIP,
		rec.Connection.DestinationPort,
		string(rec.Connection.Protocol),
		rec.Connection.Timestamp.UnixNano(),
		string(rec.Decision),
		rec.AnomalyScore,
		matchedID,
		rec.EvaluatedAt.UnixNano(),
	)
	if err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	return nil
}

// Get returns a record by connection id.
func (s *SQLiteStore) Get(ctx context.Context, connectionID string) (*ConnectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRecord(s.getStmt.QueryRowContext(ctx, connectionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %q: %w", connectionID, ErrRecordNotFound)
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*ConnectionRecord, error) {
	query := `
		SELECT connection_id, source_ip, destination_ip, destination_port, protocol,
		       observed_at, decision, anomaly_score, matched_policy_id, evaluated_at
		FROM connection_records
		ORDER BY evaluated_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var records []*ConnectionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "iterate rows", err)
	}
	return records, nil
}

// Prune removes records evaluated before the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return int(deleted), nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Close releases database resources. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.getStmt, s.pruneStmt, s.countStmt} {
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

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reassembles a ConnectionRecord from a result row.
func scanRecord(row rowScanner) (*ConnectionRecord, error) {
	var (
		rec         ConnectionRecord
		protocol    string
		dec         string
		observedAt  int64
		evaluatedAt int64
		matchedID   sql.NullString
	)

	err := row.Scan(
		&rec.ConnectionID,
		&rec.Connection.SourceIP,
		&rec.Connection.DestinationIP,
		&rec.Connection.DestinationPort,
		&protocol,
		&observedAt,
		&dec,
		&rec.AnomalyScore,
		&matchedID,
		&evaluatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Connection.Protocol = decision.Protocol(protocol)
	rec.Connection.Timestamp = time.Unix(0, observedAt).UTC()
	rec.Decision = decision.Decision(dec)
	rec.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	if matchedID.Valid {
		rec.MatchedPolicyID = matchedID.String
	}
	return &rec, nil
}
