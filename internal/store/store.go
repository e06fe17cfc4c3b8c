// Package store persists runs, pipeline results, and metric results to
// SQLite. Persisted pipeline results are the re-scoring contract: scoring
// reads them back without re-running any tool, so API cost is incurred once
// per execution, not once per analysis.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a run id with no row behind it.
var ErrNotFound = errors.New("run not found")

// Schema holds every table the store uses. Applied by Open; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	plan TEXT,
	created_at INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS pipeline_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pipeline TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	doc_type TEXT,
	success INTEGER NOT NULL,
	total_cost_usd REAL NOT NULL,
	total_latency_us INTEGER NOT NULL,
	result_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, pipeline, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_pipeline_results_run ON pipeline_results(run_id);

CREATE TABLE IF NOT EXISTS metric_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pipeline TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	scores_json TEXT NOT NULL,
	diagnostics_json TEXT,
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, pipeline, doc_id, metric)
);
CREATE INDEX IF NOT EXISTS idx_metric_results_run ON metric_results(run_id);

CREATE TABLE IF NOT EXISTS metric_skips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pipeline TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	reason TEXT,
	undefined INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, pipeline, doc_id, metric)
);
CREATE INDEX IF NOT EXISTS idx_metric_skips_run ON metric_skips(run_id);
`

// Run states.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// Run is one benchmark sweep's identity row.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Plan        string     `json:"plan,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store wraps the SQLite database holding benchmark state.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the store at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	// modernc sqlite serializes writes per connection; a single connection
	// avoids SQLITE_BUSY under the document-parallel writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: logger.With("component", "store")}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply store schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRun records a new run in the running state.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	status := run.Status
	if status == "" {
		status = RunStatusRunning
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, plan, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, status, run.Plan, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun moves a run to a terminal status and stamps completion time.
func (s *Store) FinishRun(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`,
		status, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRun removes a run and everything recorded under it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of run %s: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	for _, table := range []string{"pipeline_results", "metric_results", "metric_skips"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s for run %s: %w", table, id, err)
		}
	}
	return tx.Commit()
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, plan, created_at, completed_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs newest first, up to limit (0 = all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, status, plan, created_at, completed_at FROM runs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRunID returns the most recent run's id, or an error when the store
// has no runs yet.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("store has no runs: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to find latest run: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.Status, &run.Plan, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		run.CompletedAt = &t
	}
	return &run, nil
}
