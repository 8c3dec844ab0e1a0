// Package store persists assertion run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"expectkit/internal/logging"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one CLI invocation: a single check or a whole suite.
type Run struct {
	ID        string
	Command   string // check, suite
	Source    string // fixture or suite path
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Results   []Result
}

// Result is the outcome of one assertion within a run.
type Result struct {
	Name     string
	Phrase   string
	Passed   bool
	Message  string
	Duration time.Duration
}

// OK reports whether every result passed.
func (r *Run) OK() bool { return r.Failed == 0 }

// HistoryStore records runs and their results.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*HistoryStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize history store %s: %v", path, err)
		db.Close()
		return nil, err
	}
	logging.Store("History store opened: %s", path)
	return s, nil
}

func (s *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		source TEXT DEFAULT '',
		started_at INTEGER NOT NULL, -- unix nanoseconds
		duration_ms INTEGER DEFAULT 0,
		passed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		phrase TEXT NOT NULL,
		passed INTEGER NOT NULL,
		message TEXT DEFAULT '',
		duration_ms INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_phrase ON results(phrase);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := RunMigrations(s.db); err != nil {
		return err
	}
	return recordSchemaVersion(s.db)
}

// Path returns the database location.
func (s *HistoryStore) Path() string { return s.dbPath }

// Close closes the database.
func (s *HistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Record stores a run and its results in one transaction. Passed and
// Failed are recomputed from the results.
func (s *HistoryStore) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	timer := logging.StartTimer(logging.CategoryStore, "Record")
	defer timer.Stop()

	run.Passed, run.Failed = 0, 0
	for _, r := range run.Results {
		if r.Passed {
			run.Passed++
		} else {
			run.Failed++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, command, source, started_at, duration_ms, passed, failed) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Source, run.StartedAt.UnixNano(), run.Duration.Milliseconds(), run.Passed, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, name, phrase, passed, message, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range run.Results {
		if _, err := stmt.ExecContext(ctx, run.ID, r.Name, r.Phrase, boolToInt(r.Passed), r.Message, r.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert result %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logging.StoreError("Failed to commit run %s: %v", run.ID, err)
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	logging.Store("Recorded run %s (%s): passed=%d failed=%d", run.ID, run.Command, run.Passed, run.Failed)
	return nil
}

// Recent returns up to limit runs, newest first, without their results.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, source, started_at, duration_ms, passed, failed FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			logging.StoreDebug("Skipping unreadable run row: %v", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns a run with its results.
func (s *HistoryStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, source, started_at, duration_ms, passed, failed FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, phrase, passed, message, duration_ms FROM results WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		var passed int
		var ms int64
		if err := rows.Scan(&r.Name, &r.Phrase, &passed, &r.Message, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Passed = passed != 0
		r.Duration = time.Duration(ms) * time.Millisecond
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

// PhraseStats summarizes how often a phrase passed and failed.
type PhraseStats struct {
	Phrase string
	Passed int
	Failed int
}

// Stats aggregates results per phrase, most failures first.
func (s *HistoryStore) Stats(ctx context.Context) ([]PhraseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT phrase, SUM(passed), COUNT(*) - SUM(passed) AS failures
		FROM results GROUP BY phrase ORDER BY failures DESC, phrase`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate results: %w", err)
	}
	defer rows.Close()

	var stats []PhraseStats
	for rows.Next() {
		var ps PhraseStats
		if err := rows.Scan(&ps.Phrase, &ps.Passed, &ps.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many went.
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM results WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff.UnixNano()); err != nil {
		return 0, fmt.Errorf("failed to prune results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	logging.Store("Pruned %d runs older than %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var started, ms int64
	if err := sc.Scan(&run.ID, &run.Command, &run.Source, &started, &ms, &run.Passed, &run.Failed); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, started).UTC()
	run.Duration = time.Duration(ms) * time.Millisecond
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
