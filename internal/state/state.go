// Package state persists the history of deploy and stop runs in sqlite.
//
// Only stack names, origins and outcomes are stored. Resolved secret values never
// reach this package.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stackdeploy/stackdeploy/internal/deploy"
)

// Stack statuses stored in run_stacks.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// StackResult is the recorded outcome of one stack.
type StackResult struct {
	Name   string
	Origin string
	Status string
	Error  string
}

// Run is one recorded deploy or stop pass.
type Run struct {
	ID         string
	Action     string
	Host       string
	Commit     string
	StartedAt  time.Time
	FinishedAt time.Time
	Stacks     []StackResult
}

// Failed counts stacks that did not succeed.
func (r Run) Failed() int {
	n := 0
	for _, s := range r.Stacks {
		if s.Status != StatusOK {
			n++
		}
	}
	return n
}

// RunFromReport converts a driver report into a Run with a fresh id.
// The run spans from the earliest stack start to the latest stack finish.
func RunFromReport(report deploy.Report, host, commit string) Run {
	run := Run{
		ID:     uuid.NewString(),
		Action: string(report.Action),
		Host:   host,
		Commit: commit,
		Stacks: make([]StackResult, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		res := StackResult{Name: o.Stack, Origin: o.Origin.String(), Status: StatusOK}
		if o.Err != nil {
			res.Status = StatusFailed
			res.Error = o.Err.Error()
		}
		run.Stacks = append(run.Stacks, res)

		if !o.Started.IsZero() && (run.StartedAt.IsZero() || o.Started.Before(run.StartedAt)) {
			run.StartedAt = o.Started
		}
		if o.Finished.After(run.FinishedAt) {
			run.FinishedAt = o.Finished
		}
	}
	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}
	return run
}

// Store is a sqlite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  host TEXT NOT NULL,
  commit_hash TEXT NOT NULL,
  started_at_ns INTEGER NOT NULL,
  finished_at_ns INTEGER NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS run_stacks (
  run_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  origin TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT NOT NULL,
  PRIMARY KEY (run_id, position),
  FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Record stores run and its stack results in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (run_id, action, host, commit_hash, started_at_ns, finished_at_ns)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, run.Action, run.Host, run.Commit, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for i, st := range run.Stacks {
		_, err = tx.ExecContext(ctx, `
INSERT INTO run_stacks (run_id, position, name, origin, status, error)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, i, st.Name, st.Origin, st.Status, st.Error)
		if err != nil {
			return fmt.Errorf("insert stack %s of run %s: %w", st.Name, run.ID, err)
		}
	}
	return tx.Commit()
}

// Runs returns up to limit runs, newest first. A non-positive limit returns all runs.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, action, host, commit_hash, started_at_ns, finished_at_ns
FROM runs ORDER BY started_at_ns DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run              Run
			started, finished int64
		)
		if err := rows.Scan(&run.ID, &run.Action, &run.Host, &run.Commit, &started, &finished); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, started)
		run.FinishedAt = time.Unix(0, finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		stacks, err := s.stacks(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stacks = stacks
	}
	return runs, nil
}

func (s *Store) stacks(ctx context.Context, runID string) ([]StackResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, origin, status, error FROM run_stacks WHERE run_id = ? ORDER BY position
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stacks of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StackResult
	for rows.Next() {
		var st StackResult
		if err := rows.Scan(&st.Name, &st.Origin, &st.Status, &st.Error); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
