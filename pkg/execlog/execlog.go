// Package execlog persists hook invocation records in SQLite so workflow
// authors can audit and debug script behavior after the fact.
package execlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ormasoftchile/flowlogic/pkg/hooks"
)

// Entry is one stored hook execution.
type Entry struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	RunID      string        `json:"run_id"`
	HookID     string        `json:"hook_id"`
	HookName   string        `json:"hook_name,omitempty"`
	Phase      string        `json:"phase"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	Console    []string      `json:"console,omitempty"`
}

// Store is a SQLite-backed execution log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const migration = `
CREATE TABLE IF NOT EXISTS hook_executions (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	hook_id     TEXT NOT NULL,
	hook_name   TEXT NOT NULL DEFAULT '',
	phase       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	console     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_hook_executions_run  ON hook_executions(run_id, started_at);
CREATE INDEX IF NOT EXISTS idx_hook_executions_hook ON hook_executions(hook_id, started_at);
`

// Open opens (creating if needed) the execution log at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate execution log: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores one invocation and returns its generated id.
func (s *Store) Insert(ctx context.Context, inv hooks.Invocation) (string, error) {
	id := uuid.NewString()
	console, err := json.Marshal(inv.Console)
	if err != nil {
		return "", fmt.Errorf("marshal console output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hook_executions
			(id, workflow_id, run_id, hook_id, hook_name, phase, started_at, duration_ms, ok, error, console)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, inv.WorkflowID, inv.RunID, inv.HookID, inv.HookName, inv.Phase,
		inv.StartedAt.UTC().Format(time.RFC3339Nano),
		inv.Duration.Milliseconds(),
		boolToInt(inv.OK), inv.Error, string(console),
	)
	if err != nil {
		return "", fmt.Errorf("insert execution record: %w", err)
	}
	return id, nil
}

// Record implements hooks.Recorder. Failures are logged and swallowed: the
// engine fires and forgets, and a broken log must never fail a run.
func (s *Store) Record(inv hooks.Invocation) {
	if _, err := s.Insert(context.Background(), inv); err != nil {
		s.logger.Error("record hook execution", "hook", inv.HookID, "error", err)
	}
}

// ListByRun returns every execution of a run, oldest first.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	return s.list(ctx, `
		SELECT id, workflow_id, run_id, hook_id, hook_name, phase, started_at, duration_ms, ok, error, console
		FROM hook_executions WHERE run_id = ? ORDER BY started_at, id`, runID)
}

// ListByHook returns the most recent executions of one hook, newest first,
// capped at limit.
func (s *Store) ListByHook(ctx context.Context, hookID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `
		SELECT id, workflow_id, run_id, hook_id, hook_name, phase, started_at, duration_ms, ok, error, console
		FROM hook_executions WHERE hook_id = ? ORDER BY started_at DESC, id LIMIT ?`, hookID, limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt, console string
		var durationMs int64
		var ok int
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.RunID, &e.HookID, &e.HookName,
			&e.Phase, &startedAt, &durationMs, &ok, &e.Error, &console); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.OK = ok != 0
		if err := json.Unmarshal([]byte(console), &e.Console); err != nil {
			return nil, fmt.Errorf("parse console output: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
