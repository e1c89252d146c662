// Package journal keeps a local SQLite history of sync runs.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type Journal struct {
	db  *sql.DB
	log *log.Logger
}

// Run is one completed sync.
type Run struct {
	ID        string        `json:"id"`
	Repo      string        `json:"repo"`
	Provider  string        `json:"provider"`
	File      string        `json:"file"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	DryRun    bool          `json:"dryRun"`
	Written   bool          `json:"written"`

	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Untouched int `json:"untouched"`
	Skipped   int `json:"skipped"`

	Entries []Entry `json:"entries,omitempty"`
}

// Entry is the outcome for one issue within a run.
type Entry struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Action  string   `json:"action"`
	Changes []string `json:"changes,omitempty"`
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, log: logger}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			repo TEXT NOT NULL,
			provider TEXT NOT NULL,
			file TEXT NOT NULL,
			started_at_unixms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			dry_run INTEGER NOT NULL,
			written INTEGER NOT NULL,
			added INTEGER NOT NULL,
			updated INTEGER NOT NULL,
			unchanged INTEGER NOT NULL,
			untouched INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_unixms);`,
		`CREATE TABLE IF NOT EXISTS run_entries (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			action TEXT NOT NULL,
			changes_json TEXT NOT NULL,
			PRIMARY KEY(run_id, seq)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Record stores run and its entries in one transaction and returns the run id.
func (j *Journal) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, repo, provider, file, started_at_unixms, duration_ms, dry_run, written, added, updated, unchanged, untouched, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Repo, run.Provider, run.File, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
		boolInt(run.DryRun), boolInt(run.Written), run.Added, run.Updated, run.Unchanged, run.Untouched, run.Skipped)
	if err != nil {
		return "", fmt.Errorf("journal: insert run: %w", err)
	}
	for i, e := range run.Entries {
		changes, err := json.Marshal(nonNil(e.Changes))
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_entries (run_id, seq, number, title, action, changes_json) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, e.Number, e.Title, e.Action, string(changes)); err != nil {
			return "", fmt.Errorf("journal: insert entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	j.log.Debug("journal run recorded", "id", run.ID, "entries", len(run.Entries))
	return run.ID, nil
}

// Recent returns the newest runs first, without entries. An empty repo matches all.
func (j *Journal) Recent(ctx context.Context, repo string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT run_id, repo, provider, file, started_at_unixms, duration_ms, dry_run, written, added, updated, unchanged, untouched, skipped
		FROM runs`
	args := []any{}
	if repo = strings.TrimSpace(repo); repo != "" {
		q += ` WHERE repo = ?`
		args = append(args, repo)
	}
	q += ` ORDER BY started_at_unixms DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one run with its entries. A unique id prefix is accepted.
func (j *Journal) Get(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, errors.New("journal: empty run id")
	}
	rows, err := j.db.QueryContext(ctx, `SELECT run_id, repo, provider, file, started_at_unixms, duration_ms, dry_run, written, added, updated, unchanged, untouched, skipped
		FROM runs WHERE run_id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return Run{}, err
	}
	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return Run{}, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("journal: run not found: %s", id)
	case 2:
		return Run{}, fmt.Errorf("journal: run id prefix is ambiguous: %s", id)
	}

	run := matches[0]
	run.Entries, err = j.entries(ctx, run.ID)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (j *Journal) entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT number, title, action, changes_json FROM run_entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var changes string
		if err := rows.Scan(&e.Number, &e.Title, &e.Action, &changes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
			return nil, err
		}
		if len(e.Changes) == 0 {
			e.Changes = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, durMS int64
	var dry, written int
	if err := s.Scan(&r.ID, &r.Repo, &r.Provider, &r.File, &started, &durMS, &dry, &written,
		&r.Added, &r.Updated, &r.Unchanged, &r.Untouched, &r.Skipped); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.Duration = time.Duration(durMS) * time.Millisecond
	r.DryRun = dry != 0
	r.Written = written != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
