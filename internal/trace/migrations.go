package trace

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the trace tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		version     TEXT NOT NULL DEFAULT '',
		quantum_ns  INTEGER NOT NULL,
		tick_ns     INTEGER NOT NULL,
		ticks       INTEGER NOT NULL DEFAULT 0,
		switches    INTEGER NOT NULL DEFAULT 0,
		postponed   INTEGER NOT NULL DEFAULT 0,
		created     INTEGER NOT NULL DEFAULT 0,
		reaped      INTEGER NOT NULL DEFAULT 0,
		wakeups     INTEGER NOT NULL DEFAULT 0,
		dropped     INTEGER NOT NULL DEFAULT 0,
		config      TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq      INTEGER NOT NULL,
		at_ns    INTEGER NOT NULL,
		kind     TEXT NOT NULL,
		tid      INTEGER NOT NULL,
		thread   TEXT NOT NULL,
		state    TEXT NOT NULL,
		prev_tid INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_run_tid ON events(run_id, tid)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
