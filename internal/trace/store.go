package trace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sparksched/internal/logging"
	"sparksched/kernel"

	_ "modernc.org/sqlite"
)

// ErrNoRun is returned when a requested run is not in the store.
var ErrNoRun = errors.New("trace: no such run")

// Run is one recorded scheduler run.
type Run struct {
	ID         string
	Version    string
	Quantum    time.Duration
	Tick       time.Duration
	Ticks      uint64
	Stats      kernel.Stats
	Dropped    uint64
	Config     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ThreadSummary aggregates one thread's events in a run.
type ThreadSummary struct {
	TID        uint64
	Thread     string
	Dispatches int
	Blocks     int
	Wakes      int
	Exited     bool
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// Store persists runs in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &Store{
		db:     db,
		logger: logging.Component(logger, "trace"),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// SaveRun stores run and its events in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run, events []kernel.Event) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID, "events", len(events))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, version, quantum_ns, tick_ns, ticks, switches, postponed, created, reaped, wakeups, dropped, config, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Version, int64(run.Quantum), int64(run.Tick), int64(run.Ticks),
		int64(run.Stats.Switches), int64(run.Stats.Postponed), int64(run.Stats.Created), int64(run.Stats.Reaped), int64(run.Stats.Wakeups),
		int64(run.Dropped), run.Config,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (run_id, seq, at_ns, kind, tid, thread, state, prev_tid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()
	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, run.ID, int64(ev.Seq), int64(ev.At), ev.Kind.String(),
			int64(ev.TID), ev.Thread, ev.State.String(), int64(ev.PrevTID)); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, version, quantum_ns, tick_ns, ticks, switches, postponed, created, reaped, wakeups, dropped, config, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var quantum, tick, ticks, switches, postponed, created, reaped, wakeups, dropped int64
	var startedAt, finishedAt string
	if err := row.Scan(&r.ID, &r.Version, &quantum, &tick, &ticks, &switches, &postponed, &created, &reaped,
		&wakeups, &dropped, &r.Config, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Quantum = time.Duration(quantum)
	r.Tick = time.Duration(tick)
	r.Ticks = uint64(ticks)
	r.Stats = kernel.Stats{
		Switches:  uint64(switches),
		Postponed: uint64(postponed),
		Created:   uint64(created),
		Reaped:    uint64(reaped),
		Wakeups:   uint64(wakeups),
	}
	r.Dropped = uint64(dropped)
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &r, nil
}

// GetRun returns the run with the given id, or ErrNoRun.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, id)
	}
	return r, err
}

// LatestRun returns the most recently started run, or ErrNoRun.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRun
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Summary aggregates the events of run id per thread, in tid order.
func (s *Store) Summary(ctx context.Context, id string) ([]ThreadSummary, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tid, thread,
			SUM(CASE WHEN kind = 'dispatch' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'block' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'wake' THEN 1 ELSE 0 END),
			MAX(CASE WHEN kind = 'exit' THEN 1 ELSE 0 END)
		 FROM events WHERE run_id = ? GROUP BY tid, thread ORDER BY tid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThreadSummary
	for rows.Next() {
		var ts ThreadSummary
		var tid int64
		var exited int
		if err := rows.Scan(&tid, &ts.Thread, &ts.Dispatches, &ts.Blocks, &ts.Wakes, &exited); err != nil {
			return nil, err
		}
		ts.TID = uint64(tid)
		ts.Exited = exited == 1
		out = append(out, ts)
	}
	return out, rows.Err()
}

// CountEvents returns the number of stored events of run id.
func (s *Store) CountEvents(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id = ?`, id).Scan(&n)
	return n, err
}
