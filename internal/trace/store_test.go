package trace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sparksched/kernel"
)

func testStore(t *testing.T, path string) *Store {
	t.Helper()
	st, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleEvents() []kernel.Event {
	return []kernel.Event{
		{Seq: 1, Kind: kernel.EventCreate, TID: 1, Thread: "a", State: kernel.StateReady},
		{Seq: 2, At: time.Millisecond, Kind: kernel.EventDispatch, TID: 1, Thread: "a", State: kernel.StateRunning},
		{Seq: 3, At: 2 * time.Millisecond, Kind: kernel.EventBlock, TID: 1, Thread: "a", State: kernel.StateSleeping},
		{Seq: 4, At: 5 * time.Millisecond, Kind: kernel.EventWake, TID: 1, Thread: "a", State: kernel.StateSleeping},
		{Seq: 5, At: 5 * time.Millisecond, Kind: kernel.EventDispatch, TID: 1, Thread: "a", State: kernel.StateRunning},
		{Seq: 6, At: 6 * time.Millisecond, Kind: kernel.EventExit, TID: 1, Thread: "a", State: kernel.StateExited},
		{Seq: 7, At: 6 * time.Millisecond, Kind: kernel.EventDispatch, TID: 2, Thread: "b", State: kernel.StateRunning, PrevTID: 1},
	}
}

func sampleRun(started time.Time) *Run {
	return &Run{
		ID:         NewRunID(),
		Version:    "dev",
		Quantum:    20 * time.Millisecond,
		Tick:       time.Millisecond,
		Ticks:      6,
		Stats:      kernel.Stats{Switches: 3, Postponed: 1, Created: 3, Reaped: 1, Wakeups: 1},
		Config:     "ticks: 6\n",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	st := testStore(t, ":memory:")
	ctx := context.Background()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := sampleRun(started)

	if err := st.SaveRun(ctx, run, sampleEvents()); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Stats != run.Stats || got.Quantum != run.Quantum || got.Ticks != 6 {
		t.Fatalf("GetRun() = %+v, want %+v", got, run)
	}
	if !got.StartedAt.Equal(started) || got.Config != run.Config {
		t.Fatalf("GetRun() started/config = %v/%q", got.StartedAt, got.Config)
	}
	if n, err := st.CountEvents(ctx, run.ID); err != nil || n != 7 {
		t.Fatalf("CountEvents() = %d, %v, want 7", n, err)
	}
}

func TestGetRunMissing(t *testing.T) {
	st := testStore(t, ":memory:")
	ctx := context.Background()
	if _, err := st.GetRun(ctx, "run_missing"); !errors.Is(err, ErrNoRun) {
		t.Fatalf("GetRun() error = %v, want ErrNoRun", err)
	}
	if _, err := st.LatestRun(ctx); !errors.Is(err, ErrNoRun) {
		t.Fatalf("LatestRun() error = %v, want ErrNoRun", err)
	}
	if _, err := st.Summary(ctx, "run_missing"); !errors.Is(err, ErrNoRun) {
		t.Fatalf("Summary() error = %v, want ErrNoRun", err)
	}
}

func TestSummary(t *testing.T) {
	st := testStore(t, ":memory:")
	ctx := context.Background()
	run := sampleRun(time.Now())
	if err := st.SaveRun(ctx, run, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	sum, err := st.Summary(ctx, run.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	want := []ThreadSummary{
		{TID: 1, Thread: "a", Dispatches: 2, Blocks: 1, Wakes: 1, Exited: true},
		{TID: 2, Thread: "b", Dispatches: 1},
	}
	if len(sum) != len(want) {
		t.Fatalf("Summary() = %+v, want %+v", sum, want)
	}
	for i := range want {
		if sum[i] != want[i] {
			t.Errorf("Summary()[%d] = %+v, want %+v", i, sum[i], want[i])
		}
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	st := testStore(t, path)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, run.ID)
		if err := st.SaveRun(ctx, run, nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("ListRuns() = %d runs, want the two newest", len(runs))
	}
	latest, err := st.LatestRun(ctx)
	if err != nil || latest.ID != ids[2] {
		t.Fatalf("LatestRun() = %v, %v", latest, err)
	}
}

func TestDuplicateRunRollsBack(t *testing.T) {
	st := testStore(t, ":memory:")
	ctx := context.Background()
	run := sampleRun(time.Now())
	if err := st.SaveRun(ctx, run, sampleEvents()); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveRun(ctx, run, sampleEvents()[:1]); err == nil {
		t.Fatal("SaveRun() of a duplicate id succeeded")
	}
	if n, _ := st.CountEvents(ctx, run.ID); n != 7 {
		t.Fatalf("CountEvents() = %d after failed save, want 7", n)
	}
}

func TestRunIDs(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || !strings.HasPrefix(a, "run_") || len(a) != len("run_")+36 {
		t.Fatalf("NewRunID() = %q, %q", a, b)
	}
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(2)
	for i := 1; i <= 5; i++ {
		r.Record(kernel.Event{Seq: uint64(i)})
	}
	evs := r.Events()
	if len(evs) != 2 || evs[0].Seq != 1 || evs[1].Seq != 2 {
		t.Fatalf("Events() = %+v, want the first two", evs)
	}
	if r.Dropped() != 3 {
		t.Fatalf("Dropped() = %d, want 3", r.Dropped())
	}
}
