// Package app boots a kernel on the host machine and starts a configured
// workload on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sparksched/hal"
	"sparksched/internal/config"
	"sparksched/internal/trace"
	"sparksched/internal/workload"
	"sparksched/ipc"
	"sparksched/kernel"
)

// Result is what a finished run leaves behind.
type Result struct {
	Snapshot   *kernel.Snapshot
	Events     []kernel.Event
	Dropped    uint64
	Received   uint64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Boot creates the configured semaphores, mailboxes, processes and threads
// on k. It runs on the boot context before Run.
func Boot(k *kernel.Kernel, cfg config.Config, r *workload.Runner) error {
	objs := r.Objects
	for _, s := range cfg.Semaphores {
		objs.Semaphores[s.Name] = k.NewSemaphore(s.Max)
	}
	for _, m := range cfg.Mailboxes {
		objs.Mailboxes[m.Name] = ipc.New(k, m.Slots)
	}

	for _, pc := range cfg.Processes {
		type planned struct {
			th   config.Thread
			prio kernel.Priority
			prog workload.Program
		}
		var plan []planned
		for _, th := range pc.Threads {
			prio, err := config.ParsePriority(th.Priority)
			if err != nil {
				return fmt.Errorf("thread %s: %w", th.Name, err)
			}
			prog, err := workload.Parse(th.Program)
			if err != nil {
				return fmt.Errorf("thread %s: %w", th.Name, err)
			}
			if err := prog.Check(objs); err != nil {
				return fmt.Errorf("thread %s: %w", th.Name, err)
			}
			plan = append(plan, planned{th: th, prio: prio, prog: prog})
		}
		if len(plan) == 0 {
			continue
		}

		p := k.CreateProcess()
		k.SetPageContext(p, kernel.PageContext(pc.PageContext))
		for _, pl := range plan {
			k.CreateThread(p, r.Entry(pl.th.Name, pl.prog, pl.th.Repeat), pl.prio, pl.th.Name, nil)
		}
	}
	return nil
}

type session struct {
	cfg config.Config
	log *slog.Logger
	h   *hal.Host
	rec *trace.Recorder
	k   atomic.Pointer[kernel.Kernel]

	received atomic.Uint64
	// booted carries the outcome of Boot, once.
	booted chan error
}

func newSession(cfg config.Config, log *slog.Logger) *session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &session{
		cfg:    cfg,
		log:    log,
		h:      hal.New(hal.Config{Resolution: cfg.Tick.D(), Logger: log}),
		rec:    trace.NewRecorder(0),
		booted: make(chan error, 1),
	}
}

// runKernel makes the calling goroutine the kernel's boot context and returns
// once the kernel has shut down.
func (s *session) runKernel() error {
	k := kernel.New(kernel.Config{
		Quantum: s.cfg.Quantum.D(),
		Logger:  s.log,
		Events:  s.rec,
	}, s.h.Platform())
	installPanicHandler(k, s.log)
	s.h.OnShutdown(k.Shutdown)

	r := workload.NewRunner(k, workload.NewObjects(), s.log)
	r.Received = func(string, ipc.Message) { s.received.Add(1) }
	if err := Boot(k, s.cfg, r); err != nil {
		s.booted <- err
		return err
	}
	s.k.Store(k)
	s.booted <- nil
	k.Run()
	return nil
}

func (s *session) view() *kernel.Snapshot {
	if k := s.k.Load(); k != nil {
		return k.Published()
	}
	return nil
}

func (s *session) result(started time.Time) *Result {
	return &Result{
		Snapshot:   s.view(),
		Events:     s.rec.Events(),
		Dropped:    s.rec.Dropped(),
		Received:   s.received.Load(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// RunHeadless boots cfg's workload and steps the clock until cfg.Ticks ticks
// have fired or ctx ends. Cancellation is a normal stop.
func RunHeadless(ctx context.Context, cfg config.Config, log *slog.Logger) (*Result, error) {
	s := newSession(cfg, log)
	defer s.h.Close()
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.runKernel)
	g.Go(func() error {
		if err := <-s.booted; err != nil {
			return nil
		}
		err := hal.RunHeadless(gctx, s.h, hal.HeadlessConfig{Hz: cfg.Hz, Ticks: cfg.Ticks})
		s.h.RequestShutdown()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.result(started), nil
}

// RunWindow boots cfg's workload and shows it in a monitor window on the
// calling goroutine until the window closes or ctx ends.
func RunWindow(ctx context.Context, cfg config.Config, log *slog.Logger) (*Result, error) {
	s := newSession(cfg, log)
	defer s.h.Close()
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.runKernel)
	if err := <-s.booted; err != nil {
		return nil, g.Wait()
	}
	werr := hal.RunWindow(gctx, s.h, s.view)
	s.h.RequestShutdown()
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if werr != nil && !errors.Is(werr, context.Canceled) {
		return nil, werr
	}
	return s.result(started), nil
}
