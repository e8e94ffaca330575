package kernel

import "time"

// Snapshot is a point-in-time copy of scheduler state.
type Snapshot struct {
	Now       time.Duration
	Ticks     uint64
	Active    ThreadHandle
	RunQueue  []ThreadHandle
	Sleeping  []ThreadHandle
	Exiting   []ThreadHandle
	Threads   []ThreadInfo
	Processes int
	Stats     Stats
	Stopping  bool
}

// Thread returns the info for h from the snapshot.
func (s *Snapshot) Thread(h ThreadHandle) (ThreadInfo, bool) {
	for _, t := range s.Threads {
		if t.Handle == h {
			return t, true
		}
	}
	return ThreadInfo{}, false
}

// Snapshot copies the scheduler state. Call it from kernel context; other
// goroutines use Published.
func (k *Kernel) Snapshot() *Snapshot {
	k.Lock()
	s := k.snapshot()
	k.Unlock()
	return s
}

func (k *Kernel) snapshot() *Snapshot {
	s := &Snapshot{
		Now:       k.now,
		Ticks:     k.ticks,
		Active:    k.active.self,
		RunQueue:  k.handles(&k.runQueue),
		Sleeping:  k.handles(&k.sleepers),
		Exiting:   k.handles(&k.exitQueue),
		Threads:   make([]ThreadInfo, 0, k.threads.len()),
		Processes: k.procs.len(),
		Stats:     k.stats,
		Stopping:  k.stopping,
	}
	k.threads.each(func(t *thread) {
		s.Threads = append(s.Threads, t.info())
	})
	return s
}

// Published returns the snapshot taken at the last tick. It is safe to call
// from any goroutine.
func (k *Kernel) Published() *Snapshot {
	return k.published.Load()
}

func (k *Kernel) publish() {
	k.published.Store(k.snapshot())
}

// Stats returns the activity counters.
func (k *Kernel) Stats() Stats { return k.stats }
