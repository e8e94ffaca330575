// Package trace records scheduler events and stores finished runs in SQLite.
package trace

import (
	"sync"

	"sparksched/kernel"
)

// DefaultLimit caps the events a Recorder keeps.
const DefaultLimit = 1 << 16

// Recorder is a kernel.EventSink that buffers events in memory. The kernel
// calls Record with interrupts disabled; Events may be read from any
// goroutine.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	events  []kernel.Event
	dropped uint64
}

// NewRecorder returns a recorder keeping at most limit events. Zero means
// DefaultLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Record(ev kernel.Event) {
	r.mu.Lock()
	if len(r.events) < r.limit {
		r.events = append(r.events, ev)
	} else {
		r.dropped++
	}
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []kernel.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kernel.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Dropped returns the number of events past the limit.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
