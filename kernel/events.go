package kernel

import "time"

// EventKind classifies a scheduling event.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventDispatch
	EventBlock
	EventWake
	EventExit
	EventReap
)

func (e EventKind) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventDispatch:
		return "dispatch"
	case EventBlock:
		return "block"
	case EventWake:
		return "wake"
	case EventExit:
		return "exit"
	case EventReap:
		return "reap"
	default:
		return "unknown"
	}
}

// Event is one scheduling decision.
type Event struct {
	Seq    uint64
	At     time.Duration
	Kind   EventKind
	TID    uint64
	Thread string
	State  ThreadState
	// PrevTID is the thread switched away from, for EventDispatch.
	PrevTID uint64
}

// EventSink receives scheduling events.
type EventSink interface {
	Record(Event)
}

func (k *Kernel) emit(kind EventKind, t *thread, prev *thread) {
	if k.events == nil {
		return
	}
	k.seq++
	ev := Event{
		Seq:    k.seq,
		At:     k.now,
		Kind:   kind,
		TID:    t.tid,
		Thread: t.name,
		State:  t.state,
	}
	if prev != nil {
		ev.PrevTID = prev.tid
	}
	k.events.Record(ev)
}
