package kernel

import "time"

// ThreadState is the scheduling state of a thread.
type ThreadState uint8

const (
	StateNew ThreadState = iota
	StateReady
	StateRunning
	StateSleeping
	StateBlocked
	StateSuspended
	StateExited
)

func (s ThreadState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateBlocked:
		return "blocked"
	case StateSuspended:
		return "suspended"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Priority selects the length of the time slice a thread receives.
//
// It does not change dispatch order: the run queue is a single FIFO.
type Priority uint8

const (
	PriorityIdle Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ThreadHandle names a thread. The zero value names no thread.
type ThreadHandle ref

// Valid reports whether h was ever issued by a kernel.
func (h ThreadHandle) Valid() bool { return ref(h).valid() }

// ProcessHandle names a process. The zero value names no process.
type ProcessHandle ref

// Valid reports whether h was ever issued by a kernel.
func (h ProcessHandle) Valid() bool { return ref(h).valid() }

// ThreadFunc is a thread entry point.
type ThreadFunc func(param any)

type thread struct {
	self    ThreadHandle
	tid     uint64
	parent  ProcessHandle
	state   ThreadState
	prio    Priority
	ctx     ArchContext
	name    string
	next    ThreadHandle
	queue   *threadQueue
	wakeAt  time.Duration
	quantum time.Duration

	dispatches uint64
	runTime    time.Duration
}

type process struct {
	self     ProcessHandle
	pid      uint64
	children []ThreadHandle
	pc       PageContext
}

// ThreadInfo is a copy of a thread's externally visible fields.
type ThreadInfo struct {
	Handle     ThreadHandle
	TID        uint64
	Process    ProcessHandle
	Name       string
	State      ThreadState
	Priority   Priority
	WakeAt     time.Duration
	Quantum    time.Duration
	Dispatches uint64
	RunTime    time.Duration
}

func (t *thread) info() ThreadInfo {
	return ThreadInfo{
		Handle:     t.self,
		TID:        t.tid,
		Process:    t.parent,
		Name:       t.name,
		State:      t.state,
		Priority:   t.prio,
		WakeAt:     t.wakeAt,
		Quantum:    t.quantum,
		Dispatches: t.dispatches,
		RunTime:    t.runTime,
	}
}

// ProcessInfo is a copy of a process's externally visible fields.
type ProcessInfo struct {
	Handle      ProcessHandle
	PID         uint64
	Threads     []ThreadHandle
	PageContext PageContext
}

func (p *process) info() ProcessInfo {
	return ProcessInfo{
		Handle:      p.self,
		PID:         p.pid,
		Threads:     append([]ThreadHandle(nil), p.children...),
		PageContext: p.pc,
	}
}
