// Package kernel is a uniprocessor thread scheduler with the blocking and
// locking primitives built on it.
//
// All kernel state belongs to whichever thread currently owns the CPU. It is
// mutated only with interrupts disabled, through Lock or TaskSwitchDisable.
package kernel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQuantum is the time slice of a normal-priority thread.
const DefaultQuantum = 20 * time.Millisecond

// Config tunes a kernel instance.
type Config struct {
	// Quantum is the normal-priority time slice. Zero means DefaultQuantum.
	Quantum time.Duration
	Logger  *slog.Logger
	// Events receives scheduling events. It is called with interrupts
	// disabled and must not block.
	Events EventSink
}

// Stats counts scheduler activity since boot.
type Stats struct {
	Switches  uint64
	Postponed uint64
	Created   uint64
	Reaped    uint64
	Wakeups   uint64
}

// Kernel owns every queue, counter and record of one scheduler instance.
type Kernel struct {
	quantum time.Duration
	log     *slog.Logger
	events  EventSink

	arch Arch
	ic   Interrupts
	mmu  MMU

	threads arena[thread]
	procs   arena[process]
	nextTID uint64
	nextPID uint64

	kproc  ProcessHandle
	active *thread
	idle   *thread
	reaper *thread

	runQueue  threadQueue
	sleepers  threadQueue
	exitQueue threadQueue
	scratch   []*thread

	lockDepth   int
	switchDepth int
	postponed   bool
	preemptOff  bool
	stopping    bool

	now          time.Duration
	ticks        uint64
	lastDispatch time.Duration
	stats        Stats
	seq          uint64

	published atomic.Pointer[Snapshot]

	panicActive  atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Value // func(PanicInfo)
}

// New creates a kernel on p. The calling context becomes the idle thread and
// is the active thread when New returns.
//
// Threads created before Run are queued but do not execute until the caller
// enters Run.
func New(cfg Config, p Platform) *Kernel {
	if p.Arch == nil || p.Interrupts == nil {
		panic("kernel: platform needs Arch and Interrupts")
	}
	k := &Kernel{
		quantum:   cfg.Quantum,
		log:       cfg.Logger,
		events:    cfg.Events,
		arch:      p.Arch,
		ic:        p.Interrupts,
		mmu:       p.MMU,
		runQueue:  threadQueue{name: "run queue"},
		sleepers:  threadQueue{name: "sleep stack"},
		exitQueue: threadQueue{name: "exit queue"},
	}
	if k.quantum <= 0 {
		k.quantum = DefaultQuantum
	}
	if k.log == nil {
		k.log = slog.New(slog.DiscardHandler)
	}
	k.log = k.log.With("component", "kernel")
	if k.mmu == nil {
		k.mmu = nopMMU{}
	}

	k.kproc = k.createProcess()
	idle := &thread{
		tid:    k.nextTID,
		parent: k.kproc,
		state:  StateRunning,
		prio:   PriorityIdle,
		name:   "idle",
		ctx:    k.arch.BootContext(),
	}
	k.nextTID++
	idle.self = ThreadHandle(k.threads.insert(idle))
	kp := k.procs.get(ref(k.kproc))
	kp.children = append(kp.children, idle.self)
	k.idle = idle
	k.active = idle
	k.stats.Created++

	if p.Timer != nil {
		p.Timer.Register(k.Tick)
	}
	k.publish()
	return k
}

// KernelProcess returns the process that owns the idle and reaper threads.
func (k *Kernel) KernelProcess() ProcessHandle { return k.kproc }

// IdleThread returns the idle thread.
func (k *Kernel) IdleThread() ThreadHandle { return k.idle.self }

// ReaperThread returns the reaper thread, or the zero handle before
// StartReaper.
func (k *Kernel) ReaperThread() ThreadHandle {
	if k.reaper == nil {
		return ThreadHandle{}
	}
	return k.reaper.self
}

// ActiveThread returns the running thread.
func (k *Kernel) ActiveThread() ThreadHandle { return k.active.self }

// ActiveProcess returns the parent of the running thread.
func (k *Kernel) ActiveProcess() ProcessHandle { return k.active.parent }

// Now returns the kernel clock: the sum of all elapsed tick resolutions.
func (k *Kernel) Now() time.Duration { return k.now }

// Ticks returns the number of timer ticks handled.
func (k *Kernel) Ticks() uint64 { return k.ticks }

// Quantum returns the normal-priority time slice.
func (k *Kernel) Quantum() time.Duration { return k.quantum }

// Checkpoint lets pending interrupts in when no critical section is held.
// Long-running thread code calls it where the hardware would take an
// interrupt between instructions.
func (k *Kernel) Checkpoint() {
	if k.lockDepth == 0 && k.switchDepth == 0 {
		k.ic.Poll()
	}
}

// ThreadInfo returns a copy of a live thread's fields.
func (k *Kernel) ThreadInfo(h ThreadHandle) (ThreadInfo, bool) {
	t := k.threads.get(ref(h))
	if t == nil {
		return ThreadInfo{}, false
	}
	return t.info(), true
}

// ProcessInfo returns a copy of a live process's fields.
func (k *Kernel) ProcessInfo(h ProcessHandle) (ProcessInfo, bool) {
	p := k.procs.get(ref(h))
	if p == nil {
		return ProcessInfo{}, false
	}
	return p.info(), true
}

func (k *Kernel) mustThread(h ThreadHandle) *thread {
	t := k.threads.get(ref(h))
	if t == nil {
		k.fatalf("stale thread handle %v", h)
	}
	return t
}

func (k *Kernel) mustProcess(h ProcessHandle) *process {
	p := k.procs.get(ref(h))
	if p == nil {
		k.fatalf("stale process handle %v", h)
	}
	return p
}
