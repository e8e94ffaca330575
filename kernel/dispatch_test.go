package kernel

import (
	"testing"
	"time"
)

func TestNewAdoptsBootContextAsIdle(t *testing.T) {
	r := newRig(t)
	if got := r.activeName(); got != "idle" {
		t.Fatalf("active = %q, want idle", got)
	}
	if r.k.ActiveProcess() != r.k.KernelProcess() {
		t.Fatal("active process is not the kernel process")
	}
	info, _ := r.k.ThreadInfo(r.k.IdleThread())
	if info.State != StateRunning || info.Quantum != 0 {
		t.Fatalf("idle = %+v, want running with zero quantum", info)
	}
}

func TestSwitchThreadFIFO(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.spawn("b")
	r.spawn("c")

	var got []string
	for i := 0; i < 9; i++ {
		r.k.SwitchThread()
		got = append(got, r.activeName())
	}
	want := []string{"a", "b", "c", "a", "b", "c", "a", "b", "c"}
	if !equalStrings(got, want) {
		t.Fatalf("dispatch order = %v, want %v", got, want)
	}
}

func TestIdleNeverRunsAheadOfReadyWork(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.spawn("b")

	for i := 0; i < 10; i++ {
		r.k.SwitchThread()
		if r.activeName() == "idle" {
			t.Fatalf("idle dispatched at step %d with ready work, run queue %v", i, r.runQueue())
		}
	}
	// Idle is kept at the head once it has been passed over.
	if q := r.runQueue(); len(q) == 0 || q[0] != "idle" {
		t.Fatalf("run queue = %v, want idle at head", q)
	}
}

func TestIdleAloneWithRunningThreadDoesNotSwitch(t *testing.T) {
	r := newRig(t)
	a := r.spawn("a")
	b := r.spawn("b")

	r.k.SwitchThread() // a; run queue [b idle]
	r.k.BlockThread(StateBlocked)
	if got := r.activeName(); got != "b" {
		t.Fatalf("active after a blocks = %q, want b", got)
	}
	if got := r.runQueue(); !equalStrings(got, []string{"idle"}) {
		t.Fatalf("run queue = %v, want [idle]", got)
	}

	switches := len(r.arch.switches)
	r.k.SwitchThread()
	if got := r.activeName(); got != "b" {
		t.Fatalf("active = %q, want b to keep the CPU", got)
	}
	if len(r.arch.switches) != switches {
		t.Fatal("switched with only idle queued behind a running thread")
	}
	if got := r.runQueue(); !equalStrings(got, []string{"idle"}) {
		t.Fatalf("run queue = %v, want [idle]", got)
	}

	r.k.BlockThread(StateBlocked)
	if got := r.activeName(); got != "idle" {
		t.Fatalf("active after b blocks = %q, want idle", got)
	}
	if r.state(a) != StateBlocked || r.state(b) != StateBlocked {
		t.Fatal("a and b should both be blocked")
	}
}

func TestQuantumExpiry(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.spawn("b")
	r.k.SwitchThread()

	quantum := r.k.Quantum()
	tick := quantum / 4
	for i := 0; i < 3; i++ {
		r.k.Tick(tick)
		if got := r.activeName(); got != "a" {
			t.Fatalf("after %d ticks active = %q, want a", i+1, got)
		}
	}
	r.k.Tick(tick)
	if got := r.activeName(); got != "b" {
		t.Fatalf("after a full quantum active = %q, want b", got)
	}
	info, _ := r.k.ThreadInfo(r.k.ActiveThread())
	if info.Quantum != quantum {
		t.Fatalf("fresh quantum = %v, want %v", info.Quantum, quantum)
	}
}

func TestIdleNeverTimesOut(t *testing.T) {
	r := newRig(t)
	for i := 0; i < 100; i++ {
		r.k.Tick(10 * time.Millisecond)
	}
	if len(r.arch.switches) != 0 {
		t.Fatalf("idle was switched %d times with nothing to run", len(r.arch.switches))
	}
	if r.k.Ticks() != 100 || r.k.Now() != time.Second {
		t.Fatalf("clock = %d ticks / %v, want 100 / 1s", r.k.Ticks(), r.k.Now())
	}
}

func TestTimesliceByPriority(t *testing.T) {
	r := newRig(t)
	q := r.k.Quantum()
	tests := []struct {
		prio Priority
		want time.Duration
	}{
		{PriorityIdle, 0},
		{PriorityLow, q / 2},
		{PriorityNormal, q},
		{PriorityHigh, 2 * q},
	}
	for _, tt := range tests {
		if got := r.k.timeslice(tt.prio); got != tt.want {
			t.Errorf("timeslice(%s) = %v, want %v", tt.prio, got, tt.want)
		}
	}
}

func TestSwitchProgramsMMU(t *testing.T) {
	r := newRig(t)
	p := r.k.CreateProcess()
	r.k.SetPageContext(p, 0x4000)
	r.k.CreateThread(p, nop, PriorityNormal, "user", nil)

	r.k.SwitchThread()
	if got := r.k.ActiveProcess(); got != p {
		t.Fatalf("active process = %v, want %v", got, p)
	}
	if n := len(r.mmu.switched); n != 1 || r.mmu.switched[0] != 0x4000 {
		t.Fatalf("mmu switches = %v, want [0x4000]", r.mmu.switched)
	}
	if sw := r.arch.switches[0]; sw.from != "boot" || sw.to != "user" || sw.pc != 0x4000 {
		t.Fatalf("switch = %+v, want boot -> user on 0x4000", sw)
	}
}

func TestEmptyRunQueueWithBlockedActiveIsFatal(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.k.SwitchThread()
	// Take idle out of circulation to reach the impossible state.
	r.k.remove(&r.k.runQueue, r.k.idle)
	mustFatal(t, func() { r.k.BlockThread(StateBlocked) })
	if !r.k.InPanicMode() {
		t.Fatal("InPanicMode() = false after fatal violation")
	}
}

func TestDispatchEvents(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.spawn("b")
	r.k.SwitchThread()
	r.k.SwitchThread()
	if got := r.log.kinds(EventDispatch); !equalStrings(got, []string{"a", "b"}) {
		t.Fatalf("dispatch events = %v, want [a b]", got)
	}
	if got := r.log.kinds(EventCreate); !equalStrings(got, []string{"a", "b"}) {
		t.Fatalf("create events = %v, want [a b]", got)
	}
	if r.k.Stats().Switches != 2 {
		t.Fatalf("Switches = %d, want 2", r.k.Stats().Switches)
	}
}

func TestShutdownHandsCPUToIdle(t *testing.T) {
	r := newRig(t)
	r.spawn("a")
	r.spawn("b")
	r.k.SwitchThread()

	r.k.Shutdown()
	if got := r.activeName(); got != "idle" {
		t.Fatalf("active after Shutdown = %q, want idle", got)
	}
	if !r.k.Stopping() {
		t.Fatal("Stopping() = false")
	}
	if got := r.runQueue(); !equalStrings(got, []string{"b", "a"}) {
		t.Fatalf("run queue = %v, want [b a]", got)
	}
	r.k.SwitchThread()
	if got := r.activeName(); got != "idle" {
		t.Fatalf("dispatch while stopping moved off idle to %q", got)
	}
}
