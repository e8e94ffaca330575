package kernel

import (
	"runtime"
	"testing"
)

// fakeCtx is a context that never runs: the fake arch records switches and
// returns at once, so the test goroutine plays whichever thread is active.
type fakeCtx struct {
	name string
}

type switchRec struct {
	from, to string
	pc       PageContext
}

type fakeArch struct {
	switches []switchRec
	released []string
	// goexit makes the next switch end the calling goroutine, the way an
	// exited thread's context is never resumed.
	goexit bool
}

func (a *fakeArch) BootContext() ArchContext { return &fakeCtx{name: "boot"} }

func (a *fakeArch) BuildContext(name string, entry, exit func()) ArchContext {
	return &fakeCtx{name: name}
}

func (a *fakeArch) SwitchContext(from, to ArchContext, pc PageContext) {
	a.switches = append(a.switches, switchRec{from: from.(*fakeCtx).name, to: to.(*fakeCtx).name, pc: pc})
	if a.goexit {
		a.goexit = false
		runtime.Goexit()
	}
}

func (a *fakeArch) ReleaseContext(ctx ArchContext) {
	a.released = append(a.released, ctx.(*fakeCtx).name)
}

type fakeIRQ struct {
	enabled  bool
	disables int
	enables  int
}

func (f *fakeIRQ) Disable() { f.enabled = false; f.disables++ }
func (f *fakeIRQ) Enable()  { f.enabled = true; f.enables++ }
func (f *fakeIRQ) Poll()    {}
func (f *fakeIRQ) Halt()    {}

type fakeMMU struct {
	switched []PageContext
	released []PageContext
}

func (m *fakeMMU) SwitchTo(pc PageContext) { m.switched = append(m.switched, pc) }
func (m *fakeMMU) Release(pc PageContext)  { m.released = append(m.released, pc) }

type eventLog struct {
	events []Event
}

func (l *eventLog) Record(ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) kinds(kind EventKind) []string {
	var out []string
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev.Thread)
		}
	}
	return out
}

type testRig struct {
	k    *Kernel
	arch *fakeArch
	irq  *fakeIRQ
	mmu  *fakeMMU
	log  *eventLog
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		arch: &fakeArch{},
		irq:  &fakeIRQ{enabled: true},
		mmu:  &fakeMMU{},
		log:  &eventLog{},
	}
	r.k = New(Config{Events: r.log}, Platform{Arch: r.arch, Interrupts: r.irq, MMU: r.mmu})
	return r
}

func nop(any) {}

// spawn creates a normal-priority thread in the kernel process.
func (r *testRig) spawn(name string) ThreadHandle {
	return r.k.CreateThread(r.k.KernelProcess(), nop, PriorityNormal, name, nil)
}

func (r *testRig) activeName() string {
	info, _ := r.k.ThreadInfo(r.k.ActiveThread())
	return info.Name
}

func (r *testRig) state(h ThreadHandle) ThreadState {
	info, ok := r.k.ThreadInfo(h)
	if !ok {
		return StateExited
	}
	return info.State
}

func (r *testRig) runQueue() []string {
	var out []string
	for _, h := range r.k.Snapshot().RunQueue {
		info, _ := r.k.ThreadInfo(h)
		out = append(out, info.Name)
	}
	return out
}

// terminateActive runs Terminate for the active thread on its own goroutine,
// which the fake arch ends at the switch. The thread resumed by that switch
// (played by the test goroutine again) then leaves the lock level the switch
// was made under.
func (r *testRig) terminateActive(t *testing.T) {
	t.Helper()
	r.arch.goexit = true
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.k.Terminate()
	}()
	<-done
	r.k.Unlock()
}

func mustFatal(t *testing.T, fn func()) *InvariantError {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	err, ok := got.(*InvariantError)
	if !ok {
		t.Fatalf("recovered %v, want *InvariantError", got)
	}
	return err
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
