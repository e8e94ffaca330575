package kernel

import (
	"math"
	"time"
)

// BlockThread suspends the active thread in state until UnblockThread (or, for
// StateSleeping, a deadline) makes it ready again.
func (k *Kernel) BlockThread(state ThreadState) {
	k.Lock()
	if state == StateExited {
		k.fatalf("BlockThread cannot exit a thread; use Terminate")
	}
	if k.switchDepth > 0 {
		k.fatalf("BlockThread with task switching disabled")
	}
	k.block(state)
	k.Unlock()
}

// block marks the active thread not runnable and asks for a dispatch. Under
// the task-switch guard the switch is postponed until the guard drops.
func (k *Kernel) block(state ThreadState) {
	t := k.active
	switch state {
	case StateSleeping, StateBlocked, StateSuspended, StateExited:
	default:
		k.fatalf("cannot block in state %s", state)
	}
	if t == k.idle {
		k.fatalf("idle thread cannot block")
	}
	t.state = state
	if state == StateExited {
		k.emit(EventExit, t, nil)
	} else {
		k.emit(EventBlock, t, nil)
	}
	k.switchThread()
}

// UnblockThread makes a blocked, suspended or sleeping thread ready. It is a
// no-op for stale handles, for threads that are already runnable and for
// threads waiting on a semaphore, which only Release may wake.
func (k *Kernel) UnblockThread(h ThreadHandle) {
	k.Lock()
	if t := k.threads.get(ref(h)); t != nil {
		k.unblock(t)
	}
	k.Unlock()
}

func (k *Kernel) unblock(t *thread) {
	switch t.state {
	case StateSleeping, StateBlocked, StateSuspended:
	default:
		return
	}
	if t.queue == &k.sleepers {
		k.remove(&k.sleepers, t)
	} else if t.queue != nil {
		return
	}
	k.wake(t)
}

// wake moves an unlinked, not runnable thread to the run queue.
func (k *Kernel) wake(t *thread) {
	t.wakeAt = 0
	k.stats.Wakeups++
	k.emit(EventWake, t, nil)
	if t == k.active {
		// Blocked but not yet switched out: it never left the CPU.
		t.state = StateRunning
		return
	}
	t.state = StateReady
	k.enqueue(&k.runQueue, t)
}

// SleepUntil blocks the active thread until the kernel clock reaches
// deadline. An elapsed deadline returns at once.
func (k *Kernel) SleepUntil(deadline time.Duration) {
	k.Lock()
	if k.now >= deadline {
		k.Unlock()
		return
	}
	if k.switchDepth > 0 {
		k.fatalf("SleepUntil with task switching disabled")
	}
	t := k.active
	t.wakeAt = deadline
	k.push(&k.sleepers, t)
	k.block(StateSleeping)
	k.Unlock()
}

// Sleep blocks the active thread for d of kernel time. A deadline past the
// end of the clock saturates and the thread sleeps until unblocked.
func (k *Kernel) Sleep(d time.Duration) {
	k.SleepUntil(k.after(d))
}

// SleepNS blocks the active thread for ns nanoseconds of kernel time.
func (k *Kernel) SleepNS(ns uint64) {
	if ns > math.MaxInt64 {
		ns = math.MaxInt64
	}
	k.Sleep(time.Duration(ns))
}

// SleepMS blocks the active thread for ms milliseconds of kernel time.
func (k *Kernel) SleepMS(ms uint64) {
	if ms > uint64(maxDuration/time.Millisecond) {
		k.Sleep(maxDuration)
		return
	}
	k.Sleep(time.Duration(ms) * time.Millisecond)
}

const maxDuration = time.Duration(math.MaxInt64)

// after returns now+d, clamped to maxDuration.
func (k *Kernel) after(d time.Duration) time.Duration {
	if d > 0 && k.now > maxDuration-d {
		return maxDuration
	}
	return k.now + d
}

// wakeSleepers rebuilds the sleep stack, waking every entry whose deadline
// has passed. It walks the whole stack on every tick.
func (k *Kernel) wakeSleepers() {
	if k.sleepers.empty() {
		return
	}
	pending := k.scratch[:0]
	for t := k.dequeue(&k.sleepers); t != nil; t = k.dequeue(&k.sleepers) {
		if k.now >= t.wakeAt {
			k.wake(t)
			continue
		}
		pending = append(pending, t)
	}
	for _, t := range pending {
		k.push(&k.sleepers, t)
	}
	clear(pending)
	k.scratch = pending[:0]
}
