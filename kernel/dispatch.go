package kernel

import "time"

// timeslice returns the quantum granted on dispatch. Idle gets zero: it never
// times out.
func (k *Kernel) timeslice(p Priority) time.Duration {
	switch p {
	case PriorityIdle:
		return 0
	case PriorityLow:
		return k.quantum / 2
	case PriorityHigh:
		return k.quantum * 2
	default:
		return k.quantum
	}
}

// Yield gives the CPU to the head of the run queue, if any.
func (k *Kernel) Yield() {
	k.Lock()
	k.switchThread()
	k.Unlock()
}

// SwitchThread is the quantum-expiry path: dispatch the head of the run queue.
// Under the task-switch guard it only marks a switch as postponed.
func (k *Kernel) SwitchThread() {
	k.Lock()
	k.switchThread()
	k.Unlock()
}

// switchThread picks the next thread. The postponement check comes before the
// run queue is touched, so a postponed switch never drops a dequeued thread.
func (k *Kernel) switchThread() {
	if k.switchDepth > 0 {
		if !k.postponed {
			k.stats.Postponed++
		}
		k.postponed = true
		return
	}

	if k.stopping {
		if k.active == k.idle {
			return
		}
		if k.remove(&k.runQueue, k.idle) {
			k.switchTo(k.idle)
			return
		}
	}

	next := k.dequeue(&k.runQueue)
	if next == nil {
		if k.active.state != StateRunning {
			k.fatalf("no runnable thread after %s (%s)", k.active.name, k.active.state)
		}
		return
	}

	if next == k.idle {
		if !k.runQueue.empty() {
			// Idle never runs ahead of ready work: it goes back to the head
			// and the thread behind it is dispatched.
			real := k.dequeue(&k.runQueue)
			k.push(&k.runQueue, k.idle)
			next = real
		} else if k.active.state == StateRunning {
			k.enqueue(&k.runQueue, k.idle)
			return
		}
	}
	k.switchTo(next)
}

// switchTo makes next the active thread and transfers the CPU to it.
func (k *Kernel) switchTo(next *thread) {
	prev := k.active
	prev.runTime += k.now - k.lastDispatch
	if prev.state == StateRunning {
		prev.state = StateReady
	}
	if prev.state == StateReady {
		k.enqueue(&k.runQueue, prev)
	}

	next.state = StateRunning
	next.quantum = k.timeslice(next.prio)
	next.dispatches++
	k.active = next
	k.lastDispatch = k.now
	k.stats.Switches++
	k.emit(EventDispatch, next, prev)

	pc := k.mustProcess(next.parent).pc
	k.mmu.SwitchTo(pc)

	// The counters are per-context state, like the saved interrupt flag:
	// whoever resumes us has left its own values behind.
	lock, sw := k.lockDepth, k.switchDepth
	k.arch.SwitchContext(prev.ctx, next.ctx, pc)
	k.lockDepth, k.switchDepth = lock, sw
}

// Tick is the timer interrupt handler. It advances the clock by elapsed, wakes
// due sleepers and charges elapsed against the active thread's quantum.
func (k *Kernel) Tick(elapsed time.Duration) {
	k.TaskSwitchDisable()
	k.now += elapsed
	k.ticks++
	k.wakeSleepers()
	if t := k.active; t.quantum != 0 {
		if t.quantum <= elapsed {
			k.switchThread()
		} else {
			t.quantum -= elapsed
		}
	}
	k.publish()
	k.TaskSwitchEnable()
}

// Run turns the boot context into the idle loop. It starts the reaper, then
// dispatches whenever the run queue holds work and halts the CPU otherwise.
// Run returns after Shutdown once idle regains the CPU.
func (k *Kernel) Run() {
	if k.active != k.idle {
		k.fatalf("Run called from %s, not the boot context", k.active.name)
	}
	k.StartReaper()
	k.log.Debug("idle loop started", "threads", k.threads.len())
	for {
		k.Lock()
		if k.stopping {
			k.publish()
			k.Unlock()
			k.log.Debug("shutdown", "ticks", k.ticks, "switches", k.stats.Switches)
			return
		}
		if k.runQueue.empty() {
			k.Unlock()
			k.ic.Halt()
			continue
		}
		k.switchThread()
		k.Unlock()
	}
}

// Shutdown hands the CPU to idle at the next dispatch so that Run returns.
// Other threads stay where they are. It may be called from interrupt context.
func (k *Kernel) Shutdown() {
	k.TaskSwitchDisable()
	k.stopping = true
	k.switchThread()
	k.TaskSwitchEnable()
}

// Stopping reports whether Shutdown was called.
func (k *Kernel) Stopping() bool { return k.stopping }
