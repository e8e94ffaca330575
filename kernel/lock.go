package kernel

// The scheduler lock and the task-switch guard are nesting counters. The first
// level of either disables interrupts; interrupts come back only when both
// counters are zero. Holding the task-switch guard also turns every dispatch
// request into a postponed switch, run once when the guard drops to zero.

func (k *Kernel) irqOff() {
	if k.lockDepth == 0 && k.switchDepth == 0 {
		k.ic.Disable()
	}
}

func (k *Kernel) irqOn() {
	if k.lockDepth == 0 && k.switchDepth == 0 {
		k.ic.Enable()
	}
}

// Lock enters a scheduler critical section. It nests.
func (k *Kernel) Lock() {
	k.irqOff()
	k.lockDepth++
}

// Unlock leaves one level of scheduler critical section.
func (k *Kernel) Unlock() {
	if k.lockDepth == 0 {
		k.fatalf("unbalanced Unlock")
	}
	k.lockDepth--
	k.irqOn()
}

// TaskSwitchDisable enters a section in which no context switch happens.
// Interrupt handlers run inside one.
func (k *Kernel) TaskSwitchDisable() {
	k.irqOff()
	k.switchDepth++
}

// TaskSwitchEnable leaves one level of task-switch guard. Leaving the last
// level runs a switch postponed while the guard was held.
func (k *Kernel) TaskSwitchEnable() {
	if k.switchDepth == 0 {
		k.fatalf("unbalanced TaskSwitchEnable")
	}
	k.switchDepth--
	if k.switchDepth == 0 && k.postponed {
		k.postponed = false
		// Interrupts are still off; take the lock level directly.
		k.lockDepth++
		k.switchThread()
		k.lockDepth--
	}
	k.irqOn()
}

// LockDepth returns the scheduler lock nesting depth.
func (k *Kernel) LockDepth() int { return k.lockDepth }

// TaskSwitchDepth returns the task-switch guard nesting depth.
func (k *Kernel) TaskSwitchDepth() int { return k.switchDepth }

// SwitchPending reports whether a postponed switch is waiting for the
// task-switch guard to drop.
func (k *Kernel) SwitchPending() bool { return k.postponed }

type guardKind uint8

const (
	guardLock guardKind = iota + 1
	guardTaskSwitch
)

// Guard holds one level of a critical section until Release.
type Guard struct {
	k    *Kernel
	kind guardKind
	done bool
}

// LockGuard is Lock returning a Guard.
func (k *Kernel) LockGuard() *Guard {
	k.Lock()
	return &Guard{k: k, kind: guardLock}
}

// SwitchGuard is TaskSwitchDisable returning a Guard.
func (k *Kernel) SwitchGuard() *Guard {
	k.TaskSwitchDisable()
	return &Guard{k: k, kind: guardTaskSwitch}
}

// Release leaves the section. Releasing twice is a no-op, so Release may be
// both deferred and called early.
func (g *Guard) Release() {
	if g == nil || g.done {
		return
	}
	g.done = true
	switch g.kind {
	case guardLock:
		g.k.Unlock()
	case guardTaskSwitch:
		g.k.TaskSwitchEnable()
	}
}

// PreemptDisable sets the advisory preemption flag. Dispatch does not read it.
func (k *Kernel) PreemptDisable() { k.preemptOff = true }

// PreemptEnable clears the advisory preemption flag.
func (k *Kernel) PreemptEnable() { k.preemptOff = false }

// PreemptDisabled reports the advisory preemption flag.
func (k *Kernel) PreemptDisabled() bool { return k.preemptOff }
