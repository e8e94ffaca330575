//go:build smp

package kernel

import (
	"runtime"
	"sync/atomic"
)

// Spinlock guards data shared between CPUs. A task trying to take a held lock
// busy-waits, yielding every spinAttempts tries.
type Spinlock struct {
	state atomic.Uint32
}

const spinAttempts = 64

// Acquire blocks until the lock is taken. Re-acquiring a held lock from the
// same task deadlocks.
func (l *Spinlock) Acquire() {
	for i := 1; !l.state.CompareAndSwap(0, 1); i++ {
		if i%spinAttempts == 0 {
			runtime.Gosched()
		}
	}
}

// TryToAcquire takes the lock if it is free and reports whether it did.
func (l *Spinlock) TryToAcquire() bool {
	return l.state.Swap(1) == 0
}

// Release drops the lock. Releasing a free lock has no effect.
func (l *Spinlock) Release() {
	l.state.Store(0)
}
