//go:build !smp

package kernel

// Spinlock guards data shared between CPUs. On a uniprocessor build interrupt
// masking already serializes everything, so it does nothing.
type Spinlock struct{}

// Acquire takes the lock.
func (l *Spinlock) Acquire() {}

// TryToAcquire takes the lock if it is free and reports whether it did.
func (l *Spinlock) TryToAcquire() bool { return true }

// Release drops the lock.
func (l *Spinlock) Release() {}
