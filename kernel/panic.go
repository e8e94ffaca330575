package kernel

import "fmt"

// PanicInfo describes a fatal invariant violation.
type PanicInfo struct {
	TID    uint64
	Thread string
	Value  any
	Stack  []byte
}

// InvariantError is the value a kernel panics with when one of its invariants
// is broken. It is a programming error, never a recoverable condition.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "kernel: " + e.Msg }

// InPanicMode reports whether the kernel has hit a fatal invariant violation.
func (k *Kernel) InPanicMode() bool {
	return k.panicActive.Load()
}

// SetPanicHandler installs the handler run on the first fatal violation.
//
// The handler is invoked at most once. It must not panic.
func (k *Kernel) SetPanicHandler(fn func(PanicInfo)) {
	k.panicHandler.Store(fn)
}

func (k *Kernel) triggerPanic(info PanicInfo) {
	k.panicOnce.Do(func() {
		k.panicActive.Store(true)
		info.Stack = captureStack()
		if v := k.panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

func (k *Kernel) fatalf(format string, args ...any) {
	err := &InvariantError{Msg: fmt.Sprintf(format, args...)}
	info := PanicInfo{Value: err}
	if t := k.active; t != nil {
		info.TID = t.tid
		info.Thread = t.name
	}
	k.log.Error("fatal", "err", err, "tid", info.TID, "thread", info.Thread)
	k.triggerPanic(info)
	panic(err)
}
