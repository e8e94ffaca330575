package kernel

import "time"

// ArchContext is a saved register context. Its contents belong to the Arch
// implementation that built it.
type ArchContext any

// PageContext is an opaque address-space handle owned by the MMU.
type PageContext uintptr

// Arch builds and switches register contexts for one target architecture.
type Arch interface {
	// BootContext adopts the caller's context as a thread context. The kernel
	// uses it once, for the idle thread.
	BootContext() ArchContext

	// BuildContext lays out a context whose first dispatch runs entry and,
	// when entry returns, exit. exit must not return.
	BuildContext(name string, entry, exit func()) ArchContext

	// SwitchContext saves the running context into from and resumes to. It
	// returns only when from is resumed by a later switch.
	SwitchContext(from, to ArchContext, pc PageContext)

	// ReleaseContext frees a context and any stack mapped for it. The context
	// must not be running.
	ReleaseContext(ctx ArchContext)
}

// Interrupts is the CPU's interrupt delivery line.
type Interrupts interface {
	Disable()
	// Enable re-enables delivery. Pending interrupts may be handled before it
	// returns.
	Enable()
	// Poll handles pending interrupts if delivery is enabled.
	Poll()
	// Halt waits for an interrupt and handles it. Delivery must be enabled.
	Halt()
}

// MMU switches and releases address spaces.
type MMU interface {
	SwitchTo(pc PageContext)
	Release(pc PageContext)
}

// Timer delivers periodic ticks in interrupt context.
type Timer interface {
	Register(handler func(elapsed time.Duration))
}

// Platform bundles the collaborators a kernel runs on. MMU and Timer may be
// nil; a nil Timer leaves ticking to the caller of Kernel.Tick.
type Platform struct {
	Arch       Arch
	Interrupts Interrupts
	MMU        MMU
	Timer      Timer
}

type nopMMU struct{}

func (nopMMU) SwitchTo(PageContext) {}
func (nopMMU) Release(PageContext)  {}
