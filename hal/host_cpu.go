package hal

import (
	"fmt"
	"log/slog"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"

	"sparksched/internal/logging"
	"sparksched/kernel"
)

// CPU is a uniprocessor built from goroutines. Every context is a goroutine
// parked on its resume channel; SwitchContext wakes the target and parks the
// caller, so exactly one context executes kernel code at any time.
//
// Interrupts are raised from any goroutine with Raise. They are delivered on
// the context that owns the CPU, and only while it has interrupts enabled: in
// Enable, Poll and Halt.
type CPU struct {
	log *slog.Logger

	pending atomic.Uint64
	wake    chan struct{}
	irqs    atomic.Uint64

	// Owned by whichever context holds the CPU.
	enabled  bool
	inIRQ    bool
	handlers [MaxIRQ]func()

	mu       sync.Mutex
	contexts map[*hostContext]struct{}
	closed   chan struct{}
	once     sync.Once
}

type hostContext struct {
	name   string
	boot   bool
	resume chan struct{}
	kill   chan struct{}
	once   sync.Once
	// inIRQ is the delivery state saved while the context is switched out.
	inIRQ bool
}

// NewCPU returns a CPU with interrupts disabled and no handlers.
func NewCPU(log *slog.Logger) *CPU {
	return &CPU{
		log:      logging.Component(log, "cpu"),
		wake:     make(chan struct{}, 1),
		contexts: make(map[*hostContext]struct{}),
		closed:   make(chan struct{}),
	}
}

func (c *CPU) newContext(name string, boot bool) *hostContext {
	hc := &hostContext{
		name:   name,
		boot:   boot,
		resume: make(chan struct{}),
		kill:   make(chan struct{}),
	}
	c.mu.Lock()
	c.contexts[hc] = struct{}{}
	c.mu.Unlock()
	return hc
}

// BootContext adopts the calling goroutine as the first context.
func (c *CPU) BootContext() kernel.ArchContext {
	return c.newContext("boot", true)
}

// BuildContext starts a parked goroutine that runs entry then exit once it is
// first switched to.
func (c *CPU) BuildContext(name string, entry, exit func()) kernel.ArchContext {
	hc := c.newContext(name, false)
	go func() {
		c.park(hc)
		c.inIRQ = false
		entry()
		exit()
	}()
	return hc
}

// SwitchContext hands the CPU from one context to another. It returns when
// some later switch resumes from.
func (c *CPU) SwitchContext(from, to kernel.ArchContext, _ kernel.PageContext) {
	f, t := from.(*hostContext), to.(*hostContext)
	f.inIRQ = c.inIRQ
	select {
	case t.resume <- struct{}{}:
	case <-t.kill:
		panic(fmt.Sprintf("hal: switch to released context %s", t.name))
	}
	c.park(f)
	c.inIRQ = f.inIRQ
}

// park blocks until hc is resumed. A released context, and any context but
// the boot one after Close, ends its goroutine instead.
func (c *CPU) park(hc *hostContext) {
	closed := c.closed
	if hc.boot {
		closed = nil
	}
	select {
	case <-hc.resume:
	case <-hc.kill:
		runtime.Goexit()
	case <-closed:
		runtime.Goexit()
	}
}

// ReleaseContext ends a context's goroutine. The context must not be running.
func (c *CPU) ReleaseContext(ctx kernel.ArchContext) {
	hc := ctx.(*hostContext)
	hc.once.Do(func() { close(hc.kill) })
	c.mu.Lock()
	delete(c.contexts, hc)
	c.mu.Unlock()
}

// Contexts returns the number of contexts not yet released.
func (c *CPU) Contexts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contexts)
}

// RegisterIRQ installs the handler for line. Call it before interrupts are
// first enabled.
func (c *CPU) RegisterIRQ(line int, fn func()) {
	if line < 0 || line >= MaxIRQ {
		panic(fmt.Sprintf("hal: irq line %d out of range", line))
	}
	c.handlers[line] = fn
	c.log.Debug("irq registered", "line", line)
}

// Raise marks line pending. It is safe from any goroutine.
func (c *CPU) Raise(line int) {
	c.pending.Or(1 << uint(line))
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Delivered returns the number of interrupts handled.
func (c *CPU) Delivered() uint64 { return c.irqs.Load() }

// Disable masks interrupts.
func (c *CPU) Disable() { c.enabled = false }

// Enable unmasks interrupts and takes any that are pending.
func (c *CPU) Enable() {
	c.enabled = true
	c.deliver()
}

// Poll takes pending interrupts if they are enabled.
func (c *CPU) Poll() { c.deliver() }

// Halt waits for an interrupt and takes it. It returns at once after Close.
func (c *CPU) Halt() {
	for c.pending.Load() == 0 {
		select {
		case <-c.wake:
		case <-c.closed:
			return
		}
	}
	c.deliver()
}

func (c *CPU) deliver() {
	if !c.enabled || c.inIRQ {
		return
	}
	c.inIRQ = true
	for m := c.pending.Swap(0); m != 0; m = c.pending.Swap(0) {
		for m != 0 {
			line := bits.TrailingZeros64(m)
			m &^= 1 << uint(line)
			c.irqs.Add(1)
			if h := c.handlers[line]; h != nil {
				c.enabled = false
				h()
				c.enabled = true
			}
		}
	}
	c.inIRQ = false
}

// Close ends every parked context other than the boot one and wakes a
// halted CPU.
func (c *CPU) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		n := len(c.contexts)
		c.mu.Unlock()
		c.log.Debug("cpu closed", "contexts", n, "irqs", c.irqs.Load())
	})
	return nil
}
