package hal

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultResolution is the timer period when none is configured.
const DefaultResolution = time.Millisecond

// Timer is the periodic timer interrupt. Each tick it owes is handed to the
// registered handler as one call with the timer resolution.
type Timer struct {
	cpu        *CPU
	resolution time.Duration
	owed       atomic.Uint64
}

// NewTimer attaches a timer of the given resolution to cpu's IRQTimer line.
func NewTimer(cpu *CPU, resolution time.Duration) *Timer {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &Timer{cpu: cpu, resolution: resolution}
}

// Resolution returns the tick period.
func (t *Timer) Resolution() time.Duration { return t.resolution }

// Register installs handler as the timer interrupt.
func (t *Timer) Register(handler func(elapsed time.Duration)) {
	t.cpu.RegisterIRQ(IRQTimer, func() {
		// Ticks are taken one at a time: the handler may switch away, and
		// the next owner's interrupt picks up the rest.
		for t.owed.Load() > 0 {
			t.owed.Add(^uint64(0))
			handler(t.resolution)
		}
	})
}

// Fire raises n ticks. It is safe from any goroutine.
func (t *Timer) Fire(n uint64) {
	if n == 0 {
		return
	}
	t.owed.Add(n)
	t.cpu.Raise(IRQTimer)
}

// Clock converts wall time into timer ticks. Each Step fires the ticks that
// elapsed since the previous one, keeping the remainder.
type Clock struct {
	mu    sync.Mutex
	timer *Timer
	seq   uint64

	last time.Time
	acc  time.Duration
	now  func() time.Time
}

// NewClock returns a clock driving timer.
func NewClock(timer *Timer) *Clock {
	return &Clock{timer: timer, now: time.Now}
}

// Step fires the ticks owed since the previous Step and returns how many. The
// first Step fires one tick.
func (c *Clock) Step() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.last.IsZero() {
		c.last = now
		c.acc = 0
		return c.stepN(1)
	}

	c.acc += now.Sub(c.last)
	c.last = now

	res := c.timer.Resolution()
	ticks := uint64(c.acc / res)
	if ticks == 0 {
		return 0
	}
	c.acc = c.acc % res
	return c.stepN(ticks)
}

func (c *Clock) stepN(n uint64) uint64 {
	c.seq += n
	c.timer.Fire(n)
	return n
}

// Ticks returns the number of ticks fired so far.
func (c *Clock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
