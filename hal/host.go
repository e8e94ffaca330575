package hal

import (
	"log/slog"
	"time"

	"sparksched/kernel"
)

// Config selects the host machine's parameters.
type Config struct {
	// Resolution is the timer period. Zero means DefaultResolution.
	Resolution time.Duration
	Logger     *slog.Logger
}

// Host is the host machine: a goroutine CPU, its timer, a wall clock feeding
// the timer and a recording MMU.
type Host struct {
	cpu   *CPU
	timer *Timer
	clock *Clock
	mmu   *MMU
}

// New returns a host machine.
func New(cfg Config) *Host {
	cpu := NewCPU(cfg.Logger)
	timer := NewTimer(cpu, cfg.Resolution)
	return &Host{
		cpu:   cpu,
		timer: timer,
		clock: NewClock(timer),
		mmu:   NewMMU(),
	}
}

// Platform returns the kernel-facing view of the machine.
func (h *Host) Platform() kernel.Platform {
	return kernel.Platform{
		Arch:       h.cpu,
		Interrupts: h.cpu,
		MMU:        h.mmu,
		Timer:      h.timer,
	}
}

func (h *Host) CPU() *CPU     { return h.cpu }
func (h *Host) Timer() *Timer { return h.timer }
func (h *Host) Clock() *Clock { return h.clock }
func (h *Host) MMU() *MMU     { return h.mmu }

// OnShutdown installs fn as the IRQShutdown handler. It runs in interrupt
// context on the CPU.
func (h *Host) OnShutdown(fn func()) {
	h.cpu.RegisterIRQ(IRQShutdown, fn)
}

// RequestShutdown raises IRQShutdown. It is safe from any goroutine.
func (h *Host) RequestShutdown() {
	h.cpu.Raise(IRQShutdown)
}

// Close releases the CPU's goroutines.
func (h *Host) Close() error {
	return h.cpu.Close()
}
