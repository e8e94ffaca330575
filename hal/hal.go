// Package hal supplies the machine a kernel runs on: a CPU that switches
// contexts and takes interrupts, a periodic timer and an MMU. The host
// implementation models each kernel thread as a goroutine of which exactly
// one runs at a time.
package hal

import (
	"errors"

	"sparksched/kernel"
)

// Interrupt lines of the host CPU.
const (
	IRQTimer    = 0
	IRQShutdown = 1

	// MaxIRQ is the number of interrupt lines.
	MaxIRQ = 64
)

// ErrClosed is returned by operations on a CPU after Close.
var ErrClosed = errors.New("hal: cpu closed")

var _ kernel.Arch = (*CPU)(nil)
var _ kernel.Interrupts = (*CPU)(nil)
var _ kernel.Timer = (*Timer)(nil)
var _ kernel.MMU = (*MMU)(nil)
