package workload

import (
	"fmt"
	"log/slog"

	"sparksched/internal/logging"
	"sparksched/ipc"
	"sparksched/kernel"
)

// Objects holds the named semaphores and mailboxes programs refer to.
type Objects struct {
	Semaphores map[string]*kernel.Semaphore
	Mailboxes  map[string]*ipc.Mailbox
}

// NewObjects returns an empty registry.
func NewObjects() *Objects {
	return &Objects{
		Semaphores: make(map[string]*kernel.Semaphore),
		Mailboxes:  make(map[string]*ipc.Mailbox),
	}
}

// Check reports the first object p names that objs does not hold.
func (p Program) Check(objs *Objects) error {
	for _, s := range p {
		switch s.Op {
		case OpLock, OpUnlock, OpDown, OpUp:
			if objs.Semaphores[s.Object] == nil {
				return fmt.Errorf("%w: semaphore %q", ErrUnknownObject, s.Object)
			}
		case OpSend, OpRecv:
			if objs.Mailboxes[s.Object] == nil {
				return fmt.Errorf("%w: mailbox %q", ErrUnknownObject, s.Object)
			}
		}
	}
	return nil
}

// Runner executes a program on the active kernel thread.
type Runner struct {
	K       *kernel.Kernel
	Objects *Objects
	Log     *slog.Logger
	// Received is called with every message a recv step takes.
	Received func(thread string, msg ipc.Message)
}

// NewRunner returns a runner logging to log, or nowhere if log is nil.
func NewRunner(k *kernel.Kernel, objs *Objects, log *slog.Logger) *Runner {
	return &Runner{K: k, Objects: objs, Log: logging.Component(log, "workload")}
}

// Run executes p once. It must be called from a kernel thread, and p must
// have passed Check against r.Objects.
func (r *Runner) Run(thread string, p Program) {
	k := r.K
	for _, s := range p {
		switch s.Op {
		case OpSpin:
			for i := 0; i < s.N; i++ {
				k.Checkpoint()
			}
		case OpSleep:
			k.Sleep(s.D)
		case OpYield:
			k.Yield()
		case OpLock, OpDown:
			r.Objects.Semaphores[s.Object].Acquire()
		case OpUnlock, OpUp:
			r.Objects.Semaphores[s.Object].Release()
		case OpSend:
			msg, err := ipc.NewMessage(ipc.MsgData, []byte(s.Text))
			if err != nil {
				r.Log.Warn("send dropped", "thread", thread, "mailbox", s.Object, "error", err)
				continue
			}
			r.Objects.Mailboxes[s.Object].Send(msg)
		case OpRecv:
			msg := r.Objects.Mailboxes[s.Object].Recv()
			if r.Received != nil {
				r.Received(thread, msg)
			}
		case OpLog:
			r.Log.Info(s.Text, "thread", thread, "at", k.Now())
		}
	}
}

// Entry returns a thread function that runs p repeat times. Repeat below one
// runs it once.
func (r *Runner) Entry(thread string, p Program, repeat int) kernel.ThreadFunc {
	if repeat < 1 {
		repeat = 1
	}
	return func(any) {
		for i := 0; i < repeat; i++ {
			r.Run(thread, p)
		}
	}
}
