package kernel

// Semaphore is a counting semaphore. count is the number of holders; a thread
// that finds count at max waits in FIFO order.
type Semaphore struct {
	k       *Kernel
	count   int
	max     int
	waiters threadQueue
	dead    bool
}

// NewSemaphore creates a semaphore admitting max concurrent holders.
func (k *Kernel) NewSemaphore(max int) *Semaphore {
	return k.NewSemaphoreCount(max, 0)
}

// NewSemaphoreCount creates a semaphore with held slots already taken.
func (k *Kernel) NewSemaphoreCount(max, held int) *Semaphore {
	if max < 1 || held < 0 || held > max {
		k.fatalf("semaphore bounds max=%d held=%d", max, held)
	}
	return &Semaphore{
		k:       k,
		count:   held,
		max:     max,
		waiters: threadQueue{name: "semaphore wait queue"},
	}
}

// NewMutex creates a semaphore with a single slot.
func (k *Kernel) NewMutex() *Semaphore {
	return k.NewSemaphore(1)
}

// Acquire takes a slot, blocking the active thread while none is free. A
// blocked thread resumes already owning the slot its waker released.
func (s *Semaphore) Acquire() {
	k := s.k
	k.TaskSwitchDisable()
	if s.dead {
		k.fatalf("acquire of destroyed semaphore")
	}
	if s.count < s.max {
		s.count++
		k.TaskSwitchEnable()
		return
	}
	if k.switchDepth > 1 {
		k.fatalf("semaphore acquire would block with task switching disabled")
	}
	k.enqueue(&s.waiters, k.active)
	k.block(StateBlocked)
	k.TaskSwitchEnable()
}

// TryAcquire takes a slot if one is free and reports whether it did.
func (s *Semaphore) TryAcquire() bool {
	k := s.k
	k.TaskSwitchDisable()
	ok := !s.dead && s.count < s.max
	if ok {
		s.count++
	}
	k.TaskSwitchEnable()
	return ok
}

// Release gives a slot back. With waiters present the slot passes straight to
// the first one and count is left unchanged. Releasing an unheld semaphore is
// a no-op; releasing a destroyed one is fatal.
func (s *Semaphore) Release() {
	k := s.k
	k.TaskSwitchDisable()
	if s.dead {
		k.fatalf("release of destroyed semaphore")
	}
	if w := k.dequeue(&s.waiters); w != nil {
		k.wake(w)
	} else if s.count > 0 {
		s.count--
	}
	k.TaskSwitchEnable()
}

// CanAcquire reports whether Acquire would return without blocking.
func (s *Semaphore) CanAcquire() bool { return !s.dead && s.count < s.max }

// Count returns the number of current holders.
func (s *Semaphore) Count() int { return s.count }

// Max returns the holder limit.
func (s *Semaphore) Max() int { return s.max }

// Waiters returns the number of blocked acquirers.
func (s *Semaphore) Waiters() int { return s.waiters.len() }

// Destroy retires the semaphore. Destroying one with waiters is fatal.
func (s *Semaphore) Destroy() {
	k := s.k
	k.Lock()
	if !s.waiters.empty() {
		k.fatalf("destroying semaphore with %d waiters", s.waiters.len())
	}
	s.dead = true
	k.Unlock()
}
