package kernel

import "slices"

func (k *Kernel) createProcess() ProcessHandle {
	p := &process{pid: k.nextPID}
	k.nextPID++
	p.self = ProcessHandle(k.procs.insert(p))
	return p.self
}

// CreateProcess allocates a process with no threads and no address space.
func (k *Kernel) CreateProcess() ProcessHandle {
	k.Lock()
	h := k.createProcess()
	pid := k.procs.get(ref(h)).pid
	k.Unlock()
	k.log.Debug("process created", "pid", pid)
	return h
}

// SetPageContext records the address space of a process. The MMU switches to
// it whenever one of the process's threads is dispatched.
func (k *Kernel) SetPageContext(h ProcessHandle, pc PageContext) {
	k.Lock()
	k.mustProcess(h).pc = pc
	k.Unlock()
}

// CreateThread creates a thread in parent that runs entry(param) and
// terminates when entry returns. The thread is queued ready; CreateThread
// never blocks or switches.
func (k *Kernel) CreateThread(parent ProcessHandle, entry ThreadFunc, prio Priority, name string, param any) ThreadHandle {
	k.Lock()
	p := k.mustProcess(parent)
	t := &thread{
		tid:    k.nextTID,
		parent: parent,
		state:  StateNew,
		prio:   prio,
		name:   name,
	}
	k.nextTID++
	t.self = ThreadHandle(k.threads.insert(t))
	t.ctx = k.arch.BuildContext(name, func() {
		k.threadStart()
		entry(param)
	}, k.Terminate)
	p.children = append(p.children, t.self)
	t.state = StateReady
	k.enqueue(&k.runQueue, t)
	k.stats.Created++
	k.emit(EventCreate, t, nil)
	k.Unlock()
	k.log.Debug("thread created", "tid", t.tid, "name", name, "pid", p.pid, "priority", prio)
	return t.self
}

// threadStart runs first on a new context. The switch that started it was
// made under one level of scheduler lock, which the new thread drops.
func (k *Kernel) threadStart() {
	k.lockDepth, k.switchDepth = 1, 0
	k.Unlock()
}

// Terminate ends the active thread. It queues the thread for the reaper and
// never returns.
func (k *Kernel) Terminate() {
	k.TaskSwitchDisable()
	t := k.active
	if t == k.idle || t == k.reaper {
		k.fatalf("%s thread cannot terminate", t.name)
	}
	if k.switchDepth > 1 {
		k.fatalf("Terminate with task switching disabled")
	}
	k.enqueue(&k.exitQueue, t)
	k.block(StateExited)
	if k.reaper != nil {
		k.unblock(k.reaper)
	}
	k.TaskSwitchEnable()
	k.fatalf("exited thread %d (%s) was resumed", t.tid, t.name)
}

// StartReaper creates the reaper thread. Run calls it; it is idempotent.
func (k *Kernel) StartReaper() {
	if k.reaper != nil {
		return
	}
	h := k.CreateThread(k.kproc, func(any) { k.reapLoop() }, PriorityNormal, "reaper", nil)
	k.reaper = k.mustThread(h)
}

func (k *Kernel) reapLoop() {
	for {
		k.Lock()
		k.reap()
		k.block(StateSuspended)
		k.Unlock()
	}
}

// reap destroys everything on the exit queue. Only the reaper calls it, so no
// thread ever sees another thread's record half freed.
func (k *Kernel) reap() int {
	n := 0
	for t := k.dequeue(&k.exitQueue); t != nil; t = k.dequeue(&k.exitQueue) {
		k.destroyThread(t)
		n++
	}
	return n
}

// DestroyThread frees an exited thread that is linked into no queue.
func (k *Kernel) DestroyThread(h ThreadHandle) {
	k.Lock()
	k.destroyThread(k.mustThread(h))
	k.Unlock()
}

func (k *Kernel) destroyThread(t *thread) {
	if t.state != StateExited {
		k.fatalf("destroying thread %d (%s) in state %s", t.tid, t.name, t.state)
	}
	if t.queue != nil || t.next.Valid() {
		k.fatalf("destroying thread %d (%s) still linked", t.tid, t.name)
	}
	if t == k.active {
		k.fatalf("destroying the active thread %d (%s)", t.tid, t.name)
	}
	k.arch.ReleaseContext(t.ctx)
	t.ctx = nil

	p := k.mustProcess(t.parent)
	if i := slices.Index(p.children, t.self); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	k.threads.remove(ref(t.self))
	k.stats.Reaped++
	k.emit(EventReap, t, nil)
	k.log.Debug("thread reaped", "tid", t.tid, "name", t.name, "pid", p.pid)

	if len(p.children) == 0 && p.self != k.kproc {
		k.destroyProcess(p)
	}
}

// DestroyProcess frees a process that owns no threads and releases its page
// context.
func (k *Kernel) DestroyProcess(h ProcessHandle) {
	k.Lock()
	k.destroyProcess(k.mustProcess(h))
	k.Unlock()
}

func (k *Kernel) destroyProcess(p *process) {
	if len(p.children) != 0 {
		k.fatalf("destroying process %d with %d threads", p.pid, len(p.children))
	}
	if p.self == k.kproc {
		k.fatalf("destroying the kernel process")
	}
	k.mmu.Release(p.pc)
	k.procs.remove(ref(p.self))
	k.log.Debug("process destroyed", "pid", p.pid)
}
