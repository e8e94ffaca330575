package kernel

// threadQueue is a singly linked head/tail list of threads threaded through
// thread.next. It is used as the run queue, the sleep stack, the exit queue and
// semaphore wait queues; a thread is linked into at most one at a time.
//
// Callers must hold the scheduler lock or the task-switch guard.
type threadQueue struct {
	name string
	head ThreadHandle
	tail ThreadHandle
	n    int
}

func (q *threadQueue) empty() bool { return !q.head.Valid() }

func (q *threadQueue) len() int { return q.n }

func (k *Kernel) link(q *threadQueue, t *thread) {
	if t.queue != nil {
		k.fatalf("thread %d (%s) linked into %s while on %s", t.tid, t.name, q.name, t.queue.name)
	}
	if t.next.Valid() {
		k.fatalf("thread %d (%s) has a stale next link", t.tid, t.name)
	}
	t.queue = q
	q.n++
}

// enqueue appends t at the tail.
func (k *Kernel) enqueue(q *threadQueue, t *thread) {
	k.link(q, t)
	if q.tail.Valid() {
		k.mustThread(q.tail).next = t.self
	} else {
		q.head = t.self
	}
	q.tail = t.self
}

// push inserts t at the head.
func (k *Kernel) push(q *threadQueue, t *thread) {
	k.link(q, t)
	t.next = q.head
	q.head = t.self
	if !q.tail.Valid() {
		q.tail = t.self
	}
}

// dequeue unlinks and returns the head, or nil when q is empty.
func (k *Kernel) dequeue(q *threadQueue) *thread {
	if q.empty() {
		return nil
	}
	t := k.mustThread(q.head)
	k.dequeueHead(q, t)
	return t
}

// dequeueHead unlinks t, which must be the current head of q.
func (k *Kernel) dequeueHead(q *threadQueue, t *thread) {
	if q.head != t.self || t.queue != q {
		k.fatalf("thread %d (%s) is not the head of %s", t.tid, t.name, q.name)
	}
	q.head = t.next
	if !q.head.Valid() {
		q.tail = ThreadHandle{}
	}
	t.next = ThreadHandle{}
	t.queue = nil
	q.n--
}

// remove unlinks t from anywhere in q. It reports whether t was found.
func (k *Kernel) remove(q *threadQueue, t *thread) bool {
	if t.queue != q {
		return false
	}
	if q.head == t.self {
		k.dequeueHead(q, t)
		return true
	}
	prev := k.mustThread(q.head)
	for prev.next.Valid() && prev.next != t.self {
		prev = k.mustThread(prev.next)
	}
	if prev.next != t.self {
		k.fatalf("thread %d (%s) claims %s but is not reachable", t.tid, t.name, q.name)
	}
	prev.next = t.next
	if q.tail == t.self {
		q.tail = prev.self
	}
	t.next = ThreadHandle{}
	t.queue = nil
	q.n--
	return true
}

// handles returns the members of q from head to tail.
func (k *Kernel) handles(q *threadQueue) []ThreadHandle {
	out := make([]ThreadHandle, 0, q.n)
	for h := q.head; h.Valid(); h = k.mustThread(h).next {
		out = append(out, h)
	}
	return out
}
