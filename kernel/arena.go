package kernel

// ref is a generational slot reference. Generation 0 is never issued, so the
// zero ref resolves to nothing.
type ref struct {
	slot uint32
	gen  uint32
}

func (r ref) valid() bool { return r.gen != 0 }

type arenaSlot[T any] struct {
	gen uint32
	val *T
}

// arena stores records by slot and bumps a slot's generation on removal, so
// handles to freed records go stale instead of aliasing a reused slot.
type arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	live  int
}

func (a *arena[T]) insert(v *T) ref {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}
	s := &a.slots[slot]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.val = v
	a.live++
	return ref{slot: slot, gen: s.gen}
}

func (a *arena[T]) get(r ref) *T {
	if !r.valid() || int(r.slot) >= len(a.slots) {
		return nil
	}
	s := &a.slots[r.slot]
	if s.gen != r.gen {
		return nil
	}
	return s.val
}

func (a *arena[T]) remove(r ref) bool {
	if a.get(r) == nil {
		return false
	}
	s := &a.slots[r.slot]
	s.val = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, r.slot)
	a.live--
	return true
}

// each visits live records in slot order.
func (a *arena[T]) each(fn func(*T)) {
	for i := range a.slots {
		if v := a.slots[i].val; v != nil {
			fn(v)
		}
	}
}

func (a *arena[T]) len() int { return a.live }
