package kernel

import "arbitros/internal/slotmap"

// schedule selects the next thread and makes it current. It never fails:
// the idle thread is always eligible.
func (k *Kernel) schedule() {
	if !k.started {
		return
	}
	var next *tcb
	switch k.cfg.Policy {
	case PriorityBased:
		next = k.pickPriority()
	default:
		next = k.pickRoundRobin()
	}
	if cur := k.current; cur != nil && cur != next && cur.status == Running {
		cur.status = Ready
	}
	next.status = Running
	k.current = next
	k.rrNext = slotmap.Handle{}
	k.switches++
}

// pickRoundRobin walks forward from the current thread, wrapping, and
// returns the first thread that is not sleeping. Idle only runs when
// nothing else can.
func (k *Kernel) pickRoundRobin() *tcb {
	var (
		h  slotmap.Handle
		ok bool
	)
	switch cur := k.current; {
	case cur != nil && cur.where == k.ready:
		h, ok = k.ready.Next(cur.link)
	case k.ready.Contains(k.rrNext):
		h, ok = k.rrNext, true
	default:
		h, ok = k.ready.Front()
	}
	for i := 0; ok && i < k.ready.Len(); i++ {
		t, _ := k.ready.Get(h)
		if t != k.idle && t.status != Sleeping {
			return t
		}
		h, ok = k.ready.Next(h)
	}
	return k.idle
}

// pickPriority returns the non-sleeping thread with the smallest priority value.
func (k *Kernel) pickPriority() *tcb {
	best := k.idle
	k.ready.Each(func(_ slotmap.Handle, t *tcb) bool {
		if t.status != Sleeping && t.priority < best.priority {
			best = t
		}
		return true
	})
	return best
}

// activeCount counts runnable threads other than idle, for the load estimate.
func (k *Kernel) activeCount() uint32 {
	var n uint32
	k.ready.Each(func(_ slotmap.Handle, t *tcb) bool {
		if t != k.idle && (t.status == Ready || t.status == Running) {
			n++
		}
		return true
	})
	return n
}
