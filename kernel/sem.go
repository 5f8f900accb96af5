package kernel

import (
	"fmt"

	"arbitros/internal/heap"
	"arbitros/internal/klog"
	"arbitros/internal/slotmap"
)

// SemType selects how a semaphore is initialised and how Signal wakes waiters.
type SemType uint8

const (
	// SemMutex starts at 1; Signal wakes the highest-priority waiter.
	SemMutex SemType = iota
	// SemCounting starts at 0; Signal wakes the highest-priority waiter.
	SemCounting
	// SemSignal starts at 0; Signal wakes every waiter and resets the count.
	SemSignal
)

func (t SemType) String() string {
	switch t {
	case SemMutex:
		return "mutex"
	case SemCounting:
		return "counting"
	case SemSignal:
		return "signal"
	default:
		return fmt.Sprintf("SemType(%d)", uint8(t))
	}
}

// Mode selects whether Wait (and mailbox I/O) may suspend the caller.
type Mode uint8

const (
	Blocking Mode = iota
	NonBlocking
)

// SemID is a generation-checked semaphore handle.
type SemID slotmap.Handle

const semBytes = 8

type semaphore struct {
	id      SemID
	typ     SemType
	count   int16
	blocked *slotmap.Map[*tcb]
	mem     heap.Ptr
}

// CreateSemaphore allocates a semaphore of the given type.
func (k *Kernel) CreateSemaphore(typ SemType) (SemID, error) {
	if typ > SemSignal || k.cpu.InInterrupt() {
		return SemID{}, ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	mem, err := k.Alloc(semBytes)
	if err != nil {
		return SemID{}, err
	}
	s := &semaphore{typ: typ, blocked: slotmap.New[*tcb](0), mem: mem}
	if typ == SemMutex {
		s.count = 1
	}
	h, ok := k.sems.Insert(s)
	if !ok {
		k.heap.Free(mem)
		return SemID{}, ErrOutOfHeap
	}
	s.id = SemID(h)
	return s.id, nil
}

// DestroySemaphore frees a semaphore. Threads blocked on it are made READY
// and their Wait returns ErrInvalidHandle.
func (k *Kernel) DestroySemaphore(id SemID) error {
	if k.cpu.InInterrupt() {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	s, ok := k.sems.Remove(slotmap.Handle(id))
	if !ok {
		return ErrInvalidHandle
	}
	s.blocked.Drain(func(t *tcb) {
		t.where = nil
		t.wakeErr = ErrInvalidHandle
		k.makeReady(t)
	})
	k.heap.Free(s.mem)
	return nil
}

// InitSemaphore sets the count of a semaphore that has no waiters.
func (k *Kernel) InitSemaphore(id SemID, value int16) error {
	if value < 0 {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	s, ok := k.sems.Get(slotmap.Handle(id))
	if !ok {
		return ErrInvalidHandle
	}
	if s.blocked.Len() > 0 {
		return ErrInvalidArgument
	}
	s.count = value
	return nil
}

// SemaphoreCount returns the count; negative values are the number of waiters.
func (k *Kernel) SemaphoreCount(id SemID) (int, error) {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	s, ok := k.sems.Get(slotmap.Handle(id))
	if !ok {
		return 0, ErrInvalidHandle
	}
	return int(s.count), nil
}

// Wait decrements the semaphore. In Blocking mode a negative result
// suspends the caller until a Signal selects it. NonBlocking never suspends
// and reports ErrWouldBlock instead. Interrupt handlers may only use
// NonBlocking.
func (k *Kernel) Wait(id SemID, mode Mode) error {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	s, ok := k.sems.Get(slotmap.Handle(id))
	if !ok {
		return ErrInvalidHandle
	}
	if mode == NonBlocking {
		if s.count <= 0 {
			return ErrWouldBlock
		}
		s.count--
		return nil
	}
	if s.count > 0 {
		s.count--
		return nil
	}
	if !k.inThread() || k.current == k.idle {
		return ErrInvalidArgument
	}

	s.count--
	cur := k.current
	k.save(cur, was)
	k.cpu.SwitchToKernelStack()
	k.checkStack(cur)
	k.detach(cur)
	cur.status = Blocked
	cur.blockedOn = s
	cur.wakeErr = nil
	cur.link, _ = s.blocked.Insert(cur)
	cur.where = s.blocked
	k.schedule()
	k.cpu.Restore(k.current.frame)
	return cur.wakeErr
}

// Signal increments the semaphore and releases waiters. If a released
// thread has priority at least equal to the caller's, the caller yields.
// Signal is safe from interrupt handlers.
func (k *Kernel) Signal(id SemID) error {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	s, ok := k.sems.Get(slotmap.Handle(id))
	if !ok {
		return ErrInvalidHandle
	}
	s.count++
	if s.blocked.Len() == 0 {
		return nil
	}

	var woken *tcb
	if s.typ == SemSignal {
		s.blocked.Drain(func(t *tcb) {
			t.where = nil
			k.makeReady(t)
			if woken == nil || t.priority < woken.priority {
				woken = t
			}
		})
		s.count = 0
	} else {
		woken = highest(s.blocked)
		k.detach(woken)
		k.makeReady(woken)
	}
	k.log.Printf(klog.Low, "sem: %v released %v", s.typ, woken.id)

	cur := k.current
	if k.started && cur != nil && cur != woken && woken.priority <= cur.priority {
		if cur.status == Running {
			cur.status = Ready
		}
		// From an interrupt the thread resumes with interrupts enabled.
		k.yield(was || k.cpu.InInterrupt())
	}
	return nil
}

func highest(m *slotmap.Map[*tcb]) *tcb {
	var best *tcb
	m.Each(func(_ slotmap.Handle, t *tcb) bool {
		if best == nil || t.priority < best.priority {
			best = t
		}
		return true
	})
	return best
}
