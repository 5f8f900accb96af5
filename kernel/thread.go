package kernel

import (
	"encoding/binary"
	"fmt"

	"arbitros/hal"
	"arbitros/internal/heap"
	"arbitros/internal/klog"
	"arbitros/internal/slotmap"
)

// ThreadFunc is a thread entry point. Returning from it exits the thread.
type ThreadFunc func(k *Kernel, param, arg int)

// ThreadID is a generation-checked thread handle; stale ids are rejected.
type ThreadID slotmap.Handle

func (id ThreadID) String() string {
	if !slotmap.Handle(id).Valid() {
		return "t-"
	}
	return fmt.Sprintf("t%d", slotmap.Handle(id).Index())
}

// Status is the scheduling state of a thread.
type Status uint8

const (
	Ready Status = iota
	Running
	Blocked
	Sleeping
	Initialized
	Terminated
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Sleeping:
		return "SLEEPING"
	case Initialized:
		return "INIT"
	case Terminated:
		return "TERM"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

const (
	// IdlePriority is reserved for the idle thread; lower values run first.
	IdlePriority = 255

	StackSentinel   = 0xDEAD
	ExtraStackBytes = 45

	tcbBytes   = 16
	frameBytes = 35
)

type tcb struct {
	id        ThreadID
	status    Status
	priority  uint8
	quantum   uint16
	stackSize uint16

	mem        heap.Ptr
	memSize    int
	stackStart uint32
	stackEnd   uint32
	sp         uint32

	frame *hal.Frame
	entry ThreadFunc
	param int
	arg   int

	// link is the handle in whichever list holds the thread: the ready list
	// or a semaphore's blocked list.
	link      slotmap.Handle
	where     *slotmap.Map[*tcb]
	blockedOn *semaphore
	wakeErr   error
}

// ThreadInfo is a snapshot of one thread.
type ThreadInfo struct {
	ID         ThreadID
	Priority   uint8
	Status     Status
	Quantum    uint16
	StackSize  uint16
	StackStart uint32
	StackEnd   uint32
	SP         uint32
}

// CreateThread allocates a thread and makes it READY. Priorities are unique
// among live threads; IdlePriority is always taken.
func (k *Kernel) CreateThread(entry ThreadFunc, param, arg int, stackSize uint16, priority uint8) (ThreadID, error) {
	if entry == nil || k.cpu.InInterrupt() {
		return ThreadID{}, ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	return k.createThread(entry, param, arg, stackSize, priority)
}

func (k *Kernel) createThread(entry ThreadFunc, param, arg int, stackSize uint16, priority uint8) (ThreadID, error) {
	if k.priorityTaken(priority) {
		return ThreadID{}, ErrInvalidPriority
	}
	size := tcbBytes + int(stackSize) + ExtraStackBytes
	mem, err := k.Alloc(size)
	if err != nil {
		return ThreadID{}, err
	}
	t := &tcb{
		status:    Initialized,
		priority:  priority,
		stackSize: stackSize,
		mem:       mem,
		memSize:   size,
		entry:     entry,
		param:     param,
		arg:       arg,
	}
	h, ok := k.threads.Insert(t)
	if !ok {
		k.heap.Free(mem)
		return ThreadID{}, ErrOutOfHeap
	}
	t.id = ThreadID(h)

	base := k.heap.Offset(mem)
	t.stackStart = base + tcbBytes
	t.stackEnd = base + uint32(size) - 1
	t.sp = t.stackEnd - frameBytes
	binary.LittleEndian.PutUint16(k.heap.Bytes(mem, size)[tcbBytes:], StackSentinel)
	t.frame = hal.NewFrame(func() { k.threadMain(t) })

	k.makeReady(t)
	k.log.Printf(klog.Low, "thread %v: created, prio %d, stack %d", t.id, priority, stackSize)
	return t.id, nil
}

func (k *Kernel) priorityTaken(p uint8) bool {
	taken := false
	k.threads.Each(func(_ slotmap.Handle, t *tcb) bool {
		if t.status != Terminated && t.priority == p {
			taken = true
			return false
		}
		return true
	})
	return taken
}

// threadMain is the body of every thread frame.
func (k *Kernel) threadMain(t *tcb) {
	t.entry(k, t.param, t.arg)

	k.cpu.Disable()
	k.cpu.SwitchToKernelStack()
	k.checkStack(t)
	k.log.Printf(klog.Low, "thread %v: exited", t.id)
	k.retire(t)
	k.schedule()
	k.cpu.Restore(k.current.frame)
}

// DestroyThread removes a thread that is not running. A blocked thread is
// taken off its semaphore's waiters and the count adjusted.
func (k *Kernel) DestroyThread(id ThreadID) error {
	if k.cpu.InInterrupt() {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	t, ok := k.threads.Get(slotmap.Handle(id))
	if !ok {
		return ErrInvalidHandle
	}
	if t == k.idle || (k.started && t == k.current) {
		return ErrInvalidArgument
	}
	if t.status == Blocked && t.blockedOn != nil {
		t.blockedOn.count++
	}
	k.retire(t)
	k.log.Printf(klog.Low, "thread %v: destroyed", id)
	return nil
}

func (k *Kernel) retire(t *tcb) {
	k.detach(t)
	t.blockedOn = nil
	t.status = Terminated
	k.threads.Remove(slotmap.Handle(t.id))
	k.heap.Free(t.mem)
	t.mem = 0
}

func (k *Kernel) makeReady(t *tcb) {
	t.status = Ready
	t.blockedOn = nil
	t.link, _ = k.ready.Insert(t)
	t.where = k.ready
}

// detach takes t off whichever list holds it.
func (k *Kernel) detach(t *tcb) {
	if t.where == nil {
		return
	}
	if t.where == k.ready && t == k.current {
		if next, ok := k.ready.Next(t.link); ok && next != t.link {
			k.rrNext = next
		} else {
			k.rrNext = slotmap.Handle{}
		}
	}
	t.where.Remove(t.link)
	t.where = nil
	t.link = slotmap.Handle{}
}

// Sleep suspends the calling thread for ticks timer periods. Sleep(0)
// yields the CPU.
func (k *Kernel) Sleep(ticks uint16) error {
	if !k.inThread() || k.current == k.idle {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)

	cur := k.current
	if ticks == 0 {
		cur.status = Ready
	} else {
		cur.quantum = ticks
		cur.status = Sleeping
	}
	k.yield(was)
	return nil
}

// Yield gives up the rest of the time slice.
func (k *Kernel) Yield() error {
	if !k.inThread() {
		return ErrInvalidArgument
	}
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	k.current.status = Ready
	k.yield(was)
	return nil
}

// Current returns the id of the thread holding the CPU.
func (k *Kernel) Current() ThreadID {
	if k.current == nil {
		return ThreadID{}
	}
	return k.current.id
}

// Idle returns the id of the idle thread.
func (k *Kernel) Idle() ThreadID { return k.idle.id }

// Status returns the scheduling state of a live thread.
func (k *Kernel) Status(id ThreadID) (Status, error) {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	t, ok := k.threads.Get(slotmap.Handle(id))
	if !ok {
		return Terminated, ErrInvalidHandle
	}
	return t.status, nil
}

// Threads returns a snapshot of every live thread in creation order.
func (k *Kernel) Threads() []ThreadInfo {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	out := make([]ThreadInfo, 0, k.threads.Len())
	k.threads.Each(func(_ slotmap.Handle, t *tcb) bool {
		out = append(out, ThreadInfo{
			ID:         t.id,
			Priority:   t.priority,
			Status:     t.status,
			Quantum:    t.quantum,
			StackSize:  t.stackSize,
			StackStart: t.stackStart,
			StackEnd:   t.stackEnd,
			SP:         t.sp,
		})
		return true
	})
	return out
}

// checkStack halts the system if t overwrote the sentinel at its stack base.
func (k *Kernel) checkStack(t *tcb) {
	if t == nil || t.mem == 0 {
		return
	}
	b := k.heap.Bytes(t.mem, t.memSize)
	if b == nil || binary.LittleEndian.Uint16(b[tcbBytes:]) != StackSentinel {
		k.fatal(t, ErrStackOverflow)
	}
}

// stack exposes the stack region of a thread, sentinel included.
func (k *Kernel) stack(id ThreadID) []byte {
	t, ok := k.threads.Get(slotmap.Handle(id))
	if !ok {
		return nil
	}
	return k.heap.Bytes(t.mem, t.memSize)[tcbBytes:]
}
