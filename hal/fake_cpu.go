package hal

import (
	"sync"
	"time"
)

// HaltPanic is the value FakeCPU.Halt panics with.
type HaltPanic struct{}

// Suspended is the value FakeCPU.Restore panics with, when Unwind is set,
// instead of returning into a thread that a real core would have parked.
type Suspended struct{}

// FakeCPU is a CPU for white-box tests. Restore only records the frame that
// would run next; nothing is ever parked or launched, so the caller keeps
// driving the kernel "as" whichever thread is current. Raise dispatches
// synchronously when interrupts are enabled.
//
// With Unwind set, a Restore that hands the CPU away from a saved frame
// panics with Suspended, so the code after the suspension point never runs
// until the test resumes that thread some other way.
type FakeCPU struct {
	pic

	Running  *Frame
	Saves    int
	Restores int
	Unwind   bool
	halted   chan struct{}
}

func NewFakeCPU() *FakeCPU {
	c := &FakeCPU{halted: make(chan struct{})}
	c.pic.init()
	return c
}

func (c *FakeCPU) Enable() {
	c.ints = true
	c.poll()
}

func (c *FakeCPU) RestoreInterrupts(was bool) {
	if was {
		c.Enable()
		return
	}
	c.ints = false
}

func (c *FakeCPU) Raise(line IRQ) {
	c.pic.Raise(line)
	c.poll()
}

func (c *FakeCPU) Poll()             { c.poll() }
func (c *FakeCPU) WaitForInterrupt() { c.poll() }

func (c *FakeCPU) SaveWithIntsOn(f *Frame) {
	c.Saves++
	c.pic.SaveWithIntsOn(f)
}

func (c *FakeCPU) SaveWithIntsOff(f *Frame) {
	c.Saves++
	c.pic.SaveWithIntsOff(f)
}

func (c *FakeCPU) Restore(f *Frame) {
	from := c.saved
	c.Restores++
	c.saved = nil
	c.kstack = false
	c.inISR = false
	c.ints = f.intsOn
	c.Running = f
	if c.Unwind && from != nil && from != f {
		panic(Suspended{})
	}
}

func (c *FakeCPU) Halt() {
	select {
	case <-c.halted:
	default:
		close(c.halted)
	}
	panic(HaltPanic{})
}

func (c *FakeCPU) Halted() <-chan struct{} { return c.halted }

// ManualTimer is a Timer that only ticks when Fire is called.
type ManualTimer struct {
	mu     sync.Mutex
	period time.Duration
	raise  func()
	fired  uint64
}

func (t *ManualTimer) Configure(period time.Duration) error {
	if period <= 0 {
		return ErrNotImplemented
	}
	t.mu.Lock()
	t.period = period
	t.mu.Unlock()
	return nil
}

func (t *ManualTimer) Start(raise func()) error {
	t.mu.Lock()
	t.raise = raise
	t.mu.Unlock()
	return nil
}

func (t *ManualTimer) Stop() {
	t.mu.Lock()
	t.raise = nil
	t.mu.Unlock()
}

// Fire raises n timer interrupts. It returns false if the timer is stopped.
func (t *ManualTimer) Fire(n int) bool {
	t.mu.Lock()
	raise := t.raise
	t.mu.Unlock()
	if raise == nil {
		return false
	}
	for i := 0; i < n; i++ {
		raise()
		t.mu.Lock()
		t.fired++
		t.mu.Unlock()
	}
	return true
}

func (t *ManualTimer) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

func (t *ManualTimer) Fired() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
