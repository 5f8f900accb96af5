package hal

import (
	"sync"
	"sync/atomic"
)

// IRQ identifies an interrupt line. Lower lines are serviced first.
type IRQ uint8

const (
	IRQTimer IRQ = iota
	IRQUser0
	IRQUser1
	IRQUser2
	maxIRQ
)

// Frame is the saved execution state of one thread.
type Frame struct {
	entry   func()
	resume  chan struct{}
	intsOn  bool
	started bool
}

// NewFrame seeds the initial image of a thread so that the first Restore
// enters entry with interrupts enabled. entry must never return without
// handing the CPU to another frame.
func NewFrame(entry func()) *Frame {
	return &Frame{
		entry:  entry,
		resume: make(chan struct{}, 1),
		intsOn: true,
	}
}

// IntsOn reports the interrupt state that will be reinstated on restore.
func (f *Frame) IntsOn() bool { return f.intsOn }

// Switcher is the context-switch contract. All four operate on the frame
// of the currently selected thread.
type Switcher interface {
	// SaveWithIntsOn captures the caller into f so that restoring f resumes
	// right after the suspending call with interrupts enabled.
	SaveWithIntsOn(f *Frame)
	// SaveWithIntsOff is SaveWithIntsOn with interrupts left disabled on resume.
	SaveWithIntsOff(f *Frame)
	SwitchToKernelStack()
	// Restore resumes f. If a frame was saved, its owner stays suspended
	// until that frame is restored in turn.
	Restore(f *Frame)
}

// Interrupts is the single-level interrupt controller.
type Interrupts interface {
	// Disable masks interrupts and returns the previous enable state.
	Disable() bool
	Enable()
	RestoreInterrupts(was bool)
	Enabled() bool
	InInterrupt() bool
	Attach(line IRQ, isr func())
	// Raise latches line. It is safe to call from any goroutine.
	Raise(line IRQ)
	// Poll services latched interrupts if they are enabled.
	Poll()
	// WaitForInterrupt sleeps until an interrupt is latched, then services it.
	WaitForInterrupt()
}

// CPU is one core: interrupt controller plus context switcher.
type CPU interface {
	Switcher
	Interrupts
	OnKernelStack() bool
	// Halt stops the core for good. It does not return on real hardware.
	Halt()
	Halted() <-chan struct{}
}

// pic holds the interrupt controller state shared by CPU implementations.
// Everything except pending and wake is owned by whoever holds the CPU.
type pic struct {
	ints     bool
	inISR    bool
	kstack   bool
	saved    *Frame
	handlers [maxIRQ]func()

	pending [maxIRQ]atomic.Uint32
	wake    chan struct{}
}

func (p *pic) init() {
	p.wake = make(chan struct{}, 1)
}

func (p *pic) Disable() bool {
	was := p.ints
	p.ints = false
	return was
}

func (p *pic) Enabled() bool       { return p.ints }
func (p *pic) InInterrupt() bool   { return p.inISR }
func (p *pic) OnKernelStack() bool { return p.kstack }

func (p *pic) Attach(line IRQ, isr func()) {
	if line < maxIRQ {
		p.handlers[line] = isr
	}
}

func (p *pic) Raise(line IRQ) {
	if line >= maxIRQ {
		return
	}
	p.pending[line].Add(1)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pic) SaveWithIntsOn(f *Frame) {
	f.intsOn = true
	p.saved = f
}

func (p *pic) SaveWithIntsOff(f *Frame) {
	f.intsOn = false
	p.saved = f
}

func (p *pic) SwitchToKernelStack() { p.kstack = true }

func (p *pic) hasPending() bool {
	for i := range p.pending {
		if p.pending[i].Load() > 0 {
			return true
		}
	}
	return false
}

// next claims one latched interrupt, lowest line first.
func (p *pic) next() (IRQ, bool) {
	for i := range p.pending {
		if p.pending[i].Load() > 0 {
			p.pending[i].Add(^uint32(0))
			return IRQ(i), true
		}
	}
	return 0, false
}

func (p *pic) poll() {
	for p.ints && !p.inISR {
		line, ok := p.next()
		if !ok {
			return
		}
		isr := p.handlers[line]
		if isr == nil {
			continue
		}
		p.inISR = true
		p.ints = false
		isr()
		// The handler may have switched frames; either way we are back in
		// thread context with interrupts on.
		p.inISR = false
		p.ints = true
	}
}

// GoCPU runs every thread on its own goroutine and hands a single baton
// between them, so exactly one goroutine executes kernel or thread code at
// a time. Interrupts are taken synchronously at Enable, Poll and
// WaitForInterrupt points on the goroutine that holds the baton.
type GoCPU struct {
	pic

	halted   chan struct{}
	haltOnce sync.Once
}

// NewCPU returns a core in reset state: interrupts disabled, no frame running.
func NewCPU() *GoCPU {
	c := &GoCPU{halted: make(chan struct{})}
	c.pic.init()
	return c
}

func (c *GoCPU) Enable() {
	c.ints = true
	c.poll()
}

func (c *GoCPU) RestoreInterrupts(was bool) {
	if was {
		c.Enable()
		return
	}
	c.ints = false
}

func (c *GoCPU) Poll() { c.poll() }

func (c *GoCPU) WaitForInterrupt() {
	for !c.hasPending() {
		select {
		case <-c.wake:
		case <-c.halted:
			select {}
		}
	}
	c.poll()
}

func (c *GoCPU) Restore(f *Frame) {
	from := c.saved
	c.saved = nil
	c.kstack = false
	c.inISR = false
	if f == from {
		c.ints = f.intsOn
		return
	}
	if !f.started {
		f.started = true
		go c.launch(f)
	} else {
		f.resume <- struct{}{}
	}
	if from == nil {
		// The caller gave up the CPU without saving: thread exit or boot.
		return
	}
	select {
	case <-from.resume:
	case <-c.halted:
		select {}
	}
	c.ints = from.intsOn
}

func (c *GoCPU) launch(f *Frame) {
	c.ints = f.intsOn
	c.poll()
	f.entry()
}

func (c *GoCPU) Halt() {
	c.haltOnce.Do(func() { close(c.halted) })
	select {}
}

func (c *GoCPU) Halted() <-chan struct{} { return c.halted }
