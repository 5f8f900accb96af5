// Package kernel is a preemptive single-core real-time kernel.
//
// Threads run to completion of their time slice or until they block on a
// semaphore or mailbox, sleep, or yield. A periodic timer interrupt drives
// time keeping, sleep expiry, the load estimate and preemption. All kernel
// state is owned by whichever thread holds the CPU; kernel calls are valid
// from thread context, from interrupt handlers where noted, and from the
// boot goroutine before Start.
package kernel

import (
	"errors"
	"fmt"
	"time"

	"arbitros/hal"
	"arbitros/internal/heap"
	"arbitros/internal/klog"
	"arbitros/internal/slotmap"
)

// Policy selects how the scheduler picks the next thread.
type Policy uint8

const (
	RoundRobin Policy = iota
	PriorityBased
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "round-robin"
	case PriorityBased:
		return "priority"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy maps a flag value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "rr", "round-robin":
		return RoundRobin, nil
	case "prio", "priority":
		return PriorityBased, nil
	}
	return 0, fmt.Errorf("kernel: unknown policy %q", s)
}

// Config holds the kernel parameters fixed at New.
type Config struct {
	Policy     Policy
	TickPeriod time.Duration
	IdleStack  uint16
	HeapSize   int
	LogLevel   klog.Level
	LogDepth   int
	// MaxThreads bounds the thread registry (0 = bounded by the heap only).
	MaxThreads int
}

func DefaultConfig() Config {
	return Config{
		Policy:     RoundRobin,
		TickPeriod: 10 * time.Millisecond,
		IdleStack:  64,
		HeapSize:   16 << 10,
		LogLevel:   klog.Off,
		LogDepth:   klog.DefaultDepth,
	}
}

func (c Config) validate() error {
	if c.Policy > PriorityBased {
		return fmt.Errorf("kernel: %w: policy %d", ErrInvalidArgument, c.Policy)
	}
	if c.TickPeriod < time.Millisecond || c.TickPeriod%time.Millisecond != 0 || c.TickPeriod > time.Second {
		return fmt.Errorf("kernel: %w: tick period %v", ErrInvalidArgument, c.TickPeriod)
	}
	if c.HeapSize <= 0 {
		return fmt.Errorf("kernel: %w: heap size %d", ErrInvalidArgument, c.HeapSize)
	}
	return nil
}

// Kernel is one instance of the kernel bound to a HAL.
type Kernel struct {
	cfg   Config
	hal   hal.HAL
	cpu   hal.CPU
	timer hal.Timer
	wd    hal.Watchdog
	log   *klog.Logger
	heap  *heap.Heap

	threads *slotmap.Map[*tcb]
	ready   *slotmap.Map[*tcb]
	sems    *slotmap.Map[*semaphore]
	mboxes  *slotmap.Map[*mailbox]

	current *tcb
	idle    *tcb
	// rrNext is where round-robin resumes after the current thread left the
	// ready list (blocked or exited).
	rrNext slotmap.Handle

	started  bool
	timerOn  bool
	time     SystemTime
	load     loadEstimator
	switches uint64

	onHalt func(HaltInfo)
	halted bool
}

// New initialises the tick service, the scheduler and the idle thread.
// The scheduler does not run until Start.
func New(h hal.HAL, cfg Config) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if h == nil || h.CPU() == nil || h.Timer() == nil {
		return nil, fmt.Errorf("kernel: %w: cpu and timer required", ErrHAL)
	}
	k := &Kernel{
		cfg:     cfg,
		hal:     h,
		cpu:     h.CPU(),
		timer:   h.Timer(),
		log:     klog.New(h.Logger(), cfg.LogLevel, cfg.LogDepth),
		heap:    heap.New(cfg.HeapSize),
		threads: slotmap.New[*tcb](cfg.MaxThreads),
		ready:   slotmap.New[*tcb](0),
		sems:    slotmap.New[*semaphore](0),
		mboxes:  slotmap.New[*mailbox](0),
	}
	k.cpu.Disable()
	k.log.SetClock(k.stamp)
	k.load.init(cfg.TickPeriod)

	if err := k.initTimer(); err != nil {
		return nil, err
	}
	if err := k.initIdle(); err != nil {
		return nil, err
	}
	return k, nil
}

// Config returns the configuration the kernel was built with.
func (k *Kernel) Config() Config { return k.cfg }

// Log returns the kernel logger.
func (k *Kernel) Log() *klog.Logger { return k.log }

// Start enables the timer and hands the CPU to the first scheduled thread.
// On the goroutine CPU it returns as soon as the thread's goroutine has been
// launched, possibly before it runs. The caller must not touch the kernel
// afterwards.
func (k *Kernel) Start() error {
	if k.started {
		return fmt.Errorf("kernel: %w: already started", ErrInvalidArgument)
	}
	k.cpu.Disable()
	k.started = true
	if err := k.startTimer(); err != nil {
		k.started = false
		return err
	}
	k.log.SetBuffered(true)
	k.log.Printf(klog.Low|klog.ShowTime, "scheduler: started, policy %v, %d threads", k.cfg.Policy, k.threads.Len())
	k.schedule()
	k.cpu.Restore(k.current.frame)
	return nil
}

// Run starts the kernel and blocks until the CPU halts.
func (k *Kernel) Run() error {
	if err := k.Start(); err != nil {
		return err
	}
	<-k.cpu.Halted()
	return hal.ErrHalted
}

// Started reports whether Start has been called.
func (k *Kernel) Started() bool { return k.started }

// Switches returns the number of scheduler decisions taken.
func (k *Kernel) Switches() uint64 { return k.switches }

// inThread reports whether the caller can be suspended.
func (k *Kernel) inThread() bool {
	return k.started && k.current != nil && !k.cpu.InInterrupt()
}

func (k *Kernel) save(t *tcb, intsOn bool) {
	if intsOn {
		k.cpu.SaveWithIntsOn(t.frame)
		return
	}
	k.cpu.SaveWithIntsOff(t.frame)
}

// yield suspends the current thread and runs the scheduler. intsOn is the
// interrupt state the thread resumes with.
func (k *Kernel) yield(intsOn bool) {
	cur := k.current
	k.save(cur, intsOn)
	k.cpu.SwitchToKernelStack()
	k.checkStack(cur)
	k.schedule()
	k.cpu.Restore(k.current.frame)
}

func mapHeapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, heap.ErrOutOfMemory):
		return ErrOutOfHeap
	default:
		return ErrInvalidArgument
	}
}
