package kernel

import (
	"errors"
	"testing"
	"time"

	"arbitros/hal"
	"arbitros/internal/klog"
	"arbitros/internal/slotmap"

	"github.com/davecgh/go-spew/spew"
)

type lineSink struct{ lines []string }

func (s *lineSink) WriteLineString(l string) { s.lines = append(s.lines, l) }
func (s *lineSink) WriteLineBytes(b []byte)  { s.lines = append(s.lines, string(b)) }

type fakeWatchdog struct {
	period  time.Duration
	enabled bool
	resets  int
}

func (w *fakeWatchdog) Configure(p time.Duration) error { w.period = p; return nil }
func (w *fakeWatchdog) Enable() error                   { w.enabled = true; return nil }
func (w *fakeWatchdog) Reset()                          { w.resets++ }

type rig struct {
	k     *Kernel
	cpu   *hal.FakeCPU
	timer *hal.ManualTimer
	wd    *fakeWatchdog
	log   *lineSink
}

func newRig(t *testing.T, policy Policy) *rig {
	t.Helper()
	r := &rig{
		cpu:   hal.NewFakeCPU(),
		timer: &hal.ManualTimer{},
		wd:    &fakeWatchdog{},
		log:   &lineSink{},
	}
	cfg := DefaultConfig()
	cfg.Policy = policy
	cfg.LogLevel = klog.Low
	k, err := New(&hal.Board{Log: r.log, Proc: r.cpu, Clock: r.timer, Dog: r.wd}, cfg)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	r.k = k
	return r
}

func nop(*Kernel, int, int) {}

func (k *Kernel) threadByID(id ThreadID) *tcb {
	t, _ := k.threads.Get(slotmap.Handle(id))
	return t
}

func (r *rig) spawn(t *testing.T, prio uint8) ThreadID {
	t.Helper()
	id, err := r.k.CreateThread(nop, 0, 0, 64, prio)
	if err != nil {
		t.Fatalf("CreateThread(prio %d) err = %v", prio, err)
	}
	return id
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	if err := r.k.Start(); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
}

func (r *rig) tick(t *testing.T, n int) {
	t.Helper()
	if !r.timer.Fire(n) {
		t.Fatalf("timer not running")
	}
}

func (r *rig) wantCurrent(t *testing.T, want ThreadID) {
	t.Helper()
	if got := r.k.Current(); got != want {
		t.Fatalf("Current() = %v, want %v\n%s", got, want, spew.Sdump(r.k.Threads()))
	}
	if r.cpu.Running != r.k.current.frame {
		t.Fatalf("cpu running frame does not belong to %v", want)
	}
}

func (r *rig) wantStatus(t *testing.T, id ThreadID, want Status) {
	t.Helper()
	got, err := r.k.Status(id)
	if err != nil {
		t.Fatalf("Status(%v) err = %v", id, err)
	}
	if got != want {
		t.Fatalf("Status(%v) = %v, want %v\n%s", id, got, want, spew.Sdump(r.k.Threads()))
	}
}

// suspend runs fn as the current thread and stops it where it gives up the
// CPU, as a parked thread would be. fn must suspend.
func (r *rig) suspend(t *testing.T, fn func()) {
	t.Helper()
	parked := false
	func() {
		r.cpu.Unwind = true
		defer func() {
			r.cpu.Unwind = false
			if v := recover(); v != nil {
				if _, ok := v.(hal.Suspended); !ok {
					panic(v)
				}
				parked = true
			}
		}()
		fn()
	}()
	if !parked {
		t.Fatalf("call returned without suspending the thread")
	}
}

// expectHalt runs fn and returns what the halt handler saw.
func (r *rig) expectHalt(t *testing.T, fn func()) HaltInfo {
	t.Helper()
	var info HaltInfo
	called := false
	r.k.OnHalt(func(hi HaltInfo) {
		info = hi
		called = true
	})
	func() {
		defer func() {
			if v := recover(); v != nil {
				if _, ok := v.(hal.HaltPanic); !ok {
					panic(v)
				}
			}
		}()
		fn()
	}()
	if !called {
		t.Fatalf("halt handler not called")
	}
	return info
}

func TestNewValidatesConfig(t *testing.T) {
	board := &hal.Board{Proc: hal.NewFakeCPU(), Clock: &hal.ManualTimer{}}
	cfg := DefaultConfig()
	cfg.TickPeriod = 1500 * time.Microsecond
	if _, err := New(board, cfg); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("New(tick 1.5ms) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := New(&hal.Board{}, DefaultConfig()); !errors.Is(err, ErrHAL) {
		t.Fatalf("New(no cpu) err = %v, want ErrHAL", err)
	}
}

func TestNewCreatesIdle(t *testing.T) {
	r := newRig(t, RoundRobin)
	threads := r.k.Threads()
	if len(threads) != 1 || threads[0].Priority != IdlePriority || threads[0].ID != r.k.Idle() {
		t.Fatalf("Threads() = %s, want only idle", spew.Sdump(threads))
	}
	if r.wd.period != WatchdogPeriod {
		t.Fatalf("watchdog period = %v, want %v", r.wd.period, WatchdogPeriod)
	}
	if r.timer.Period() != 10*time.Millisecond {
		t.Fatalf("timer period = %v, want 10ms", r.timer.Period())
	}
	if r.k.TimerEnabled() {
		t.Fatalf("TimerEnabled() = true before Start")
	}
}

func TestStartRunsFirstThread(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	r.start(t)

	r.wantCurrent(t, a)
	r.wantStatus(t, a, Running)
	r.wantStatus(t, r.k.Idle(), Ready)
	if !r.k.TimerEnabled() || !r.cpu.Enabled() {
		t.Fatalf("timer %v ints %v after Start, want both on", r.k.TimerEnabled(), r.cpu.Enabled())
	}
	if err := r.k.Start(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("second Start() err = %v, want ErrInvalidArgument", err)
	}
}

func TestErrorIs(t *testing.T) {
	if !errors.Is(ErrMailboxFull, ErrWouldBlock) || !errors.Is(ErrMailboxEmpty, ErrWouldBlock) {
		t.Fatalf("mailbox errors do not match ErrWouldBlock")
	}
	if errors.Is(ErrInvalidHandle, ErrWouldBlock) {
		t.Fatalf("ErrInvalidHandle matches ErrWouldBlock")
	}
	if got := ErrMailboxFull.Error(); got != "kernel: mailbox full" {
		t.Fatalf("Error() = %q", got)
	}
}
