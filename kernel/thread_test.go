package kernel

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestCreateRejectsDuplicatePriority(t *testing.T) {
	r := newRig(t, PriorityBased)
	r.spawn(t, 4)
	before := r.k.HeapStats()
	n := len(r.k.Threads())

	for _, prio := range []uint8{4, IdlePriority} {
		if _, err := r.k.CreateThread(nop, 0, 0, 64, prio); !errors.Is(err, ErrInvalidPriority) {
			t.Fatalf("CreateThread(prio %d) err = %v, want ErrInvalidPriority", prio, err)
		}
	}
	if after := r.k.HeapStats(); after.InUse != before.InUse {
		t.Fatalf("heap in use %d -> %d after rejected creates", before.InUse, after.InUse)
	}
	if got := len(r.k.Threads()); got != n {
		t.Fatalf("len(Threads()) = %d, want %d", got, n)
	}
}

func TestPriorityHeldWhileBlocked(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	s, _ := r.k.CreateSemaphore(SemCounting)
	r.start(t)
	r.wantCurrent(t, a)

	r.k.Wait(s, Blocking)
	r.wantStatus(t, a, Blocked)
	if _, err := r.k.CreateThread(nop, 0, 0, 64, 1); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("CreateThread(prio of blocked thread) err = %v, want ErrInvalidPriority", err)
	}
}

func TestCreateOutOfHeap(t *testing.T) {
	r := newRig(t, RoundRobin)
	if _, err := r.k.CreateThread(nop, 0, 0, 60000, 1); !errors.Is(err, ErrOutOfHeap) {
		t.Fatalf("CreateThread(huge stack) err = %v, want ErrOutOfHeap", err)
	}
	if _, err := r.k.CreateThread(nil, 0, 0, 64, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("CreateThread(nil) err = %v, want ErrInvalidArgument", err)
	}
}

func TestStackLayout(t *testing.T) {
	r := newRig(t, RoundRobin)
	id := r.spawn(t, 1)

	var info ThreadInfo
	for _, ti := range r.k.Threads() {
		if ti.ID == id {
			info = ti
		}
	}
	if got := info.StackEnd - info.StackStart + 1; got != 64+ExtraStackBytes {
		t.Fatalf("stack bytes = %d, want %d", got, 64+ExtraStackBytes)
	}
	if info.SP >= info.StackEnd || info.SP <= info.StackStart {
		t.Fatalf("SP %d outside stack [%d,%d]", info.SP, info.StackStart, info.StackEnd)
	}
	if got := binary.LittleEndian.Uint16(r.k.stack(id)); got != StackSentinel {
		t.Fatalf("sentinel = %#x, want %#x", got, StackSentinel)
	}
	r.wantStatus(t, id, Ready)
}

func TestDestroyThread(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	b := r.spawn(t, 2)
	before := r.k.HeapStats().InUse
	r.start(t)
	r.wantCurrent(t, a)

	if err := r.k.DestroyThread(a); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("DestroyThread(running) err = %v, want ErrInvalidArgument", err)
	}
	if err := r.k.DestroyThread(r.k.Idle()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("DestroyThread(idle) err = %v, want ErrInvalidArgument", err)
	}
	if err := r.k.DestroyThread(b); err != nil {
		t.Fatalf("DestroyThread(b) err = %v", err)
	}
	if err := r.k.DestroyThread(b); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("second DestroyThread(b) err = %v, want ErrInvalidHandle", err)
	}
	if _, err := r.k.Status(b); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Status(destroyed) err = %v, want ErrInvalidHandle", err)
	}
	if got := r.k.HeapStats().InUse; got >= before {
		t.Fatalf("heap in use %d after destroy, want < %d", got, before)
	}

	// The priority is free again and the stale id stays dead.
	c := r.spawn(t, 2)
	if c == b {
		t.Fatalf("new thread reused stale id %v", b)
	}
}

func TestDestroyBlockedThreadAdjustsCount(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	b := r.spawn(t, 2)
	s, _ := r.k.CreateSemaphore(SemCounting)
	r.start(t)

	r.k.Wait(s, Blocking) // a blocks
	r.wantCurrent(t, b)
	if n, _ := r.k.SemaphoreCount(s); n != -1 {
		t.Fatalf("count = %d, want -1", n)
	}
	if err := r.k.DestroyThread(a); err != nil {
		t.Fatalf("DestroyThread(blocked) err = %v", err)
	}
	if n, _ := r.k.SemaphoreCount(s); n != 0 {
		t.Fatalf("count after destroying waiter = %d, want 0", n)
	}
	if err := r.k.Signal(s); err != nil {
		t.Fatalf("Signal() err = %v", err)
	}
	if n, _ := r.k.SemaphoreCount(s); n != 1 {
		t.Fatalf("count after signal = %d, want 1", n)
	}
}

func TestSleepWakesAfterQuantum(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	r.start(t)

	if err := r.k.Sleep(3); err != nil {
		t.Fatalf("Sleep() err = %v", err)
	}
	r.wantStatus(t, a, Sleeping)
	r.wantCurrent(t, r.k.Idle())

	r.tick(t, 2)
	r.wantStatus(t, a, Sleeping)
	r.wantCurrent(t, r.k.Idle())

	r.tick(t, 1)
	r.wantCurrent(t, a)
	r.wantStatus(t, a, Running)
}

func TestSleepZeroYields(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	b := r.spawn(t, 2)
	r.start(t)

	if err := r.k.Sleep(0); err != nil {
		t.Fatalf("Sleep(0) err = %v", err)
	}
	r.wantCurrent(t, b)
	r.wantStatus(t, a, Ready)
}

func TestSleepRejectedOutsideThread(t *testing.T) {
	r := newRig(t, RoundRobin)
	if err := r.k.Sleep(1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Sleep() before Start err = %v, want ErrInvalidArgument", err)
	}
	r.start(t)
	r.wantCurrent(t, r.k.Idle())
	if err := r.k.Sleep(1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Sleep() from idle err = %v, want ErrInvalidArgument", err)
	}
}

func TestStackSentinelSurvivesSwitches(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	b := r.spawn(t, 2)
	r.start(t)

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			r.k.Yield()
		} else {
			r.tick(t, 1)
		}
	}
	for _, id := range []ThreadID{a, b, r.k.Idle()} {
		if got := binary.LittleEndian.Uint16(r.k.stack(id)); got != StackSentinel {
			t.Fatalf("sentinel of %v = %#x after switches", id, got)
		}
	}
	if r.cpu.Saves < 100 || r.cpu.Restores < 100 {
		t.Fatalf("saves %d restores %d, want >= 100", r.cpu.Saves, r.cpu.Restores)
	}
}

func TestStackOverflowHaltsOnSuspend(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	r.spawn(t, 2)
	r.start(t)
	r.wantCurrent(t, a)

	r.k.stack(a)[0] = 0
	info := r.expectHalt(t, func() { r.k.Yield() })
	if info.Thread != a || !errors.Is(info.Reason, ErrStackOverflow) {
		t.Fatalf("HaltInfo = %+v, want thread %v stack overflow", info, a)
	}
	if r.k.TimerEnabled() {
		t.Fatalf("timer still enabled after halt")
	}
	select {
	case <-r.cpu.Halted():
	default:
		t.Fatalf("cpu not halted")
	}
	found := false
	for _, l := range r.log.lines {
		if strings.Contains(l, "Stack Overflow Thread = "+a.String()) {
			found = true
		}
	}
	if !found {
		t.Fatalf("log = %q, want stack overflow line", r.log.lines)
	}
}

func TestStackOverflowDetectedByTick(t *testing.T) {
	r := newRig(t, RoundRobin)
	a := r.spawn(t, 1)
	r.start(t)

	r.k.stack(a)[1] ^= 0xFF
	info := r.expectHalt(t, func() { r.timer.Fire(1) })
	if info.Thread != a {
		t.Fatalf("HaltInfo.Thread = %v, want %v", info.Thread, a)
	}
}
