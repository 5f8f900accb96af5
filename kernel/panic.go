package kernel

import "arbitros/internal/klog"

// HaltInfo describes why the kernel stopped.
type HaltInfo struct {
	Thread ThreadID
	Reason error
}

// OnHalt installs fn to run once, with interrupts masked, before the CPU
// halts on a fatal error. fn must not call into the kernel.
func (k *Kernel) OnHalt(fn func(HaltInfo)) { k.onHalt = fn }

// fatal stops the system. It does not return.
func (k *Kernel) fatal(t *tcb, reason error) {
	k.cpu.Disable()
	k.stopTimer()
	k.log.SetLevel(klog.High)
	k.log.SetBuffered(false)

	var id ThreadID
	if t != nil {
		id = t.id
	}
	if reason == ErrStackOverflow {
		k.log.Printf(klog.High|klog.ShowTime, "Stack Overflow Thread = %v", id)
	} else {
		k.log.Printf(klog.High|klog.ShowTime, "halt: thread %v: %v", id, reason)
	}

	if !k.halted {
		k.halted = true
		if fn := k.onHalt; fn != nil {
			fn(HaltInfo{Thread: id, Reason: reason})
		}
	}
	k.cpu.Halt()
}

// Halt stops the system from thread context, e.g. after a failed self test.
func (k *Kernel) Halt(reason error) {
	k.fatal(k.current, reason)
}
