package kernel

import (
	"fmt"

	"arbitros/hal"
	"arbitros/internal/klog"
	"arbitros/internal/slotmap"
)

func (k *Kernel) initTimer() error {
	if err := k.timer.Configure(k.cfg.TickPeriod); err != nil {
		return fmt.Errorf("kernel: configure timer: %w", err)
	}
	k.cpu.Attach(hal.IRQTimer, k.tickISR)
	return nil
}

func (k *Kernel) startTimer() error {
	cpu := k.cpu
	if err := k.timer.Start(func() { cpu.Raise(hal.IRQTimer) }); err != nil {
		return fmt.Errorf("kernel: start timer: %w", err)
	}
	k.timerOn = true
	return nil
}

// TimerEnabled reports whether the tick interrupt is running.
func (k *Kernel) TimerEnabled() bool { return k.timerOn }

// StopTimer stops the tick interrupt. Preemption, sleep expiry and time
// keeping stop with it.
func (k *Kernel) StopTimer() {
	was := k.cpu.Disable()
	defer k.cpu.RestoreInterrupts(was)
	k.stopTimer()
}

func (k *Kernel) stopTimer() {
	if k.timerOn {
		k.timer.Stop()
		k.timerOn = false
	}
}

// tickISR runs once per timer period in interrupt context.
func (k *Kernel) tickISR() {
	cur := k.current
	if cur == nil || !k.started {
		return
	}
	k.cpu.SaveWithIntsOn(cur.frame)
	k.cpu.SwitchToKernelStack()
	k.checkStack(cur)
	if cur.status == Running {
		cur.status = Ready
	}

	k.time.advance(k.cfg.TickPeriod)
	k.expireSleepers()
	if k.load.sample(k.activeCount()) {
		k.log.Printf(klog.Low|klog.ShowTime, "load: %s %s",
			FormatLoad(k.load.avg1), FormatLoad(k.load.avg5))
	}

	k.schedule()
	k.cpu.Restore(k.current.frame)
}

func (k *Kernel) expireSleepers() {
	k.ready.Each(func(_ slotmap.Handle, t *tcb) bool {
		if t.status == Sleeping {
			if t.quantum > 0 {
				t.quantum--
			}
			if t.quantum == 0 {
				t.status = Ready
			}
		}
		return true
	})
}
