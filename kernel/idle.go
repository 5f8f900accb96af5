package kernel

import (
	"fmt"
	"time"

	"arbitros/internal/klog"
	"arbitros/internal/slotmap"
)

const (
	WatchdogPeriod = 8000 * time.Millisecond
	// idlePetMsec is how often the idle thread services the watchdog.
	idlePetMsec = 2000
)

func (k *Kernel) initIdle() error {
	if wd := k.hal.Watchdog(); wd != nil {
		if err := wd.Configure(WatchdogPeriod); err != nil {
			return fmt.Errorf("kernel: configure watchdog: %w", err)
		}
		k.wd = wd
	}
	id, err := k.createThread(idleMain, 0, 0, k.cfg.IdleStack, IdlePriority)
	if err != nil {
		return fmt.Errorf("kernel: idle thread: %w", err)
	}
	k.idle, _ = k.threads.Get(slotmap.Handle(id))
	k.current = k.idle
	return nil
}

// idleMain runs whenever nothing else can. It keeps the watchdog fed,
// drains the log buffer and sleeps the core until the next interrupt.
func idleMain(k *Kernel, _, _ int) {
	if k.wd != nil {
		if err := k.wd.Enable(); err != nil {
			k.log.Printf(klog.High, "idle: watchdog: %v", err)
		}
	}
	last := k.MsecNow()
	var pets uint32
	for {
		now := k.MsecNow()
		if MsecDelta(now, last) >= idlePetMsec {
			last = now
			pets++
			if k.wd != nil {
				k.wd.Reset()
			}
			k.log.Printf(klog.Low|klog.ShowTime, "idle: watchdog pet %d", pets)
		}

		was := k.cpu.Disable()
		k.log.Flush()
		k.cpu.RestoreInterrupts(was)

		k.cpu.WaitForInterrupt()
	}
}
