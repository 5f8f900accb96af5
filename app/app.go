package app

import (
	"fmt"
	"time"

	"arbitros/console"
	"arbitros/hal"
	"arbitros/internal/buildinfo"
	"arbitros/internal/klog"
	"arbitros/kernel"
	"arbitros/monitor"
)

const (
	consolePriority = 100
	monitorPriority = 200
)

type Config struct {
	Kernel kernel.Config
	// Demo starts the producer/consumer, mutex and sensor threads.
	Demo bool
	// SensorPeriod is how often the simulated sensor raises its interrupt.
	SensorPeriod time.Duration
	Monitor      bool
	// MonitorPeriod is the redraw interval in ticks.
	MonitorPeriod uint16
	// Console reads commands from the board's serial line, if it has one.
	Console bool
}

func DefaultConfig() Config {
	return Config{
		Kernel:        kernel.DefaultConfig(),
		Demo:          true,
		SensorPeriod:  250 * time.Millisecond,
		Monitor:       true,
		MonitorPeriod: 50,
		Console:       true,
	}
}

// System is a booted kernel plus the board-side helpers it owns.
type System struct {
	k    *kernel.Kernel
	h    hal.HAL
	stop chan struct{}
}

// New returns a boot function for the host runners.
func New(cfg Config) func(hal.HAL) error {
	return func(h hal.HAL) error {
		_, err := Boot(h, cfg)
		return err
	}
}

// Boot builds the kernel, installs the configured threads and starts the
// scheduler. After it returns the kernel belongs to its threads.
func Boot(h hal.HAL, cfg Config) (*System, error) {
	k, err := kernel.New(h, cfg.Kernel)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	s := &System{k: k, h: h, stop: make(chan struct{})}
	installHaltHandler(k, h)

	k.Log().Printf(klog.High, "%s", buildinfo.Banner("arbitros"))
	k.Log().Printf(klog.Med, "kernel: policy %v, tick %v, heap %d bytes",
		cfg.Kernel.Policy, cfg.Kernel.TickPeriod, cfg.Kernel.HeapSize)

	var d *demo
	if cfg.Demo {
		if d, err = newDemo(k, h); err != nil {
			return nil, fmt.Errorf("app: demo: %w", err)
		}
		if cfg.SensorPeriod > 0 {
			go pulse(h.CPU(), hal.IRQUser0, cfg.SensorPeriod, s.stop)
		}
	}
	var con *console.Console
	if cfg.Console && h.Serial() != nil {
		if con, err = newConsole(k, h, d); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	if cfg.Monitor {
		m := monitor.New(h.Display(), cfg.MonitorPeriod)
		if _, err := k.CreateThread(m.Run, 0, 0, 512, monitorPriority); err != nil {
			return nil, fmt.Errorf("app: monitor: %w", err)
		}
	}

	if err := k.Start(); err != nil {
		close(s.stop)
		return nil, fmt.Errorf("app: start: %w", err)
	}
	if con != nil {
		go con.Listen(s.stop)
	}
	return s, nil
}

func newConsole(k *kernel.Kernel, h hal.HAL, d *demo) (*console.Console, error) {
	c, err := console.New(k, h.CPU(), h.Serial(), hal.IRQUser1)
	if err != nil {
		return nil, err
	}
	if d != nil {
		if err := c.Register(console.Command{Name: "demo", Usage: "demo", Desc: "Show demo thread counters.", Run: d.status}); err != nil {
			return nil, err
		}
	}
	if _, err := k.CreateThread(c.Run, 0, 0, 512, consolePriority); err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return c, nil
}

// Close stops the board-side interrupt sources. The kernel keeps running.
func (s *System) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run boots the system and blocks forever (TinyGo entrypoint).
func Run(h hal.HAL, cfg Config) {
	if _, err := Boot(h, cfg); err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("boot failed: " + err.Error())
		}
		select {}
	}
	<-h.CPU().Halted()
	select {}
}

// pulse plays the part of an external device: it latches line every period
// until stop is closed or the CPU halts.
func pulse(cpu hal.CPU, line hal.IRQ, period time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-cpu.Halted():
			return
		case <-t.C:
			cpu.Raise(line)
		}
	}
}
