//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"arbitros/app"
	"arbitros/hal"
	"arbitros/internal/klog"
	"arbitros/kernel"
)

func main() {
	cfg := app.DefaultConfig()
	var headless hal.HeadlessConfig
	var policy, level string
	var tick time.Duration
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.Uint64Var(&headless.Ticks, "ticks", 0, "Stop after N timer ticks in headless mode (0 = run forever).")
	flag.StringVar(&policy, "policy", "rr", "Scheduling policy: rr or prio.")
	flag.DurationVar(&tick, "tick", cfg.Kernel.TickPeriod, "Timer tick period.")
	flag.IntVar(&cfg.Kernel.HeapSize, "heap", cfg.Kernel.HeapSize, "Kernel heap size in bytes.")
	flag.StringVar(&level, "log", "med", "Kernel log level: low, med, high or off.")
	flag.BoolVar(&cfg.Demo, "demo", cfg.Demo, "Start the demo threads.")
	flag.BoolVar(&cfg.Monitor, "monitor", cfg.Monitor, "Draw the thread monitor.")
	flag.BoolVar(&cfg.Console, "console", cfg.Console, "Read console commands from stdin.")
	flag.Parse()

	var err error
	if cfg.Kernel.Policy, err = kernel.ParsePolicy(policy); err != nil {
		fail(err)
	}
	if cfg.Kernel.LogLevel, err = klog.ParseLevel(level); err != nil {
		fail(err)
	}
	cfg.Kernel.TickPeriod = tick

	if headless.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, app.New(cfg), headless); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fail(err)
		}
		return
	}

	if err := hal.RunWindow(app.New(cfg)); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
