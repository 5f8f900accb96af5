//go:build !tinygo

package hal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// hostTimer drives the tick interrupt from a wall-clock ticker.
type hostTimer struct {
	mu     sync.Mutex
	period time.Duration
	stop   chan struct{}
	ticks  atomic.Uint64
}

func (t *hostTimer) Configure(period time.Duration) error {
	if period <= 0 {
		return errors.New("hal: timer period must be positive")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = period
	return nil
}

func (t *hostTimer) Start(raise func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.period <= 0 {
		return errors.New("hal: timer not configured")
	}
	if t.stop != nil {
		return errors.New("hal: timer already running")
	}
	stop := make(chan struct{})
	t.stop = stop
	go func(period time.Duration) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.ticks.Add(1)
				raise()
			}
		}
	}(t.period)
	return nil
}

func (t *hostTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Ticks returns the number of interrupts raised so far.
func (t *hostTimer) Ticks() uint64 { return t.ticks.Load() }

// hostWatchdog emulates a reset watchdog: on expiry it reports the reset and
// closes Expired, which the host runners treat as a board reset.
type hostWatchdog struct {
	mu      sync.Mutex
	logger  Logger
	period  time.Duration
	t       *time.Timer
	expired chan struct{}
	once    sync.Once
}

func newHostWatchdog(logger Logger) *hostWatchdog {
	return &hostWatchdog{logger: logger, expired: make(chan struct{})}
}

func (w *hostWatchdog) Configure(period time.Duration) error {
	if period <= 0 {
		return errors.New("hal: watchdog period must be positive")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.period = period
	return nil
}

func (w *hostWatchdog) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.period <= 0 {
		return errors.New("hal: watchdog not configured")
	}
	if w.t == nil {
		w.t = time.AfterFunc(w.period, w.fire)
	}
	return nil
}

func (w *hostWatchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.t != nil {
		w.t.Reset(w.period)
	}
}

func (w *hostWatchdog) fire() {
	w.once.Do(func() {
		w.logger.WriteLineString("watchdog: expired, resetting")
		close(w.expired)
	})
}

func (w *hostWatchdog) Expired() <-chan struct{} { return w.expired }
