//go:build tinygo

package hal

import "time"

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoTimer struct {
	period time.Duration
	stop   chan struct{}
}

func (t *tinyGoTimer) Configure(period time.Duration) error {
	if period <= 0 {
		return ErrNotImplemented
	}
	t.period = period
	return nil
}

func (t *tinyGoTimer) Start(raise func()) error {
	if t.period <= 0 || t.stop != nil {
		return ErrNotImplemented
	}
	stop := make(chan struct{})
	t.stop = stop
	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				raise()
			}
		}
	}()
	return nil
}

func (t *tinyGoTimer) Stop() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
