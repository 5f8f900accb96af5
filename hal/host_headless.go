//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Ticks stops the run after this many timer interrupts (0 = run forever).
	Ticks uint64
}

var errTickLimit = errors.New("tick limit reached")

// RunHeadless boots the system without opening a window and blocks until
// ctx is done, the CPU halts, the watchdog fires or the tick limit is hit.
func RunHeadless(ctx context.Context, boot func(HAL) error, cfg HeadlessConfig) error {
	h := New().(*hostHAL)
	if err := boot(h); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer h.timer.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watch(ctx, h)
	})
	if cfg.Ticks > 0 {
		g.Go(func() error {
			t := time.NewTicker(10 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
					if h.timer.Ticks() >= cfg.Ticks {
						return errTickLimit
					}
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, errTickLimit) {
		return nil
	}
	return err
}

func watch(ctx context.Context, h *hostHAL) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.cpu.Halted():
		return ErrHalted
	case <-h.wd.Expired():
		return ErrWatchdogReset
	}
}
