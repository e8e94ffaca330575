package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	// Hz is how often the clock is stepped.
	Hz int
	// Ticks stops the runner once this many timer ticks have fired. Zero
	// runs until the context ends.
	Ticks uint64
}

// RunHeadless steps h's clock without opening a window. It returns nil once
// cfg.Ticks ticks have fired, ctx.Err() when ctx ends and ErrClosed if the
// CPU is closed first.
func RunHeadless(ctx context.Context, h *Host, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.cpu.closed:
			return ErrClosed
		case <-t.C:
			h.clock.Step()
			if cfg.Ticks > 0 && h.clock.Ticks() >= cfg.Ticks {
				return nil
			}
		}
	}
}
