package slideshow

import (
	"context"
	"time"
)

// RenderFunc receives each frame the controller produces. It is
// always called from Run's goroutine, never after Run returns.
type RenderFunc func(Frame)

// Run drives the controller off a ticker until ctx is canceled. The
// tick interval controls crossfade smoothness, not photo timing: the
// controller decides when to advance from its own clock.
func Run(ctx context.Context, c *Controller, interval time.Duration, render RenderFunc) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	render(c.Tick(time.Now()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			render(c.Tick(now))
		}
	}
}
