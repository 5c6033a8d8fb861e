// Package slideshow drives a timed crossfade between consecutive
// photos pulled from a photos.Loader.
package slideshow

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"k8s.io/klog/v2"

	"github.com/tstromberg/fotoramme/pkg/photos"
)

// ErrInit means the first photo could not be loaded at construction.
var ErrInit = errors.New("unable to load initial photo")

// Layer is one image at a visual weight.
type Layer struct {
	Ref     *url.URL
	Opacity float64
}

// Frame is what the host should put on screen after a tick: the
// current image, plus the incoming one while a crossfade is running.
type Frame struct {
	Current Layer
	Next    *Layer
}

// Transitioning reports whether a crossfade is in progress.
func (f Frame) Transitioning() bool {
	return f.Next != nil
}

// Controller owns the slideshow state machine: it shows one photo for
// the display duration, then crossfades to the next one over the fade
// duration. All state is mutated only by Tick, so a host that calls
// Tick from a single timer needs no locking.
type Controller struct {
	src     photos.Loader
	display time.Duration
	fade    time.Duration

	current *url.URL
	next    *url.URL // non-nil only mid-transition

	periodStart time.Time // start of the current display period
	fadeStart   time.Time // start of the active transition

	ready func(*url.URL) bool
}

// New loads the first photo and returns a controller showing it.
// display is how long each photo stays fully visible, fade how long
// the crossfade runs.
func New(src photos.Loader, display, fade time.Duration, now time.Time) (*Controller, error) {
	u, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	klog.Infof("slideshow starting with %s (display %s, fade %s)", u, display, fade)
	return &Controller{
		src:         src,
		display:     display,
		fade:        fade,
		current:     u,
		periodStart: now,
	}, nil
}

// SetReadyFunc installs a readiness gate for hosts that decode photos
// asynchronously. While ready reports false for the incoming photo,
// the crossfade is held at zero so the outgoing image stays fully
// visible until the incoming one can actually be shown.
func (c *Controller) SetReadyFunc(ready func(*url.URL) bool) {
	c.ready = ready
}

// Current returns the photo in the visually active slot.
func (c *Controller) Current() *url.URL {
	return c.current
}

// Tick advances the state machine to now and returns the frame to
// render. It is cheap and never blocks: the only I/O is one source
// pull at the start of a transition. Calling it twice with the same
// timestamp yields the same frame.
func (c *Controller) Tick(now time.Time) Frame {
	if c.next == nil {
		if now.Sub(c.periodStart) < c.display {
			return Frame{Current: Layer{c.current, 1}}
		}

		u, err := c.src.Next()
		if err != nil {
			// Keep showing the last good photo. Resetting the period
			// retries a broken source once per display duration
			// instead of on every tick.
			klog.Warningf("failed to load next photo: %v", err)
			c.periodStart = now
			return Frame{Current: Layer{c.current, 1}}
		}

		klog.V(1).Infof("transitioning to %s", u)
		c.next = u
		c.fadeStart = now
	}

	if c.ready != nil && !c.ready(c.next) {
		// Incoming photo still loading; hold the fade at zero.
		c.fadeStart = now
	}

	progress := 1.0
	if c.fade > 0 {
		progress = float64(now.Sub(c.fadeStart)) / float64(c.fade)
	}
	if progress < 0 {
		progress = 0
	}

	if progress >= 1 {
		c.current = c.next
		c.next = nil
		c.periodStart = now
		klog.V(1).Infof("transition complete, showing %s", c.current)
		return Frame{Current: Layer{c.current, 1}}
	}

	return Frame{
		Current: Layer{c.current, 1 - progress},
		Next:    &Layer{c.next, progress},
	}
}
