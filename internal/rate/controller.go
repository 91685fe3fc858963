// Package rate implements the adaptive frame-rate controller: sampling
// cadence swings between a configured minimum and maximum depending on
// recent change activity.
package rate

import (
	"time"

	"github.com/rs/zerolog"
)

// Mode is the controller's current sampling state.
type Mode int

const (
	// ActiveHigh samples at max fps because the frame changed recently.
	ActiveHigh Mode = iota
	// IdleLow samples at min fps because the frame has been static.
	IdleLow
)

func (m Mode) String() string {
	if m == IdleLow {
		return "idle_low"
	}
	return "active_high"
}

// Controller decides the producer's sampling interval. It never sleeps
// itself: Observe records the outcome of one cycle and Delay returns the
// wait the caller should honor before producing the next frame. Not safe
// for concurrent use; it lives on the producer context.
type Controller struct {
	minFPS, maxFPS int
	automatic      bool
	log            zerolog.Logger

	fps        int
	idleCycles int
}

// New returns a controller starting at max fps. When automatic is false the
// controller is pinned to maxFPS and performs no adaptation.
func New(minFPS, maxFPS int, automatic bool, log zerolog.Logger) *Controller {
	return &Controller{
		minFPS:    minFPS,
		maxFPS:    maxFPS,
		automatic: automatic,
		log:       log,
		fps:       maxFPS,
	}
}

// Observe records whether the just-processed cycle had any dirty region and
// adjusts the sampling rate. Any dirty cycle promotes to max fps
// immediately; the rate decays to min fps only after the frame has been
// static for roughly one second at the current rate.
func (c *Controller) Observe(dirty bool) {
	if !c.automatic {
		return
	}
	if dirty {
		c.idleCycles = 0
		if c.fps != c.maxFPS {
			c.log.Debug().Int("fps", c.maxFPS).Msg("frame content changed, raising fps")
			c.fps = c.maxFPS
		}
		return
	}
	c.idleCycles++
	if c.fps != c.minFPS && c.idleCycles >= c.fps {
		c.log.Debug().Int("fps", c.minFPS).Msg("frame static, dropping fps")
		c.fps = c.minFPS
		c.idleCycles = 0
	}
}

// Delay returns the interval the producer should wait before requesting the
// next frame.
func (c *Controller) Delay() time.Duration {
	return time.Duration(float64(time.Second) / float64(c.fps))
}

// FPS returns the current sampling rate.
func (c *Controller) FPS() int { return c.fps }

// Mode returns the current sampling state.
func (c *Controller) Mode() Mode {
	if c.fps == c.minFPS && c.minFPS != c.maxFPS {
		return IdleLow
	}
	return ActiveHigh
}

// Reset returns the controller to max fps with a cleared decay counter.
// Called on resume, when the next frame is forced fully dirty.
func (c *Controller) Reset() {
	c.fps = c.maxFPS
	c.idleCycles = 0
}
