package renderer

import (
	"context"
	"time"
)

// pausedPollInterval is how often Run checks for Resume while paused.
const pausedPollInterval = 100 * time.Millisecond

// Run drives src through the pipeline until ctx is cancelled or the
// renderer is closed. Between cycles it honors the delay requested by the
// frame-rate controller; while paused it stops sampling the source
// entirely. Hosts that own their own clock loop can ignore Run and call
// ProcessFrame directly.
func (r *Renderer) Run(ctx context.Context, src FrameSource) error {
	for {
		var delay time.Duration
		if r.Paused() {
			delay = pausedPollInterval
		} else {
			var err error
			delay, err = r.ProcessFrame(src.Frame())
			if err != nil {
				if IsClosed(err) {
					return nil
				}
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Paused reports whether the renderer is currently paused.
func (r *Renderer) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}
