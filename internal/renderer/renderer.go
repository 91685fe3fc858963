// Package renderer wires the frame pipeline together: orientation
// transform, tile diffing, bandwidth admission, adaptive frame rate and
// dispatch. It decouples the host's rendering from the slow transmission to
// the physical device.
//
// One producer context drives ProcessFrame; the transform, differ, rate
// controller and limiter all run synchronously inside it. Only the
// dispatcher's transmission callbacks run on separate goroutines.
package renderer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"displayd/internal/bandwidth"
	"displayd/internal/config"
	"displayd/internal/diff"
	"displayd/internal/dispatch"
	"displayd/internal/metrics"
	"displayd/internal/pixel"
	"displayd/internal/rate"
	"displayd/pkg/types"
)

// Callback transmits one region to the device; see dispatch.Callback.
type Callback = dispatch.Callback

// FrameSource produces a pixel buffer on demand. Hosts implement this
// instead of inheriting from any widget hierarchy; the returned buffer is
// owned by the renderer once handed over.
type FrameSource interface {
	Frame() *pixel.Buffer
}

// Renderer owns the full delta-detection and dispatch pipeline for one
// display. Construct with New, feed frames with ProcessFrame (or let Run
// drive a FrameSource), and tear down with Close. ProcessFrame must always
// be called from the same producer context; Pause, Resume, Status and
// Snapshot are safe to call from other goroutines.
type Renderer struct {
	cfg config.Config
	log zerolog.Logger

	mu      sync.Mutex
	differ  *diff.Differ
	limiter *bandwidth.Limiter
	ctrl    *rate.Controller
	disp    *dispatch.Dispatcher
	pending []*dispatch.Job
	paused  bool
	closed  bool

	stats types.StatusResponse

	// per-second debug accounting
	lastSecond  int64
	secRendered int
	secSkipped  int
}

// New validates cfg and builds a renderer transmitting through cb. The tile
// geometry is fixed here, from the post-transform dimensions, for the
// lifetime of the instance.
func New(cfg config.Config, cb Callback, log zerolog.Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, h := cfg.EffectiveSize()
	r := &Renderer{
		cfg:     cfg,
		log:     log,
		differ:  diff.New(diff.NewGeometry(w, h, cfg.TileSize), log),
		limiter: bandwidth.New(cfg.BandwidthLimit, cfg.Window(), cfg.BandwidthLimitOverhead, log),
		ctrl:    rate.New(cfg.MinFPS, cfg.MaxFPS, cfg.AutomaticFPS, log),
	}
	instrumented := func(rect types.Rect, data []byte, fingerprint uint64, prev *dispatch.Job) {
		start := time.Now()
		cb(rect, data, fingerprint, prev)
		metrics.ObserveDispatch(time.Since(start))
	}
	r.disp = dispatch.New(instrumented, cfg.DoubleBuffering, log)
	r.stats.Width = cfg.Width
	r.stats.Height = cfg.Height
	return r, nil
}

// SeedSplash installs buf as the frame-zero baseline, so the first real
// frame diffs against the splash already showing on the device instead of
// being transmitted in full. Must be called before the first ProcessFrame.
func (r *Renderer) SeedSplash(buf *pixel.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.differ.SeedBaseline(r.transform(buf))
}

// ProcessFrame runs one pipeline cycle on buf and returns the delay the
// producer should honor before requesting the next frame. The renderer
// takes ownership of buf; the producer must assemble the next frame in a
// fresh buffer.
func (r *Renderer) ProcessFrame(buf *pixel.Buffer) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if r.paused {
		return r.ctrl.Delay(), nil
	}

	r.tickDebugCounters()

	// Prune completed job handles every cycle so pending stays bounded by
	// the number of genuinely in-flight transmissions.
	inFlight := r.inFlight()

	// Frame skipping: with the synchronous clock disabled the producer never
	// waits for the device; frames arriving while the transmission queue is
	// full are dropped instead.
	if !r.cfg.SynchronousClock && inFlight > r.queueDepth() {
		r.stats.SkippedFrames++
		r.secSkipped++
		metrics.IncSkipped()
		return r.ctrl.Delay(), nil
	}

	frame := r.transform(buf)
	if w, h := r.cfg.EffectiveSize(); frame.W < w || frame.H < h {
		return r.ctrl.Delay(), ErrFrameSize
	}
	regions := r.differ.Diff(frame)

	if len(regions) == 0 {
		r.stats.CleanFrames++
		metrics.IncClean()
		r.ctrl.Observe(false)
		metrics.SetFPS(r.ctrl.FPS())
		return r.ctrl.Delay(), nil
	}

	r.stats.RenderedFrames++
	r.secRendered++
	metrics.IncRendered()
	r.stats.DirtyRegions += uint64(len(regions))
	metrics.AddDirtyRegions(len(regions))

	for _, region := range regions {
		ok, retry := r.limiter.Admit(region.Rect)
		if !ok {
			// Fold the deferred region into the next cycle's baseline; it
			// will be retried or superseded by a newer diff, never lost.
			r.differ.Invalidate(region.Rect)
			r.stats.DeferredRegions++
			metrics.IncDeferred()
			r.log.Debug().
				Int("pixels", region.Rect.Area()).
				Dur("retry", retry).
				Msg("region deferred to next cycle")
			continue
		}
		job := r.disp.Dispatch(region)
		r.pending = append(r.pending, job)
		r.stats.PixelsSent += uint64(region.Rect.Area())
		metrics.AddPixelsSent(region.Rect.Area())
	}

	r.ctrl.Observe(true)
	metrics.SetFPS(r.ctrl.FPS())
	return r.ctrl.Delay(), nil
}

// ProcessFrameRGBA is ProcessFrame for hosts that hand over a raw RGBA
// framebuffer; the alpha channel is dropped before the pipeline runs.
func (r *Renderer) ProcessFrameRGBA(w, h int, rgba []byte) (time.Duration, error) {
	buf, err := pixel.FromRGBA(w, h, rgba)
	if err != nil {
		return 0, err
	}
	return r.ProcessFrame(buf)
}

// Pause halts dispatching: subsequent ProcessFrame calls do nothing until
// Resume. An outstanding transmission is not cancelled.
func (r *Renderer) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	r.log.Info().Msg("renderer paused")
}

// Resume restarts dispatching. The device state during the pause is
// unknown, so the next frame is forced fully dirty and the rate controller
// restarts at max fps.
func (r *Renderer) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	r.differ.MarkAllDirty()
	r.ctrl.Reset()
	r.log.Info().Msg("renderer resumed, next frame will be fully dirty")
}

// Close flushes the outstanding transmission and tears the renderer down.
// With clear_at_exit configured a blank frame is transmitted first.
// Idempotent.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cfg.ClearAtExit {
		w, h := r.cfg.EffectiveSize()
		blank := pixel.New(w, h)
		r.disp.Dispatch(types.Region{
			Rect: types.Rect{X: 0, Y: 0, W: w, H: h},
			Data: blank.Pix,
		})
	}
	r.disp.Flush()
	r.differ.Reset()
	r.log.Info().Msg("renderer closed")
	return nil
}

// Status returns a snapshot of the renderer's state and counters.
func (r *Renderer) Status() types.StatusResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.FPS = r.ctrl.FPS()
	s.Mode = r.ctrl.Mode().String()
	switch {
	case r.closed:
		s.State = "closed"
	case r.paused:
		s.State = "paused"
	default:
		s.State = "running"
	}
	return s
}

// Snapshot returns a copy of the retained previous frame, or nil before the
// first frame. Diagnostic use (the /frame endpoint).
func (r *Renderer) Snapshot() *pixel.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.differ.Previous()
}

// transform applies orientation and clamps to the configured bounds.
func (r *Renderer) transform(buf *pixel.Buffer) *pixel.Buffer {
	out := pixel.Transform(buf, r.cfg.Rotation, r.cfg.FlipHorizontal, r.cfg.FlipVertical)
	w, h := r.cfg.EffectiveSize()
	return out.Clip(w, h)
}

// queueDepth is the number of in-flight transmissions tolerated before
// frames are skipped (synchronous clock off) or the producer blocks
// (double buffering off, enforced by the dispatcher itself).
func (r *Renderer) queueDepth() int {
	if r.cfg.DoubleBuffering {
		return 1
	}
	return 0
}

// inFlight prunes completed jobs and returns how many are still running.
func (r *Renderer) inFlight() int {
	alive := r.pending[:0]
	for _, j := range r.pending {
		select {
		case <-j.Done():
		default:
			alive = append(alive, j)
		}
	}
	r.pending = alive
	return len(alive)
}

// tickDebugCounters logs per-second rendered/skipped frame counts in debug
// mode.
func (r *Renderer) tickDebugCounters() {
	if !r.cfg.IsDebugMode {
		return
	}
	now := time.Now().Unix()
	if r.lastSecond == 0 {
		r.lastSecond = now
		return
	}
	if now != r.lastSecond {
		r.log.Debug().
			Int64("second", r.lastSecond).
			Int("rendered", r.secRendered).
			Int("skipped", r.secSkipped).
			Msg("frame accounting")
		r.lastSecond = now
		r.secRendered = 0
		r.secSkipped = 0
	}
}
