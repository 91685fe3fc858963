package renderer

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"displayd/internal/config"
	"displayd/internal/dispatch"
	"displayd/internal/pixel"
	"displayd/pkg/types"
)

// recorder collects every region handed to the transmission callback.
type recorder struct {
	mu      sync.Mutex
	regions []types.Region
}

func (rec *recorder) callback() Callback {
	return func(rect types.Rect, data []byte, fp uint64, prev *dispatch.Job) {
		prev.Wait()
		rec.mu.Lock()
		rec.regions = append(rec.regions, types.Region{Rect: rect, Data: data, Fingerprint: fp})
		rec.mu.Unlock()
	}
}

func (rec *recorder) rects() []types.Rect {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]types.Rect, len(rec.regions))
	for i, r := range rec.regions {
		out[i] = r.Rect
	}
	return out
}

func testConfig() config.Config {
	cfg := config.FromEnv()
	cfg.Width = 120
	cfg.Height = 120
	cfg.TileSize = 10
	return cfg
}

func newTestRenderer(t *testing.T, cfg config.Config, rec *recorder) *Renderer {
	t.Helper()
	r, err := New(cfg, rec.callback(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

// drain waits for all dispatched jobs to finish.
func drain(t *testing.T, r *Renderer) {
	t.Helper()
	r.mu.Lock()
	pending := append([]*dispatch.Job(nil), r.pending...)
	r.mu.Unlock()
	for _, j := range pending {
		j.Wait()
	}
}

func paint(w, h int, r types.Rect, v byte) *pixel.Buffer {
	buf := pixel.New(w, h)
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			buf.Set(x, y, v, v, v)
		}
	}
	return buf
}

func TestRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MinFPS = 60
	cfg.MaxFPS = 30
	if _, err := New(cfg, (&recorder{}).callback(), zerolog.Nop()); err == nil {
		t.Fatalf("expected validation error before any frame is processed")
	}
}

func TestFirstFrameDispatchedInFull(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	if _, err := r.ProcessFrame(pixel.New(120, 120)); err != nil {
		t.Fatalf("process: %v", err)
	}
	drain(t, r)
	rects := rec.rects()
	if len(rects) != 1 || rects[0] != (types.Rect{X: 0, Y: 0, W: 120, H: 120}) {
		t.Fatalf("expected one full-frame region, got %+v", rects)
	}
}

func TestUnchangedFrameDispatchesNothing(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	r.ProcessFrame(pixel.New(120, 120))
	drain(t, r)
	before := len(rec.rects())

	r.ProcessFrame(pixel.New(120, 120))
	drain(t, r)
	if got := len(rec.rects()); got != before {
		t.Fatalf("unchanged frame produced %d extra dispatches", got-before)
	}
	st := r.Status()
	if st.CleanFrames != 1 {
		t.Fatalf("expected 1 clean frame, got %d", st.CleanFrames)
	}
}

func TestSmallChangeDispatchesTightRegion(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	r.ProcessFrame(pixel.New(120, 120))
	drain(t, r)
	r.ProcessFrame(paint(120, 120, types.Rect{X: 50, Y: 50, W: 10, H: 10}, 255))
	drain(t, r)

	rects := rec.rects()
	want := types.Rect{X: 50, Y: 50, W: 10, H: 10}
	if len(rects) != 2 || rects[1] != want {
		t.Fatalf("expected tight region %+v, got %+v", want, rects)
	}
}

func TestPauseStopsDispatchResumeForcesFullFrame(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	frame := paint(120, 120, types.Rect{X: 0, Y: 0, W: 20, H: 20}, 80)
	r.ProcessFrame(frame.Clone())
	drain(t, r)
	sent := len(rec.rects())

	r.Pause()
	if !r.Paused() {
		t.Fatalf("expected paused state")
	}
	if _, err := r.ProcessFrame(frame.Clone()); err != nil {
		t.Fatalf("process while paused: %v", err)
	}
	drain(t, r)
	if got := len(rec.rects()); got != sent {
		t.Fatalf("paused renderer dispatched %d regions", got-sent)
	}

	r.Resume()
	// Identical pixel content, but the device state is unknown: full frame.
	r.ProcessFrame(frame.Clone())
	drain(t, r)
	rects := rec.rects()
	last := rects[len(rects)-1]
	if last != (types.Rect{X: 0, Y: 0, W: 120, H: 120}) {
		t.Fatalf("expected full-frame retransmission after resume, got %+v", last)
	}
	if st := r.Status(); st.FPS != testConfig().MaxFPS {
		t.Fatalf("expected rate reset to max fps, got %d", st.FPS)
	}
}

func TestBandwidthDeferredRegionIsRetried(t *testing.T) {
	cfg := testConfig()
	cfg.BandwidthLimit = 14600 // exactly one full frame plus overhead per second
	cfg.BandwidthLimitWindow = 1
	cfg.BandwidthLimitOverhead = 200
	rec := &recorder{}
	r := newTestRenderer(t, cfg, rec)
	defer r.Close()

	r.ProcessFrame(pixel.New(120, 120)) // full frame drains almost the whole bucket
	drain(t, r)

	change := types.Rect{X: 30, Y: 30, W: 10, H: 10}
	r.ProcessFrame(paint(120, 120, change, 200))
	drain(t, r)
	st := r.Status()
	if st.DeferredRegions != 1 {
		t.Fatalf("expected 1 deferred region, got %d", st.DeferredRegions)
	}

	// After the window passes the deferred area is still marked dirty and
	// goes out even though the frame content no longer changes.
	time.Sleep(1100 * time.Millisecond)
	r.ProcessFrame(paint(120, 120, change, 200))
	drain(t, r)
	rects := rec.rects()
	if rects[len(rects)-1] != change {
		t.Fatalf("deferred region was lost: %+v", rects)
	}
}

func TestSplashBaselineSuppressesFirstFullFrame(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	splash := paint(120, 120, types.Rect{X: 0, Y: 0, W: 120, H: 120}, 33)
	r.SeedSplash(splash)

	same := paint(120, 120, types.Rect{X: 0, Y: 0, W: 120, H: 120}, 33)
	r.ProcessFrame(same)
	drain(t, r)
	if got := rec.rects(); len(got) != 0 {
		t.Fatalf("expected no dispatch when first frame matches splash, got %+v", got)
	}
}

func TestCloseWithClearAtExit(t *testing.T) {
	cfg := testConfig()
	cfg.ClearAtExit = true
	rec := &recorder{}
	r := newTestRenderer(t, cfg, rec)

	r.ProcessFrame(paint(120, 120, types.Rect{X: 0, Y: 0, W: 120, H: 120}, 99))
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rects := rec.rects()
	last := rec.regions[len(rec.regions)-1]
	if last.Rect != (types.Rect{X: 0, Y: 0, W: 120, H: 120}) {
		t.Fatalf("expected blank full-frame on close, got %+v", rects)
	}
	for _, b := range last.Data {
		if b != 0 {
			t.Fatalf("clear-at-exit frame not blank")
		}
	}
	if _, err := r.ProcessFrame(pixel.New(120, 120)); !IsClosed(err) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close must be idempotent: %v", err)
	}
}

func TestRotationAppliedBeforeDiff(t *testing.T) {
	cfg := testConfig()
	cfg.Width = 120
	cfg.Height = 60
	cfg.Rotation = 1
	rec := &recorder{}
	r := newTestRenderer(t, cfg, rec)
	defer r.Close()

	// Host produces 120x60 frames; post-transform geometry is 60x120.
	r.ProcessFrame(pixel.New(120, 60))
	drain(t, r)
	rects := rec.rects()
	if len(rects) != 1 || rects[0] != (types.Rect{X: 0, Y: 0, W: 60, H: 120}) {
		t.Fatalf("expected rotated full-frame geometry, got %+v", rects)
	}
}

func TestCompletedJobsArePruned(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	// Every cycle dispatches one region and finishes it before the next
	// frame; the handle list must not grow with the number of cycles.
	for i := 0; i < 200; i++ {
		r.ProcessFrame(paint(120, 120, types.Rect{X: 10, Y: 10, W: 10, H: 10}, byte(i+1)))
		drain(t, r)
	}
	r.mu.Lock()
	n := len(r.pending)
	r.mu.Unlock()
	if n > 1 {
		t.Fatalf("%d completed job handles retained", n)
	}
}

func TestProcessFrameRGBA(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	rgba := make([]byte, 120*120*4)
	for i := 3; i < len(rgba); i += 4 {
		rgba[i] = 0xFF // opaque alpha must not leak into the pipeline
	}
	if _, err := r.ProcessFrameRGBA(120, 120, rgba); err != nil {
		t.Fatalf("process rgba: %v", err)
	}
	drain(t, r)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.regions) != 1 {
		t.Fatalf("expected one full-frame dispatch, got %d", len(rec.regions))
	}
	for _, b := range rec.regions[0].Data {
		if b != 0 {
			t.Fatalf("alpha channel leaked into dispatched data")
		}
	}
	if _, err := r.ProcessFrameRGBA(120, 120, rgba[:16]); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestUndersizedFrameRejected(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	if _, err := r.ProcessFrame(pixel.New(60, 60)); err != ErrFrameSize {
		t.Fatalf("expected ErrFrameSize, got %v", err)
	}
}

func TestStatusCounters(t *testing.T) {
	rec := &recorder{}
	r := newTestRenderer(t, testConfig(), rec)
	defer r.Close()

	r.ProcessFrame(pixel.New(120, 120))
	r.ProcessFrame(pixel.New(120, 120))
	drain(t, r)

	st := r.Status()
	if st.State != "running" {
		t.Fatalf("expected running state, got %s", st.State)
	}
	if st.Mode != "active_high" {
		t.Fatalf("expected active_high mode, got %s", st.Mode)
	}
	if st.RenderedFrames != 1 || st.CleanFrames != 1 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if st.PixelsSent != 120*120 {
		t.Fatalf("expected %d pixels sent, got %d", 120*120, st.PixelsSent)
	}
	if st.Width != 120 || st.Height != 120 {
		t.Fatalf("unexpected geometry in status: %+v", st)
	}
}
