package diff

import (
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"displayd/internal/pixel"
	"displayd/pkg/types"
)

// Differ detects changed regions between consecutive frames. It retains the
// previous frame and its per-tile fingerprints; both are replaced after
// every Diff call. Differ is not safe for concurrent use: all calls must
// come from the single producer context.
type Differ struct {
	geom Geometry
	log  zerolog.Logger

	prev      *pixel.Buffer
	prevHash  []uint64 // Rows*Cols, row-major
	prevValid []bool   // false forces the tile dirty on the next diff
}

// New creates a differ for a fixed tile geometry.
func New(geom Geometry, log zerolog.Logger) *Differ {
	return &Differ{geom: geom, log: log}
}

// Geometry returns the fixed tile partition the differ was built with.
func (d *Differ) Geometry() Geometry { return d.geom }

// SeedBaseline installs buf as frame zero, so the first real frame diffs
// against it instead of being reported fully dirty. Used for splash or
// placeholder screens already present on the device.
func (d *Differ) SeedBaseline(buf *pixel.Buffer) {
	buf = buf.Clip(d.geom.W, d.geom.H)
	d.prev = buf
	d.prevHash = d.fingerprintAll(buf)
	d.prevValid = make([]bool, d.geom.Tiles())
	for i := range d.prevValid {
		d.prevValid[i] = true
	}
}

// MarkAllDirty invalidates every retained fingerprint so the next Diff
// reports the full frame as dirty regardless of pixel content. Called on
// resume, when the physical device state is unknown.
func (d *Differ) MarkAllDirty() {
	for i := range d.prevValid {
		d.prevValid[i] = false
	}
}

// Invalidate marks every tile intersecting r dirty for the next Diff. The
// bandwidth limiter uses this to fold a deferred region back into the next
// cycle's comparison baseline, so it is retried or superseded rather than
// lost.
func (d *Differ) Invalidate(r types.Rect) {
	if d.prevValid == nil {
		return // no baseline yet, next diff is fully dirty anyway
	}
	for row := 0; row < d.geom.Rows; row++ {
		for col := 0; col < d.geom.Cols; col++ {
			if d.geom.Tile(col, row).Intersects(r) {
				d.prevValid[row*d.geom.Cols+col] = false
			}
		}
	}
}

// Previous returns a copy of the retained previous frame, or nil before the
// first diff. Diagnostic use only.
func (d *Differ) Previous() *pixel.Buffer {
	if d.prev == nil {
		return nil
	}
	return d.prev.Clone()
}

// Reset drops all retained state, as on teardown or pause-and-clear. The
// next Diff behaves like a first frame.
func (d *Differ) Reset() {
	d.prev = nil
	d.prevHash = nil
	d.prevValid = nil
}

// Diff fingerprints every tile of cur, compares against the retained
// previous frame, and returns the changed tiles coalesced into bounding
// rectangles. On the first frame (no baseline) the whole frame is one dirty
// region. After the call the differ retains cur as the new baseline; the
// caller must not mutate cur afterwards.
func (d *Differ) Diff(cur *pixel.Buffer) []types.Region {
	cur = cur.Clip(d.geom.W, d.geom.H)

	hashes := d.fingerprintAll(cur)
	dirty := make([]bool, d.geom.Tiles())
	any := false
	for i := range hashes {
		if d.prevHash == nil || !d.prevValid[i] || hashes[i] != d.prevHash[i] {
			dirty[i] = true
			any = true
		}
	}

	d.prev = cur
	d.prevHash = hashes
	if d.prevValid == nil {
		d.prevValid = make([]bool, d.geom.Tiles())
	}
	for i := range d.prevValid {
		d.prevValid[i] = true
	}

	if !any {
		return nil
	}

	rects := coalesce(d.geom, dirty)
	regions := make([]types.Region, 0, len(rects))
	for _, r := range rects {
		data := cur.SubRect(r)
		regions = append(regions, types.Region{
			Rect:        r,
			Data:        data,
			Fingerprint: xxhash.Sum64(data),
		})
	}
	d.log.Debug().Int("regions", len(regions)).Msg("diff produced dirty regions")
	return regions
}

// fingerprintAll computes the per-tile content hash grid for buf.
func (d *Differ) fingerprintAll(buf *pixel.Buffer) []uint64 {
	hashes := make([]uint64, d.geom.Tiles())
	h := xxhash.New()
	for row := 0; row < d.geom.Rows; row++ {
		for col := 0; col < d.geom.Cols; col++ {
			tile := d.geom.Tile(col, row)
			h.Reset()
			rowLen := tile.W * 3
			for y := tile.Y; y < tile.Y+tile.H; y++ {
				off := (y*buf.W + tile.X) * 3
				_, _ = h.Write(buf.Pix[off : off+rowLen])
			}
			hashes[row*d.geom.Cols+col] = h.Sum64()
		}
	}
	return hashes
}
