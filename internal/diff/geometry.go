// Package diff implements tile-based change detection between consecutive
// frames: fixed tile geometry, per-tile content fingerprints, and coalescing
// of adjacent dirty tiles into bounding rectangles.
package diff

import "displayd/pkg/types"

// DefaultTileSize is the target tile edge length in pixels.
const DefaultTileSize = 60

// Geometry is a fixed partition of a W x H frame into a grid of tiles. The
// grid covers the frame exactly: no gaps, no overlap. Edge tiles may be
// smaller when the frame dimensions do not divide evenly. Geometry must be
// identical between the current and previous frame, so it is computed once
// per configuration from the post-transform dimensions.
type Geometry struct {
	W, H       int
	Cols, Rows int
	colOffsets []int // len Cols+1, cumulative x edges
	rowOffsets []int // len Rows+1, cumulative y edges
}

// NewGeometry partitions a w x h frame into tiles of roughly tileSize pixels
// per edge. Each axis is split into round(n/tileSize) near-equal spans, never
// fewer than one. tileSize <= 0 selects DefaultTileSize.
func NewGeometry(w, h, tileSize int) Geometry {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	colSpans := splitSpans(w, tileSize)
	rowSpans := splitSpans(h, tileSize)
	return Geometry{
		W:          w,
		H:          h,
		Cols:       len(colSpans),
		Rows:       len(rowSpans),
		colOffsets: offsets(colSpans),
		rowOffsets: offsets(rowSpans),
	}
}

// splitSpans divides n into round(n/target) near-equal parts. The first
// n mod k parts get the extra pixel.
func splitSpans(n, target int) []int {
	k := (n + target/2) / target
	if k < 1 {
		k = 1
	}
	base, rem := n/k, n%k
	spans := make([]int, k)
	for i := range spans {
		spans[i] = base
		if i < rem {
			spans[i]++
		}
	}
	return spans
}

func offsets(spans []int) []int {
	out := make([]int, len(spans)+1)
	for i, s := range spans {
		out[i+1] = out[i] + s
	}
	return out
}

// Tiles returns the number of tiles in the grid.
func (g Geometry) Tiles() int { return g.Cols * g.Rows }

// Tile returns the rectangle of the tile at grid position (col, row).
func (g Geometry) Tile(col, row int) types.Rect {
	return types.Rect{
		X: g.colOffsets[col],
		Y: g.rowOffsets[row],
		W: g.colOffsets[col+1] - g.colOffsets[col],
		H: g.rowOffsets[row+1] - g.rowOffsets[row],
	}
}

// Bounds returns the bounding rectangle of a run of tiles from grid position
// (c0, r0) through (c1, r1) inclusive.
func (g Geometry) Bounds(c0, r0, c1, r1 int) types.Rect {
	return types.Rect{
		X: g.colOffsets[c0],
		Y: g.rowOffsets[r0],
		W: g.colOffsets[c1+1] - g.colOffsets[c0],
		H: g.rowOffsets[r1+1] - g.rowOffsets[r0],
	}
}
