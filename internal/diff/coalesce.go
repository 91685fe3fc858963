package diff

import "displayd/pkg/types"

// run is a maximal horizontal stretch of dirty tiles within one tile row.
type run struct {
	row, c0, c1 int
}

// coalesce merges adjacent dirty tiles into bounding rectangles. Dirty tiles
// are first merged along rows into maximal runs, then vertically adjacent
// runs with identical horizontal extent are merged into one rectangle. The
// result covers exactly the dirty tiles, preferring fewer, larger rectangles
// over pixel-tightness; every emitted region also costs the fixed
// per-transmission overhead, so fragmenting wastes bandwidth budget.
func coalesce(g Geometry, dirty []bool) []types.Rect {
	var runs []run
	for row := 0; row < g.Rows; row++ {
		col := 0
		for col < g.Cols {
			if !dirty[row*g.Cols+col] {
				col++
				continue
			}
			start := col
			for col < g.Cols && dirty[row*g.Cols+col] {
				col++
			}
			runs = append(runs, run{row: row, c0: start, c1: col - 1})
		}
	}

	var rects []types.Rect
	consumed := make([]bool, len(runs))
	for i, r := range runs {
		if consumed[i] {
			continue
		}
		lastRow := r.row
		for j := i + 1; j < len(runs); j++ {
			if consumed[j] {
				continue
			}
			next := runs[j]
			if next.row > lastRow+1 {
				break
			}
			if next.row == lastRow+1 && next.c0 == r.c0 && next.c1 == r.c1 {
				consumed[j] = true
				lastRow = next.row
			}
		}
		rects = append(rects, g.Bounds(r.c0, r.row, r.c1, lastRow))
	}
	return rects
}
