package types

// Rect is an axis-aligned rectangle in display coordinates. X grows right,
// Y grows down, both in pixels.
type Rect struct {
	// Left edge in pixels.
	// example: 50
	X int `json:"x" example:"50"`
	// Top edge in pixels.
	// example: 50
	Y int `json:"y" example:"50"`
	// Width in pixels.
	// example: 10
	W int `json:"w" example:"10"`
	// Height in pixels.
	// example: 10
	H int `json:"h" example:"10"`
}

// Area returns the number of pixels covered by the rectangle.
func (r Rect) Area() int { return r.W * r.H }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Region is a changed rectangle together with the pixel data restricted to
// it. Data is row-major RGB, 3 bytes per pixel, len == W*H*3. Fingerprint is
// a content hash over Data, intended for caller-side deduplication and
// logging, not for correctness.
type Region struct {
	Rect        Rect
	Data        []byte
	Fingerprint uint64
}
