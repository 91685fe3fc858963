// Package source provides the built-in frame producer used by the daemon
// and demos: a square bouncing across the display, exercising the whole
// delta pipeline with small, localized changes.
package source

import (
	"displayd/internal/pixel"
)

// Pattern generates frames on demand. Each Frame call advances the
// animation by one step and returns a fresh buffer, so a previously handed
// off buffer is never mutated.
type Pattern struct {
	w, h   int
	size   int
	x, y   int
	dx, dy int
}

// NewPattern returns a bouncing-square generator for a w x h display.
func NewPattern(w, h int) *Pattern {
	size := w / 8
	if size < 4 {
		size = 4
	}
	return &Pattern{w: w, h: h, size: size, dx: 3, dy: 2}
}

// Frame renders the next animation step into a fresh buffer.
func (p *Pattern) Frame() *pixel.Buffer {
	buf := pixel.New(p.w, p.h)
	for y := p.y; y < p.y+p.size && y < p.h; y++ {
		for x := p.x; x < p.x+p.size && x < p.w; x++ {
			buf.Set(x, y, 255, 255, 255)
		}
	}
	p.advance()
	return buf
}

func (p *Pattern) advance() {
	p.x += p.dx
	p.y += p.dy
	if p.x <= 0 || p.x+p.size >= p.w {
		p.dx = -p.dx
		p.x += 2 * p.dx
	}
	if p.y <= 0 || p.y+p.size >= p.h {
		p.dy = -p.dy
		p.y += 2 * p.dy
	}
}
