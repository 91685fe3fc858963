// Package pixel provides the dense RGB frame buffer handed between pipeline
// stages and the pure orientation transform applied to every frame before
// change detection.
package pixel

import (
	"fmt"

	"displayd/pkg/types"
)

const bytesPerPixel = 3

// Buffer is a dense, row-major grid of W x H pixels, 3 bytes per pixel (RGB).
// A Buffer is exclusively owned by whichever pipeline stage currently holds
// it; once handed downstream it must be treated as read-only.
type Buffer struct {
	W, H int
	Pix  []byte // len == W*H*3
}

// New returns a zeroed (black) buffer of the given dimensions.
func New(w, h int) *Buffer {
	return &Buffer{W: w, H: h, Pix: make([]byte, w*h*bytesPerPixel)}
}

// FromRGBA builds a buffer from a w x h RGBA byte grid, dropping the alpha
// channel. The input is copied; the caller keeps ownership of rgba.
func FromRGBA(w, h int, rgba []byte) (*Buffer, error) {
	if len(rgba) != w*h*4 {
		return nil, fmt.Errorf("pixel: rgba length %d does not match %dx%dx4", len(rgba), w, h)
	}
	b := New(w, h)
	for i, j := 0, 0; i < len(rgba); i, j = i+4, j+3 {
		b.Pix[j] = rgba[i]
		b.Pix[j+1] = rgba[i+1]
		b.Pix[j+2] = rgba[i+2]
	}
	return b, nil
}

// offset returns the byte offset of pixel (x, y).
func (b *Buffer) offset(x, y int) int { return (y*b.W + x) * bytesPerPixel }

// At returns the RGB channels of pixel (x, y).
func (b *Buffer) At(x, y int) (r, g, bl byte) {
	o := b.offset(x, y)
	return b.Pix[o], b.Pix[o+1], b.Pix[o+2]
}

// Set writes the RGB channels of pixel (x, y).
func (b *Buffer) Set(x, y int, r, g, bl byte) {
	o := b.offset(x, y)
	b.Pix[o], b.Pix[o+1], b.Pix[o+2] = r, g, bl
}

// SubRect copies the pixels inside r into a fresh row-major RGB slice of
// length r.W*r.H*3. r must lie within the buffer bounds.
func (b *Buffer) SubRect(r types.Rect) []byte {
	out := make([]byte, r.W*r.H*bytesPerPixel)
	rowLen := r.W * bytesPerPixel
	for row := 0; row < r.H; row++ {
		src := b.offset(r.X, r.Y+row)
		copy(out[row*rowLen:(row+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return out
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{W: b.W, H: b.H, Pix: make([]byte, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

// Clip returns a buffer restricted to the top-left w x h corner. Hosts whose
// displays misreport geometry can produce buffers larger than configured;
// those are sliced to the configured bounds rather than rejected. If the
// buffer already fits, it is returned as is.
func (b *Buffer) Clip(w, h int) *Buffer {
	if b.W <= w && b.H <= h {
		return b
	}
	if w > b.W {
		w = b.W
	}
	if h > b.H {
		h = b.H
	}
	out := New(w, h)
	rowLen := w * bytesPerPixel
	for row := 0; row < h; row++ {
		src := b.offset(0, row)
		copy(out.Pix[row*rowLen:(row+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return out
}
