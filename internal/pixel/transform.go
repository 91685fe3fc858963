package pixel

// Transform applies the configured orientation to a frame: rotationSteps
// counterclockwise quarter turns, then an optional horizontal mirror, then an
// optional vertical mirror. It is pure: the input buffer is never modified
// and a new buffer is returned whenever any transform applies. Odd rotation
// steps swap the output axes.
func Transform(b *Buffer, rotationSteps int, flipH, flipV bool) *Buffer {
	rotationSteps = ((rotationSteps % 4) + 4) % 4
	out := b
	if rotationSteps != 0 {
		out = rotate(out, rotationSteps)
	}
	if flipH {
		out = flipHorizontal(out)
	}
	if flipV {
		out = flipVertical(out)
	}
	return out
}

// rotate turns the buffer by steps quarter turns counterclockwise.
func rotate(b *Buffer, steps int) *Buffer {
	out := b
	for i := 0; i < steps; i++ {
		out = rotate90(out)
	}
	return out
}

// rotate90 performs a single counterclockwise quarter turn. For an input of
// width W and height H the output has width H and height W, with
// out(x', y') = in(W-1-y', x').
func rotate90(b *Buffer) *Buffer {
	out := New(b.H, b.W)
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			srcX := b.W - 1 - y
			srcY := x
			copyPixel(out, x, y, b, srcX, srcY)
		}
	}
	return out
}

// flipHorizontal mirrors the buffer around its vertical axis.
func flipHorizontal(b *Buffer) *Buffer {
	out := New(b.W, b.H)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			copyPixel(out, b.W-1-x, y, b, x, y)
		}
	}
	return out
}

// flipVertical mirrors the buffer around its horizontal axis.
func flipVertical(b *Buffer) *Buffer {
	out := New(b.W, b.H)
	for y := 0; y < b.H; y++ {
		src := b.offset(0, y)
		dst := out.offset(0, b.H-1-y)
		copy(out.Pix[dst:dst+b.W*bytesPerPixel], b.Pix[src:src+b.W*bytesPerPixel])
	}
	return out
}

func copyPixel(dst *Buffer, dx, dy int, src *Buffer, sx, sy int) {
	d := dst.offset(dx, dy)
	s := src.offset(sx, sy)
	copy(dst.Pix[d:d+bytesPerPixel], src.Pix[s:s+bytesPerPixel])
}
