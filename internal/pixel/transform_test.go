package pixel

import (
	"bytes"
	"testing"

	"displayd/pkg/types"
)

// helper: 3x2 buffer with distinct per-pixel values
func testBuffer(t *testing.T) *Buffer {
	t.Helper()
	b := New(3, 2)
	n := byte(0)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			b.Set(x, y, n, n+1, n+2)
			n += 3
		}
	}
	return b
}

func TestRotateSwapsAxes(t *testing.T) {
	b := testBuffer(t)
	out := Transform(b, 1, false, false)
	if out.W != b.H || out.H != b.W {
		t.Fatalf("expected %dx%d got %dx%d", b.H, b.W, out.W, out.H)
	}
	// One counterclockwise quarter turn moves the top-right input pixel to
	// the top-left of the output.
	r, g, bl := b.At(2, 0)
	or, og, ob := out.At(0, 0)
	if r != or || g != og || bl != ob {
		t.Fatalf("top-right pixel not at top-left after rotation")
	}
}

func TestRotationRoundTrip(t *testing.T) {
	b := testBuffer(t)
	for r := 0; r < 4; r++ {
		once := Transform(b, r, false, false)
		back := Transform(once, (4-r)%4, false, false)
		if back.W != b.W || back.H != b.H || !bytes.Equal(back.Pix, b.Pix) {
			t.Fatalf("rotation %d round trip mismatch", r)
		}
	}
}

func TestFlipIsInvolution(t *testing.T) {
	b := testBuffer(t)
	cases := []struct {
		name         string
		flipH, flipV bool
	}{
		{"horizontal", true, false},
		{"vertical", false, true},
		{"both", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			once := Transform(b, 0, tc.flipH, tc.flipV)
			back := Transform(once, 0, tc.flipH, tc.flipV)
			if !bytes.Equal(back.Pix, b.Pix) {
				t.Fatalf("flip composed with itself is not the identity")
			}
		})
	}
}

func TestTransformIsPure(t *testing.T) {
	b := testBuffer(t)
	before := append([]byte(nil), b.Pix...)
	_ = Transform(b, 1, true, true)
	if !bytes.Equal(b.Pix, before) {
		t.Fatalf("input buffer was mutated")
	}
}

func TestIdentityTransformReturnsSameBuffer(t *testing.T) {
	b := testBuffer(t)
	if out := Transform(b, 0, false, false); out != b {
		t.Fatalf("identity transform should not copy")
	}
}

func TestClipOversizedBuffer(t *testing.T) {
	b := New(5, 4)
	b.Set(1, 1, 9, 9, 9)
	out := b.Clip(3, 2)
	if out.W != 3 || out.H != 2 {
		t.Fatalf("expected 3x2 got %dx%d", out.W, out.H)
	}
	if r, _, _ := out.At(1, 1); r != 9 {
		t.Fatalf("clipped buffer lost pixel content")
	}
	// Fitting buffers are passed through untouched.
	if out2 := out.Clip(10, 10); out2 != out {
		t.Fatalf("fitting buffer should not be copied")
	}
}

func TestSubRect(t *testing.T) {
	b := testBuffer(t)
	got := b.SubRect(types.Rect{X: 1, Y: 0, W: 2, H: 2})
	want := []byte{
		3, 4, 5, 6, 7, 8,
		12, 13, 14, 15, 16, 17,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("subrect mismatch: got %v want %v", got, want)
	}
}

func TestFromRGBADropsAlpha(t *testing.T) {
	rgba := []byte{1, 2, 3, 255, 4, 5, 6, 0}
	b, err := FromRGBA(2, 1, rgba)
	if err != nil {
		t.Fatalf("from rgba: %v", err)
	}
	if !bytes.Equal(b.Pix, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected pix: %v", b.Pix)
	}
	if _, err := FromRGBA(2, 2, rgba); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
