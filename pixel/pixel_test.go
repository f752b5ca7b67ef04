package pixel

import (
	"testing"

	"github.com/imazen-go/imageflow/bitmap"
)

func newBGRA(t *testing.T, w, h int) (*bitmap.Store, bitmap.Key, *bitmap.Window) {
	t.Helper()
	st := bitmap.NewStore()
	key, err := st.CreateU8(w, h, bitmap.BGRA, true, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
	if err != nil {
		t.Fatalf("CreateU8: %v", err)
	}
	win, err := st.TryBorrowMut(key)
	if err != nil {
		t.Fatalf("TryBorrowMut: %v", err)
	}
	return st, key, win
}

func setPixel(w *bitmap.Window, x, y int, c bitmap.Color) {
	row, _ := w.RowBytes(y)
	o := x * 4
	row[o], row[o+1], row[o+2], row[o+3] = c.B, c.G, c.R, c.A
}

func getPixel(w *bitmap.Window, x, y int) bitmap.Color {
	row, _ := w.RowBytes(y)
	o := x * 4
	return bitmap.Color{B: row[o], G: row[o+1], R: row[o+2], A: row[o+3]}
}

func TestFlipVerticalInvolution(t *testing.T) {
	_, _, w := newBGRA(t, 3, 4)
	defer w.Close()
	setPixel(w, 0, 0, bitmap.Color{R: 1, A: 255})
	setPixel(w, 0, 3, bitmap.Color{R: 2, A: 255})
	if err := FlipVertical(w); err != nil {
		t.Fatal(err)
	}
	if getPixel(w, 0, 0).R != 2 || getPixel(w, 0, 3).R != 1 {
		t.Fatal("flip vertical did not swap rows")
	}
	if err := FlipVertical(w); err != nil {
		t.Fatal(err)
	}
	if getPixel(w, 0, 0).R != 1 || getPixel(w, 0, 3).R != 2 {
		t.Fatal("flip vertical applied twice is not an involution")
	}
}

func TestFlipHorizontalInvolution(t *testing.T) {
	_, _, w := newBGRA(t, 4, 2)
	defer w.Close()
	setPixel(w, 0, 0, bitmap.Color{R: 9, A: 255})
	setPixel(w, 3, 0, bitmap.Color{R: 5, A: 255})
	if err := FlipHorizontal(w); err != nil {
		t.Fatal(err)
	}
	if getPixel(w, 0, 0).R != 5 || getPixel(w, 3, 0).R != 9 {
		t.Fatal("flip horizontal did not swap columns")
	}
	if err := FlipHorizontal(w); err != nil {
		t.Fatal(err)
	}
	if getPixel(w, 0, 0).R != 9 || getPixel(w, 3, 0).R != 5 {
		t.Fatal("flip horizontal applied twice is not an involution")
	}
}

func TestTransposeSwapsDimensions(t *testing.T) {
	_, _, src := newBGRA(t, 5, 2)
	defer src.Close()
	setPixel(src, 4, 1, bitmap.Color{R: 7, A: 255})

	_, _, dst := newBGRA(t, 2, 5)
	defer dst.Close()
	if err := Transpose(src, dst); err != nil {
		t.Fatal(err)
	}
	if getPixel(dst, 1, 4).R != 7 {
		t.Fatal("transpose did not relocate pixel correctly")
	}
}

func TestFillRectAndCopyRect(t *testing.T) {
	_, _, src := newBGRA(t, 4, 4)
	defer src.Close()
	if err := FillRect(src, 0, 0, 4, 4, bitmap.Color{R: 50, G: 60, B: 70, A: 255}); err != nil {
		t.Fatal(err)
	}
	_, _, dst := newBGRA(t, 4, 4)
	defer dst.Close()
	if err := CopyRect(src, dst, 0, 0, 0, 0, 4, 4); err != nil {
		t.Fatal(err)
	}
	if got := getPixel(dst, 2, 2); got.R != 50 || got.G != 60 || got.B != 70 {
		t.Fatalf("copy rect produced %+v", got)
	}
}

func TestApplyOrientationIdentity(t *testing.T) {
	_, _, src := newBGRA(t, 3, 2)
	defer src.Close()
	setPixel(src, 2, 1, bitmap.Color{R: 11, A: 255})
	_, _, dst := newBGRA(t, 3, 2)
	defer dst.Close()
	if err := ApplyOrientation(src, dst, 1); err != nil {
		t.Fatal(err)
	}
	if getPixel(dst, 2, 1).R != 11 {
		t.Fatal("orientation 1 should be identity copy")
	}
}

func TestApplyOrientationRotate90CW(t *testing.T) {
	_, _, src := newBGRA(t, 3, 2) // w=3,h=2
	defer src.Close()
	setPixel(src, 0, 0, bitmap.Color{R: 42, A: 255})
	_, _, dst := newBGRA(t, 2, 3) // dims swap for orientation 6
	defer dst.Close()
	if err := ApplyOrientation(src, dst, 6); err != nil {
		t.Fatal(err)
	}
	// (0,0) in a w=3,h=2 source rotated 90 CW lands at (h-1-0, 0) = (1,0) in
	// a w=2,h=3 destination.
	if getPixel(dst, 1, 0).R != 42 {
		t.Fatalf("rotate90 placed pixel incorrectly: %+v", getPixel(dst, 1, 0))
	}
}
