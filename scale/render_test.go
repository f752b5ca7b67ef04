package scale

import (
	"testing"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/weights"
)

func solidBitmap(t *testing.T, w, h int, c bitmap.Color) (*bitmap.Store, bitmap.Key, *bitmap.Window) {
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
	for y := 0; y < h; y++ {
		row, err := win.RowBytes(y)
		if err != nil {
			t.Fatalf("RowBytes: %v", err)
		}
		for x := 0; x < w; x++ {
			row[x*4+0] = c.B
			row[x*4+1] = c.G
			row[x*4+2] = c.R
			row[x*4+3] = c.A
		}
	}
	return st, key, win
}

func TestRender2DSolidColorPreserved(t *testing.T) {
	red := bitmap.Color{R: 200, G: 10, B: 10, A: 255}
	st, _, src := solidBitmap(t, 20, 20, red)
	defer src.Close()

	dstStore, dstKey, dst := solidBitmap(t, 5, 5, bitmap.Color{})
	defer dst.Close()
	_ = dstStore

	opts := DefaultOptions()
	opts.Filter = weights.Robidoux
	if err := Render2D(src, dst, opts); err != nil {
		t.Fatalf("Render2D: %v", err)
	}
	for y := 0; y < 5; y++ {
		row, err := dst.RowBytes(y)
		if err != nil {
			t.Fatalf("RowBytes: %v", err)
		}
		for x := 0; x < 5; x++ {
			o := x * 4
			if row[o+2] < 195 || row[o+2] > 205 {
				t.Errorf("pixel (%d,%d) red channel %d, want ~200", x, y, row[o+2])
			}
			if row[o+3] < 250 {
				t.Errorf("pixel (%d,%d) alpha %d, want ~255", x, y, row[o+3])
			}
		}
	}
	_ = st
	_ = dstKey
}
