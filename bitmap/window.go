package bitmap

import (
	"fmt"
	"sync"

	"github.com/imazen-go/imageflow/ferr"
)

// Window is a bounds-checked view onto a borrowed Bitmap's pixel region
// (spec §4.A). Windows are produced by Store.TryBorrow/TryBorrowMut and by
// slicing an existing Window (SplitOff, SubRect); all share the same
// underlying release, fired exactly once regardless of how many of the
// resulting sub-windows are closed.
type Window struct {
	bmp            *Bitmap
	x0, y0, x1, y1 int // pixel bounds within bmp; [x0,x1) x [y0,y1)
	release        *sync.Once
	releaseFn      func()
}

func newWindow(bmp *Bitmap, y0, y1 int, releaseFn func()) *Window {
	return &Window{
		bmp: bmp, x0: 0, y0: y0, x1: bmp.w, y1: y1,
		release: &sync.Once{}, releaseFn: releaseFn,
	}
}

// Close releases the borrow this Window (or any sibling produced from the
// same borrow via SplitOff/SubRect) holds. Safe to call more than once and
// safe to call on any of multiple sub-windows sharing one borrow.
func (w *Window) Close() error {
	w.release.Do(w.releaseFn)
	return nil
}

func (w *Window) Width() int          { return w.x1 - w.x0 }
func (w *Window) Height() int         { return w.y1 - w.y0 }
func (w *Window) Stride() int         { return w.bmp.stride }
func (w *Window) Layout() PixelLayout { return w.bmp.layout }
func (w *Window) Element() ElementType { return w.bmp.elem }
func (w *Window) ColorSpace() ColorSpace { return w.bmp.colorSpace }
func (w *Window) AlphaMeaningful() bool  { return w.bmp.alphaMeaningful }
func (w *Window) Compositing() Compositing { return w.bmp.compositing }
func (w *Window) Bitmap() *Bitmap        { return w.bmp }

// RowBytes returns the U8 pixel bytes for scanline y (window-relative),
// bounds-checked against the window's row range. Panics only on programmer
// error (negative y handled as an error return instead).
func (w *Window) RowBytes(y int) ([]byte, error) {
	if w.bmp.elem != U8 {
		return nil, ferr.New(ferr.UnsupportedPixelFormat, "bitmap.Window.RowBytes", fmt.Errorf("window element type is not U8"))
	}
	if y < 0 || w.y0+y >= w.y1 {
		return nil, ferr.New(ferr.InvalidArgument, "bitmap.Window.RowBytes", fmt.Errorf("row %d out of range [0,%d)", y, w.Height()))
	}
	bpp := w.bmp.layout.BytesPerPixel()
	rowStart := (w.y0+y)*w.bmp.stride + w.x0*bpp
	rowEnd := rowStart + w.Width()*bpp
	all := w.bmp.u8.Bytes()
	return all[rowStart:rowEnd], nil
}

// RowFloats returns the F32 samples for scanline y (window-relative).
func (w *Window) RowFloats(y int) ([]float32, error) {
	if w.bmp.elem != F32 {
		return nil, ferr.New(ferr.UnsupportedPixelFormat, "bitmap.Window.RowFloats", fmt.Errorf("window element type is not F32"))
	}
	if y < 0 || w.y0+y >= w.y1 {
		return nil, ferr.New(ferr.InvalidArgument, "bitmap.Window.RowFloats", fmt.Errorf("row %d out of range [0,%d)", y, w.Height()))
	}
	rowStart := (w.y0 + y) * w.bmp.stride
	rowEnd := rowStart + w.bmp.stride
	return w.bmp.f32[rowStart:rowEnd], nil
}

// Scanlines returns a range-over-func iterator yielding (y, row) pairs from
// top to bottom, for `for y, row := range w.Scanlines()`-style traversal.
func (w *Window) Scanlines() func(func(int, []byte) bool) {
	return func(yield func(int, []byte) bool) {
		for y := 0; y < w.Height(); y++ {
			row, err := w.RowBytes(y)
			if err != nil {
				return
			}
			if !yield(y, row) {
				return
			}
		}
	}
}

// ScanlinesReverse iterates bottom to top, used by flip_vertical and by
// decoders that receive rows in bottom-up order (BMP).
func (w *Window) ScanlinesReverse() func(func(int, []byte) bool) {
	return func(yield func(int, []byte) bool) {
		for y := w.Height() - 1; y >= 0; y-- {
			row, err := w.RowBytes(y)
			if err != nil {
				return
			}
			if !yield(y, row) {
				return
			}
		}
	}
}

// SplitOff divides the window into two row ranges [0,y) and [y,Height()),
// both backed by the same underlying borrow. Used by worker-parallel
// scanline processing and by node flattening that needs independent top
// and bottom views of one canvas.
func (w *Window) SplitOff(y int) (top, bottom *Window, err error) {
	if y <= 0 || y >= w.Height() {
		return nil, nil, ferr.New(ferr.InvalidArgument, "bitmap.Window.SplitOff", fmt.Errorf("split row %d out of range (0,%d)", y, w.Height()))
	}
	top = &Window{bmp: w.bmp, x0: w.x0, x1: w.x1, y0: w.y0, y1: w.y0 + y, release: w.release, releaseFn: w.releaseFn}
	bottom = &Window{bmp: w.bmp, x0: w.x0, x1: w.x1, y0: w.y0 + y, y1: w.y1, release: w.release, releaseFn: w.releaseFn}
	return top, bottom, nil
}

// SubRect returns a bounds-checked sub-rectangle view [x0,x1) x [y0,y1)
// (window-relative), sharing this window's borrow.
func (w *Window) SubRect(x0, y0, x1, y1 int) (*Window, error) {
	if x0 < 0 || y0 < 0 || x1 > w.Width() || y1 > w.Height() || x0 >= x1 || y0 >= y1 {
		return nil, ferr.New(ferr.InvalidDimensions, "bitmap.Window.SubRect", fmt.Errorf("rect (%d,%d)-(%d,%d) out of bounds for %dx%d window", x0, y0, x1, y1, w.Width(), w.Height()))
	}
	return &Window{
		bmp: w.bmp,
		x0:  w.x0 + x0, x1: w.x0 + x1,
		y0: w.y0 + y0, y1: w.y0 + y1,
		release: w.release, releaseFn: w.releaseFn,
	}, nil
}

// AsBGRA32 asserts the window's layout is BGRA and returns it unchanged;
// it exists as an explicit, named typed-access step mirroring imageflow's
// as_bgra32 mutators, which require the caller to state the layout they
// expect before looking at raw bytes.
func (w *Window) AsBGRA32() (*Window, error) {
	if w.bmp.layout != BGRA {
		return nil, ferr.New(ferr.UnsupportedPixelFormat, "bitmap.Window.AsBGRA32", fmt.Errorf("window layout is %v, not Bgra32", w.bmp.layout))
	}
	return w, nil
}
