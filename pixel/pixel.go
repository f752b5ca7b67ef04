// Package pixel implements imageflow's pixel-level primitives (spec §4.E):
// geometric operations (copy, fill, flip, transpose) and per-pixel color
// operations (matte, color matrix, alpha normalization), all operating on
// bitmap.Window views rather than raw bitmap.Bitmap so that node execution
// always goes through the borrow checker.
package pixel

import (
	"fmt"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/ferr"
)

// CopyRect copies a w x h block from src starting at (srcX,srcY) into dst
// starting at (dstX,dstY). Both windows must share the same layout.
func CopyRect(src, dst *bitmap.Window, srcX, srcY, dstX, dstY, w, h int) error {
	if src.Layout() != dst.Layout() {
		return ferr.New(ferr.UnsupportedPixelFormat, "pixel.CopyRect", fmt.Errorf("layout mismatch: %v vs %v", src.Layout(), dst.Layout()))
	}
	bpp := src.Layout().BytesPerPixel()
	for y := 0; y < h; y++ {
		srcRow, err := src.RowBytes(srcY + y)
		if err != nil {
			return err
		}
		dstRow, err := dst.RowBytes(dstY + y)
		if err != nil {
			return err
		}
		copy(dstRow[dstX*bpp:(dstX+w)*bpp], srcRow[srcX*bpp:(srcX+w)*bpp])
	}
	return nil
}

// FillRect fills a w x h block of dst starting at (x,y) with color c,
// honoring dst's compositing mode only insofar as ReplaceSelf always
// overwrites; callers wanting blended fills should composite via scale's
// floatspace helpers instead.
func FillRect(dst *bitmap.Window, x, y, w, h int, c bitmap.Color) error {
	bpp := dst.Layout().BytesPerPixel()
	hasAlpha := dst.Layout().HasAlpha()
	for row := 0; row < h; row++ {
		dstRow, err := dst.RowBytes(y + row)
		if err != nil {
			return err
		}
		for col := 0; col < w; col++ {
			o := (x + col) * bpp
			dstRow[o+0] = c.B
			dstRow[o+1] = c.G
			dstRow[o+2] = c.R
			if hasAlpha {
				dstRow[o+3] = c.A
			}
		}
	}
	return nil
}

// FlipVertical reverses the row order of w in place.
func FlipVertical(w *bitmap.Window) error {
	bpp := w.Layout().BytesPerPixel()
	buf := make([]byte, w.Width()*bpp)
	h := w.Height()
	for y := 0; y < h/2; y++ {
		top, err := w.RowBytes(y)
		if err != nil {
			return err
		}
		bot, err := w.RowBytes(h - 1 - y)
		if err != nil {
			return err
		}
		copy(buf, top)
		copy(top, bot)
		copy(bot, buf)
	}
	return nil
}

// FlipHorizontal reverses the column order of each row of w in place.
func FlipHorizontal(w *bitmap.Window) error {
	bpp := w.Layout().BytesPerPixel()
	width := w.Width()
	for y := 0; y < w.Height(); y++ {
		row, err := w.RowBytes(y)
		if err != nil {
			return err
		}
		for x := 0; x < width/2; x++ {
			l, r := x*bpp, (width-1-x)*bpp
			for b := 0; b < bpp; b++ {
				row[l+b], row[r+b] = row[r+b], row[l+b]
			}
		}
	}
	return nil
}

// Transpose writes src transposed (rows become columns) into dst, which
// must be exactly src.Height() x src.Width() in size.
func Transpose(src, dst *bitmap.Window) error {
	if dst.Width() != src.Height() || dst.Height() != src.Width() {
		return ferr.New(ferr.InvalidDimensions, "pixel.Transpose", fmt.Errorf("dst must be %dx%d for a %dx%d source", src.Height(), src.Width(), src.Width(), src.Height()))
	}
	bpp := src.Layout().BytesPerPixel()
	for y := 0; y < src.Height(); y++ {
		srcRow, err := src.RowBytes(y)
		if err != nil {
			return err
		}
		for x := 0; x < src.Width(); x++ {
			dstRow, err := dst.RowBytes(x)
			if err != nil {
				return err
			}
			copy(dstRow[y*bpp:(y+1)*bpp], srcRow[x*bpp:(x+1)*bpp])
		}
	}
	return nil
}

// ApplyMatte composites w (which must carry meaningful alpha) over a solid
// matte color in place, clearing alpha to opaque afterward.
func ApplyMatte(w *bitmap.Window, matte bitmap.Color) error {
	if !w.Layout().HasAlpha() {
		return nil
	}
	bpp := w.Layout().BytesPerPixel()
	ma := float64(matte.A) / 255.0
	for y := 0; y < w.Height(); y++ {
		row, err := w.RowBytes(y)
		if err != nil {
			return err
		}
		for x := 0; x < w.Width(); x++ {
			o := x * bpp
			a := float64(row[o+3]) / 255.0
			row[o+0] = blend8(row[o+0], matte.B, a, ma)
			row[o+1] = blend8(row[o+1], matte.G, a, ma)
			row[o+2] = blend8(row[o+2], matte.R, a, ma)
			row[o+3] = 255
		}
	}
	return nil
}

func blend8(src, matte uint8, a, ma float64) uint8 {
	outA := a + ma*(1-a)
	if outA <= 0 {
		return 0
	}
	v := (float64(src)*a + float64(matte)*ma*(1-a)) / outA
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// ColorMatrix is a 5x5 affine transform applied to (R,G,B,A,1) per pixel,
// as used by the grayscale/sepia/alpha-scaling presets in spec §4.J.
type ColorMatrix [5][5]float64

// Apply applies m to every pixel of w in place. w must be BGRA.
func (m ColorMatrix) Apply(w *bitmap.Window) error {
	if _, err := w.AsBGRA32(); err != nil {
		return err
	}
	for y := 0; y < w.Height(); y++ {
		row, err := w.RowBytes(y)
		if err != nil {
			return err
		}
		for x := 0; x < w.Width(); x++ {
			o := x * 4
			r := float64(row[o+2])
			g := float64(row[o+1])
			b := float64(row[o+0])
			a := float64(row[o+3])
			nr := m[0][0]*r + m[0][1]*g + m[0][2]*b + m[0][3]*a + m[0][4]*255
			ng := m[1][0]*r + m[1][1]*g + m[1][2]*b + m[1][3]*a + m[1][4]*255
			nb := m[2][0]*r + m[2][1]*g + m[2][2]*b + m[2][3]*a + m[2][4]*255
			na := m[3][0]*r + m[3][1]*g + m[3][2]*b + m[3][3]*a + m[3][4]*255
			row[o+2] = clamp255(nr)
			row[o+1] = clamp255(ng)
			row[o+0] = clamp255(nb)
			row[o+3] = clamp255(na)
		}
	}
	return nil
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// NormalizeAlpha scans w for any non-255 alpha byte; if none is found it
// does nothing (alpha stays non-meaningful). If any pixel has partial
// alpha, it leaves the buffer untouched and returns true so the caller can
// mark alpha_meaningful, matching imageflow_core's normalize_alpha, which
// exists to avoid compositing overhead on fully-opaque frames.
func NormalizeAlpha(w *bitmap.Window) (meaningful bool, err error) {
	if !w.Layout().HasAlpha() {
		return false, nil
	}
	bpp := w.Layout().BytesPerPixel()
	for y := 0; y < w.Height(); y++ {
		row, rerr := w.RowBytes(y)
		if rerr != nil {
			return false, rerr
		}
		for x := 0; x < w.Width(); x++ {
			if row[x*bpp+3] != 255 {
				return true, nil
			}
		}
	}
	return false, nil
}

// RoundedCorners clears the four corner regions of w to transparent black
// within radius pixels of each corner, approximating a circular arc with
// the standard midpoint-circle distance test (spec §4.E).
func RoundedCorners(w *bitmap.Window, radius int) error {
	if _, err := w.AsBGRA32(); err != nil {
		return err
	}
	width, height := w.Width(), w.Height()
	r2 := float64(radius) * float64(radius)
	for cy := 0; cy < radius && cy < height; cy++ {
		topRow, err := w.RowBytes(cy)
		if err != nil {
			return err
		}
		botRow, err := w.RowBytes(height - 1 - cy)
		if err != nil {
			return err
		}
		for cx := 0; cx < radius && cx < width; cx++ {
			dy := float64(radius - cy)
			dx := float64(radius - cx)
			if dx*dx+dy*dy > r2 {
				clearPixel(topRow, cx)
				clearPixel(topRow, width-1-cx)
				clearPixel(botRow, cx)
				clearPixel(botRow, width-1-cx)
			}
		}
	}
	return nil
}

func clearPixel(row []byte, x int) {
	o := x * 4
	row[o], row[o+1], row[o+2], row[o+3] = 0, 0, 0, 0
}

// Orientation is an EXIF orientation tag value (1..8, spec §4.E).
type Orientation int

// ApplyOrientation applies the geometric transform implied by EXIF
// orientation o to src, writing the (possibly transposed) result into dst.
// dst must already have the post-transform dimensions: swapped for
// orientations 5-8, unchanged otherwise.
func ApplyOrientation(src, dst *bitmap.Window, o Orientation) error {
	switch o {
	case 1:
		return CopyRect(src, dst, 0, 0, 0, 0, src.Width(), src.Height())
	case 2: // mirror horizontal
		if err := CopyRect(src, dst, 0, 0, 0, 0, src.Width(), src.Height()); err != nil {
			return err
		}
		return FlipHorizontal(dst)
	case 3: // rotate 180
		if err := CopyRect(src, dst, 0, 0, 0, 0, src.Width(), src.Height()); err != nil {
			return err
		}
		if err := FlipHorizontal(dst); err != nil {
			return err
		}
		return FlipVertical(dst)
	case 4: // mirror vertical
		if err := CopyRect(src, dst, 0, 0, 0, 0, src.Width(), src.Height()); err != nil {
			return err
		}
		return FlipVertical(dst)
	case 5: // transpose
		return Transpose(src, dst)
	case 6: // rotate 90 CW: transpose then mirror horizontal
		if err := Transpose(src, dst); err != nil {
			return err
		}
		return FlipHorizontal(dst)
	case 7: // transverse: transpose then rotate 180
		if err := Transpose(src, dst); err != nil {
			return err
		}
		if err := FlipHorizontal(dst); err != nil {
			return err
		}
		return FlipVertical(dst)
	case 8: // rotate 90 CCW: transpose then mirror vertical
		if err := Transpose(src, dst); err != nil {
			return err
		}
		return FlipVertical(dst)
	default:
		return ferr.New(ferr.InvalidArgument, "pixel.ApplyOrientation", fmt.Errorf("unknown EXIF orientation %d", o))
	}
}
