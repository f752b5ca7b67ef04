// Package scale implements imageflow's resampling kernels (spec §4.D): 1D
// horizontal/vertical convolution over premultiplied-alpha floatspace
// buffers, and the fixed five-step render_to_canvas_1d composite.
package scale

import (
	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/colorspace"
)

// floatBuf is an intermediate BGRA floatspace buffer: color channels are
// premultiplied by alpha and expressed in linear light; alpha itself is
// stored unpremultiplied and untransformed, exactly as imageflow_core's
// render_to_canvas1d pipeline operates (graphics/scaling.rs).
type floatBuf struct {
	w, h int
	// four float32 planes, row-major, each w*h long: b, g, r, a.
	b, g, r, a []float32
}

func newFloatBuf(w, h int) floatBuf {
	n := w * h
	return floatBuf{w: w, h: h, b: make([]float32, n), g: make([]float32, n), r: make([]float32, n), a: make([]float32, n)}
}

// toFloatspace is step 1 of render_to_canvas_1d: convert a BGRA32 u8
// window to premultiplied linear-light floatspace using ctx's LUT.
func toFloatspace(src *bitmap.Window, ctx *colorspace.ColorContext) (floatBuf, error) {
	w, h := src.Width(), src.Height()
	out := newFloatBuf(w, h)
	hasAlpha := src.Layout().HasAlpha()
	bpp := src.Layout().BytesPerPixel()
	for y := 0; y < h; y++ {
		row, err := src.RowBytes(y)
		if err != nil {
			return floatBuf{}, err
		}
		base := y * w
		for x := 0; x < w; x++ {
			o := x * bpp
			var a float32 = 1
			if hasAlpha {
				a = float32(row[o+3]) / 255.0
			}
			bl := ctx.ByteToLinear(row[o+0])
			gl := ctx.ByteToLinear(row[o+1])
			rl := ctx.ByteToLinear(row[o+2])
			idx := base + x
			out.b[idx] = bl * a
			out.g[idx] = gl * a
			out.r[idx] = rl * a
			out.a[idx] = a
		}
	}
	return out, nil
}

// fromFloatspace is step 5 of render_to_canvas_1d: un-premultiply, convert
// back to sRGB bytes, and write into dst according to dst's compositing
// mode: BlendWithMatte blends over the matte color; ReplaceSelf and
// BlendWithSelf both overwrite dst's pixels, so BlendWithSelf does not
// blend with dst's existing contents.
func fromFloatspace(src floatBuf, dst *bitmap.Window, ctx *colorspace.ColorContext) error {
	if src.w != dst.Width() || src.h != dst.Height() {
		panic("fromFloatspace: dimension mismatch")
	}
	hasAlpha := dst.Layout().HasAlpha()
	bpp := dst.Layout().BytesPerPixel()
	compositing := dst.Compositing()
	for y := 0; y < src.h; y++ {
		row, err := dst.RowBytes(y)
		if err != nil {
			return err
		}
		base := y * src.w
		for x := 0; x < src.w; x++ {
			idx := base + x
			a := src.a[idx]
			var bl, gl, rl float32
			// Divide-by-zero guard (spec §4.D): alpha below 1/255 is
			// treated as fully transparent; unpremultiplying near-zero
			// alpha would otherwise blow up rounding error or divide by
			// zero.
			if a >= 1.0/255.0 {
				bl = src.b[idx] / a
				gl = src.g[idx] / a
				rl = src.r[idx] / a
			}
			o := x * bpp
			switch compositing.Mode {
			case bitmap.BlendWithMatte:
				matte := compositing.Matte
				ma := float32(matte.A) / 255.0
				outA := a + ma*(1-a)
				row[o+0] = blendChannel(ctx.LinearToByte(bl), matte.B, a, ma, outA)
				row[o+1] = blendChannel(ctx.LinearToByte(gl), matte.G, a, ma, outA)
				row[o+2] = blendChannel(ctx.LinearToByte(rl), matte.R, a, ma, outA)
				if hasAlpha {
					row[o+3] = 255
				}
			default: // ReplaceSelf and BlendWithSelf write straight-alpha bytes
				row[o+0] = ctx.LinearToByte(bl)
				row[o+1] = ctx.LinearToByte(gl)
				row[o+2] = ctx.LinearToByte(rl)
				if hasAlpha {
					row[o+3] = uint8(a*255 + 0.5)
				}
			}
		}
	}
	return nil
}

func blendChannel(src, matte uint8, a, ma, outA float32) uint8 {
	if outA <= 0 {
		return 0
	}
	v := (float32(src)*a + float32(matte)*ma*(1-a)) / outA
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}
