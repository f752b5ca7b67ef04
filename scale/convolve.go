package scale

import "github.com/imazen-go/imageflow/weights"

// convolveHorizontal is step 2 of render_to_canvas_1d: apply table along
// each row, producing a buffer of the same height and table.DestLen width.
func convolveHorizontal(src floatBuf, table *weights.Table) floatBuf {
	out := newFloatBuf(table.DestLen, src.h)
	for y := 0; y < src.h; y++ {
		srcBase := y * src.w
		dstBase := y * out.w
		for d, win := range table.Windows {
			var sb, sg, sr, sa float32
			for i, wgt := range win.Weights {
				idx := srcBase + win.Left + i
				sb += src.b[idx] * wgt
				sg += src.g[idx] * wgt
				sr += src.r[idx] * wgt
				sa += src.a[idx] * wgt
			}
			oi := dstBase + d
			out.b[oi], out.g[oi], out.r[oi], out.a[oi] = sb, sg, sr, sa
		}
	}
	return out
}

// convolveVertical is step 3 of render_to_canvas_1d: apply table along each
// column, producing a buffer of table.DestLen height and the same width.
func convolveVertical(src floatBuf, table *weights.Table) floatBuf {
	out := newFloatBuf(src.w, table.DestLen)
	for d, win := range table.Windows {
		dstBase := d * out.w
		for x := 0; x < src.w; x++ {
			var sb, sg, sr, sa float32
			for i, wgt := range win.Weights {
				idx := (win.Left+i)*src.w + x
				sb += src.b[idx] * wgt
				sg += src.g[idx] * wgt
				sr += src.r[idx] * wgt
				sa += src.a[idx] * wgt
			}
			oi := dstBase + x
			out.b[oi], out.g[oi], out.r[oi], out.a[oi] = sb, sg, sr, sa
		}
	}
	return out
}
