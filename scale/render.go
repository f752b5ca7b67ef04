package scale

import (
	"fmt"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/colorspace"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/weights"
)

// Options configures a single Render2D call (spec §4.D). SharpenPercent is
// a goal, not a radius: 0 disables step 4 entirely.
type Options struct {
	Filter         weights.Filter
	SharpenPercent float64
	Colors         *colorspace.ColorContext
}

// DefaultOptions returns Robidoux filtering, no sharpening, sRGB color.
func DefaultOptions() Options {
	return Options{Filter: weights.Robidoux, Colors: colorspace.NewSRGBContext()}
}

// Render2D resamples src into dst via the fixed five-step composite
// (render_to_canvas_1d, spec §4.D):
//  1. convert src to premultiplied linear floatspace
//  2. convolve horizontally to dst's width
//  3. convolve vertically to dst's height
//  4. optionally sharpen
//  5. convert back to sRGB bytes and composite into dst
//
// Both src and dst must already be borrowed BGRA32 windows; Render2D does
// not itself touch the bitmap store.
func Render2D(src, dst *bitmap.Window, opts Options) error {
	if dst.Width() <= 0 || dst.Height() <= 0 {
		return ferr.New(ferr.InvalidDimensions, "scale.Render2D", fmt.Errorf("target dimensions %dx%d must be positive", dst.Width(), dst.Height()))
	}
	if src.Width() <= 0 || src.Height() <= 0 {
		return ferr.New(ferr.InvalidDimensions, "scale.Render2D", fmt.Errorf("source dimensions %dx%d must be positive", src.Width(), src.Height()))
	}
	ctx := opts.Colors
	if ctx == nil {
		ctx = colorspace.NewSRGBContext()
	}

	floatSrc, err := toFloatspace(src, ctx)
	if err != nil {
		return ferr.Wrap(ferr.InvalidArgument, "scale.Render2D.toFloatspace", err)
	}

	hTable, err := weights.Build(src.Width(), dst.Width(), opts.Filter)
	if err != nil {
		return err
	}
	horiz := convolveHorizontal(floatSrc, hTable)

	vTable, err := weights.Build(src.Height(), dst.Height(), opts.Filter)
	if err != nil {
		return err
	}
	vert := convolveVertical(horiz, vTable)

	if opts.SharpenPercent > 0 {
		applySharpen(vert, opts.SharpenPercent)
	}

	return fromFloatspace(vert, dst, ctx)
}
