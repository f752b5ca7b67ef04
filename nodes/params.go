package nodes

import (
	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/pixel"
	"github.com/imazen-go/imageflow/weights"
)

// DecodeParams is Decode's node.Params (spec §4.J).
type DecodeParams struct {
	IoID             string
	DownscaleHint    *struct{ Width, Height int }
	IgnoreColorProfile bool
}

// EncodeParams is Encode's node.Params.
type EncodeParams struct {
	IoID    string
	Format  codec.Format
	Options codec.EncodeOptions
}

// CropParams is Crop's node.Params: a pixel rectangle [X1,Y1)-[X2,Y2)
// relative to its parent's output.
type CropParams struct {
	X1, Y1, X2, Y2 int
}

// RotateParams carries no fields; Rotate90/180/270 are distinguished by
// node TypeName alone.
type RotateParams struct{}

// CreateCanvasParams is CreateCanvas's node.Params.
type CreateCanvasParams struct {
	Width, Height int
	Layout        bitmap.PixelLayout
	Color         bitmap.Color
}

// FillRectParams is FillRect's node.Params: a rectangle on the Canvas
// parent, filled with Color.
type FillRectParams struct {
	X1, Y1, X2, Y2 int
	Color          bitmap.Color
}

// CopyRectToCanvasParams is CopyRectToCanvas's node.Params: copies a
// region of the Input parent onto the Canvas parent at (ToX,ToY).
type CopyRectToCanvasParams struct {
	FromX, FromY, Width, Height int
	ToX, ToY                    int
}

// ExpandCanvasParams is ExpandCanvas's node.Params.
type ExpandCanvasParams struct {
	Left, Top, Right, Bottom int
	Color                    bitmap.Color
}

// Resample2DParams is Resample2D's node.Params (spec §4.D).
type Resample2DParams struct {
	Width, Height  int
	Filter         weights.Filter
	SharpenPercent float64
}

// ConstrainMode selects Constrain's fitting strategy (spec §4.J).
type ConstrainMode string

const (
	ConstrainWithin    ConstrainMode = "within"
	ConstrainFit       ConstrainMode = "fit"
	ConstrainFitCrop   ConstrainMode = "fit_crop"
	ConstrainDistort   ConstrainMode = "distort"
	ConstrainAspectPad ConstrainMode = "pad"
)

// ConstrainParams is Constrain's node.Params: a composite node expanded by
// FlattenPre into Resample2D (+Crop / +ExpandCanvas depending on Mode).
type ConstrainParams struct {
	Width, Height int
	Mode          ConstrainMode
	Filter        weights.Filter
	PadColor      bitmap.Color
}

// ColorFilterSrgbParams is ColorFilterSrgb's node.Params: applies a fixed
// 5x5 matrix (grayscale, sepia, invert, alpha scaling, ...) in sRGB space.
type ColorFilterSrgbParams struct {
	Matrix pixel.ColorMatrix
}

// RoundImageCornersParams is RoundImageCorners's node.Params.
type RoundImageCornersParams struct {
	RadiusPercent float64
}

// EnableTransparencyParams is EnableTransparency's node.Params.
type EnableTransparencyParams struct {
	Matte bitmap.Color
}

// WhiteBalanceParams is WhiteBalanceHistogramAreaThresholdSrgb's
// node.Params.
type WhiteBalanceParams struct {
	Threshold float64
}

// CropWhitespaceParams is CropWhitespace's node.Params.
type CropWhitespaceParams struct {
	Threshold int
	Padding   int
}

// WatermarkParams is Watermark's node.Params: a composite node that decodes
// a second image from IoID and composites it over its Input parent.
type WatermarkParams struct {
	IoID               string
	Gravity            string // "center", "top_left", "bottom_right", ...
	OpacityPercent     float64
	FitBoxPercent      float64 // watermark's max size as a percentage of the canvas's shorter side (default 20)
	MinCanvasWidth     int
	MinCanvasHeight    int
}

// DrawImageExactParams is DrawImageExact's node.Params: composites the
// Input parent onto the Canvas parent at an exact pixel rectangle.
type DrawImageExactParams struct {
	X, Y, Width, Height int
	OpacityPercent      float64
}

// CommandStringParams is CommandString's node.Params: an ImageResizer4
// querystring expanded by FlattenPre into a primitive chain via
// CommandStringParser (set by package riapi).
type CommandStringParams struct {
	Querystring string
}

// WatermarkRedDotParams is WatermarkRedDot's node.Params: places a small
// solid-red debug marker, used by integration tests to confirm watermark
// placement without shipping a real image fixture.
type WatermarkRedDotParams struct {
	X, Y, Size int
}
