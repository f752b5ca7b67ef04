package nodes

import (
	"fmt"
	"math"

	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/pixel"
)

func init() {
	Register(&Def{TypeName: "ColorFilterSrgb", Estimate: copyEstimateFromParent, Execute: colorFilterExecute, Mutates: true})
	Register(&Def{TypeName: "RoundImageCorners", Estimate: copyEstimateFromParent, FlattenPre: roundCornersFlatten, Execute: roundCornersExecute, Mutates: true})
	Register(&Def{TypeName: "WhiteBalanceHistogramAreaThresholdSrgb", Estimate: copyEstimateFromParent, Execute: whiteBalanceExecute, Mutates: true})
	Register(&Def{TypeName: "CropWhitespace", Estimate: copyEstimateFromParent, Execute: cropWhitespaceExecute})
}

func colorFilterExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*ColorFilterSrgbParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.ColorFilterSrgb", fmt.Errorf("node %s missing ColorFilterSrgbParams", id))
	}
	parent, ok := canvasParentOrSingle(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.ColorFilterSrgb.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	if err := p.Matrix.Apply(win); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
	return nil
}

// Preset color matrices named in spec §4.J's ColorFilterSrgb node.
var (
	GrayscaleMatrix = pixel.ColorMatrix{
		{0.299, 0.587, 0.114, 0, 0},
		{0.299, 0.587, 0.114, 0, 0},
		{0.299, 0.587, 0.114, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 1},
	}
	SepiaMatrix = pixel.ColorMatrix{
		{0.131, 0.534, 0.272, 0, 0},
		{0.168, 0.686, 0.349, 0, 0},
		{0.189, 0.769, 0.393, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 1},
	}
	InvertMatrix = pixel.ColorMatrix{
		{-1, 0, 0, 0, 1},
		{0, -1, 0, 0, 1},
		{0, 0, -1, 0, 1},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 1},
	}
)

// AlphaMatrix scales alpha by factor, a common preset for soft watermarks.
func AlphaMatrix(factor float64) pixel.ColorMatrix {
	return pixel.ColorMatrix{
		{1, 0, 0, 0, 0},
		{0, 1, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, factor, 0},
		{0, 0, 0, 0, 1},
	}
}

func roundCornersParams(g *graph.Graph, id graph.NodeID) (*RoundImageCornersParams, error) {
	p, ok := g.Node(id).Params.(*RoundImageCornersParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.RoundImageCorners", fmt.Errorf("node %s missing RoundImageCornersParams", id))
	}
	return p, nil
}

// roundCornersFlatten ensures the node it runs on has meaningful alpha by
// inserting an EnableTransparency node ahead of it when needed, since
// clearing corner pixels to transparent requires an alpha channel (spec
// §4.E).
func roundCornersFlatten(g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	pe := g.Node(parent).Estimate
	if pe.Known && pe.AlphaMeaningful {
		return nil
	}
	_, err := g.InsertNodeBetween(parent, id, "EnableTransparency", &EnableTransparencyParams{})
	return err
}

func roundCornersExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := roundCornersParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := canvasParentOrSingle(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.RoundImageCorners.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	radius := int(p.RadiusPercent / 100 * math.Min(float64(win.Width()), float64(win.Height())))
	if err := pixel.RoundedCorners(win, radius); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
	return nil
}

// whiteBalanceExecute approximates imageflow_core's histogram-area
// threshold white balance: it samples the border region (the "area" of
// the histogram least likely to contain subject matter) to estimate a
// gray-world illuminant, then scales each channel so the border averages
// to neutral gray, clipped at the Threshold so a uniformly-colored
// border doesn't get oversaturated.
func whiteBalanceExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*WhiteBalanceParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.WhiteBalance", fmt.Errorf("node %s missing WhiteBalanceParams", id))
	}
	parent, ok := canvasParentOrSingle(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.WhiteBalance.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	bpp := win.Layout().BytesPerPixel()
	var sumR, sumG, sumB float64
	var n int
	border := maxInt(1, minInt(win.Width(), win.Height())/20)
	for y := 0; y < win.Height(); y++ {
		if y >= border && y < win.Height()-border {
			continue
		}
		row, rerr := win.RowBytes(y)
		if rerr != nil {
			return rerr
		}
		for x := 0; x < win.Width(); x++ {
			o := x * bpp
			sumB += float64(row[o+0])
			sumG += float64(row[o+1])
			sumR += float64(row[o+2])
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avgR, avgG, avgB := sumR/float64(n), sumG/float64(n), sumB/float64(n)
	gray := (avgR + avgG + avgB) / 3
	if gray <= 0 {
		return nil
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	clampGain := func(avg float64) float64 {
		gain := gray / math.Max(avg, 1)
		if gain > threshold {
			gain = threshold
		}
		if gain < 1/threshold {
			gain = 1 / threshold
		}
		return gain
	}
	gainR, gainG, gainB := clampGain(avgR), clampGain(avgG), clampGain(avgB)
	matrix := pixel.ColorMatrix{
		{gainR, 0, 0, 0, 0},
		{0, gainG, 0, 0, 0},
		{0, 0, gainB, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 1},
	}
	if err := matrix.Apply(win); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// cropWhitespaceExecute scans inward from each edge for rows/columns
// whose pixels are all within Threshold of white, and crops them away,
// approximating imageflow_core's crop_whitespace (SPEC_FULL.md
// "Supplemented features").
func cropWhitespaceExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*CropWhitespaceParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.CropWhitespace", fmt.Errorf("node %s missing CropWhitespaceParams", id))
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.CropWhitespace.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	bpp := srcWin.Layout().BytesPerPixel()
	w, h := srcWin.Width(), srcWin.Height()
	isWhiteRow := func(y int) (bool, error) {
		row, rerr := srcWin.RowBytes(y)
		if rerr != nil {
			return false, rerr
		}
		for x := 0; x < w; x++ {
			o := x * bpp
			if 255-int(row[o]) > p.Threshold || 255-int(row[o+1]) > p.Threshold || 255-int(row[o+2]) > p.Threshold {
				return false, nil
			}
		}
		return true, nil
	}
	top, bottom := 0, h
	for top < bottom {
		white, werr := isWhiteRow(top)
		if werr != nil {
			return werr
		}
		if !white {
			break
		}
		top++
	}
	for bottom > top {
		white, werr := isWhiteRow(bottom - 1)
		if werr != nil {
			return werr
		}
		if !white {
			break
		}
		bottom--
	}
	left, right := 0, w
	isWhiteCol := func(x int) (bool, error) {
		for y := top; y < bottom; y++ {
			row, rerr := srcWin.RowBytes(y)
			if rerr != nil {
				return false, rerr
			}
			o := x * bpp
			if 255-int(row[o]) > p.Threshold || 255-int(row[o+1]) > p.Threshold || 255-int(row[o+2]) > p.Threshold {
				return false, nil
			}
		}
		return true, nil
	}
	for left < right {
		white, werr := isWhiteCol(left)
		if werr != nil {
			return werr
		}
		if !white {
			break
		}
		left++
	}
	for right > left {
		white, werr := isWhiteCol(right - 1)
		if werr != nil {
			return werr
		}
		if !white {
			break
		}
		right--
	}
	left = maxInt(0, left-p.Padding)
	top = maxInt(0, top-p.Padding)
	right = minInt(w, right+p.Padding)
	bottom = minInt(h, bottom+p.Padding)
	if right <= left || bottom <= top {
		left, top, right, bottom = 0, 0, w, h
	}
	sub, err := srcWin.SubRect(left, top, right, bottom)
	if err != nil {
		return err
	}
	srcBmp := srcWin.Bitmap()
	dstKey, err := env.Store().CreateU8(sub.Width(), sub.Height(), srcBmp.Layout(), srcBmp.AlphaMeaningful(), srcBmp.ColorSpace(), srcBmp.Compositing())
	if err != nil {
		return err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return err
	}
	defer dstWin.Close()
	if err := pixel.CopyRect(sub, dstWin, 0, 0, 0, 0, sub.Width(), sub.Height()); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
	return nil
}
