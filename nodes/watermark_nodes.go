package nodes

import (
	"fmt"
	"math"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/pixel"
)

func init() {
	Register(&Def{TypeName: "Watermark", Estimate: copyEstimateFromParent, FlattenPre: watermarkFlatten})
	Register(&Def{TypeName: "DrawImageExact", Estimate: copyEstimateFromParent, Execute: drawImageExactExecute, Mutates: true})
	Register(&Def{TypeName: "WatermarkRedDot", Estimate: copyEstimateFromParent, Execute: watermarkRedDotExecute, Mutates: true})
}

// watermarkFlatten expands Watermark into Decode(IoID)+Resample2D (sized
// to FitBoxPercent of the canvas) +DrawImageExact (positioned per
// Gravity), mirroring the way imageflow_core's watermark.rs desugars a
// single watermark node into a decode/resample/draw sub-chain (spec
// §4.J, SPEC_FULL.md "Supplemented features").
func watermarkFlatten(g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*WatermarkParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.Watermark", fmt.Errorf("node %s missing WatermarkParams", id))
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Watermark.Flatten", fmt.Errorf("node %s has no input", id))
	}
	canvasEstimate := g.Node(parent).Estimate
	if !canvasEstimate.Known {
		return ferr.New(ferr.InvalidState, "nodes.Watermark.Flatten", fmt.Errorf("node %s's canvas dimensions are not yet known", id))
	}

	decodeID, err := g.AddNode("Decode", &DecodeParams{IoID: p.IoID})
	if err != nil {
		return err
	}

	fitBox := p.FitBoxPercent
	if fitBox <= 0 {
		fitBox = 20
	}
	shorter := math.Min(float64(canvasEstimate.Width), float64(canvasEstimate.Height))
	maxSide := shorter * fitBox / 100
	resampleID, err := g.AddNode("Resample2D", &Resample2DParams{Width: int(maxSide), Height: int(maxSide)})
	if err != nil {
		return err
	}
	if err := g.AddEdge(decodeID, resampleID, graph.Input); err != nil {
		return err
	}

	opacityID := resampleID
	if p.OpacityPercent > 0 && p.OpacityPercent < 100 {
		opID, err := g.AddNode("ColorFilterSrgb", &ColorFilterSrgbParams{Matrix: AlphaMatrix(p.OpacityPercent / 100)})
		if err != nil {
			return err
		}
		if err := g.AddEdge(resampleID, opID, graph.Input); err != nil {
			return err
		}
		opacityID = opID
	}

	x, y := gravityPosition(p.Gravity, canvasEstimate.Width, canvasEstimate.Height, int(maxSide), int(maxSide))
	drawID, err := g.AddNode("DrawImageExact", &DrawImageExactParams{X: x, Y: y, Width: int(maxSide), Height: int(maxSide)})
	if err != nil {
		return err
	}
	if err := g.AddEdge(opacityID, drawID, graph.Input); err != nil {
		return err
	}
	// The original parent->id edge represented the canvas being
	// watermarked; re-point every child of id to drawID before removing
	// id, then connect parent to drawID as a Canvas edge (not Input: the
	// original edge's kind doesn't carry over because DrawImageExact's
	// contract requires a Canvas-kind parent to mutate).
	for _, e := range g.OutEdges(id) {
		if err := g.AddEdge(drawID, e.Child, e.Kind); err != nil {
			return err
		}
	}
	if err := g.AddEdge(parent, drawID, graph.Canvas); err != nil {
		return err
	}
	return g.RemoveNode(id)
}

// gravityPosition computes a watermark's top-left placement within a
// canvasW x canvasH canvas for the named gravity, defaulting to center
// when unrecognized (imageflow's ImageResizer4 compatibility set uses the
// same nine-point gravity names).
func gravityPosition(gravity string, canvasW, canvasH, w, h int) (int, int) {
	const margin = 0
	switch gravity {
	case "top_left":
		return margin, margin
	case "top":
		return (canvasW - w) / 2, margin
	case "top_right":
		return canvasW - w - margin, margin
	case "left":
		return margin, (canvasH - h) / 2
	case "right":
		return canvasW - w - margin, (canvasH - h) / 2
	case "bottom_left":
		return margin, canvasH - h - margin
	case "bottom":
		return (canvasW - w) / 2, canvasH - h - margin
	case "bottom_right":
		return canvasW - w - margin, canvasH - h - margin
	default: // "center"
		return (canvasW - w) / 2, (canvasH - h) / 2
	}
}

func drawImageExactExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*DrawImageExactParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.DrawImageExact", fmt.Errorf("node %s missing DrawImageExactParams", id))
	}
	canvas, ok := canvasParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.DrawImageExact.Execute", fmt.Errorf("node %s has no Canvas parent", id))
	}
	src, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.DrawImageExact.Execute", fmt.Errorf("node %s has no Input parent", id))
	}
	canvasKey := g.Node(canvas).Result.BitmapKey
	srcKey := g.Node(src).Result.BitmapKey
	canvasWin, err := env.Store().TryBorrowMut(canvasKey)
	if err != nil {
		return err
	}
	defer canvasWin.Close()
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()

	x, y, w, h := clampRectToCanvas(p.X, p.Y, p.Width, p.Height, canvasWin.Width(), canvasWin.Height())
	if w <= 0 || h <= 0 {
		g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: canvasKey}
		return nil
	}
	if p.OpacityPercent > 0 && p.OpacityPercent < 100 {
		if err := compositeWithOpacity(srcWin, canvasWin, x, y, w, h, p.OpacityPercent/100); err != nil {
			return err
		}
	} else if err := pixel.CopyRect(srcWin, canvasWin, 0, 0, x, y, w, h); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: canvasKey}
	return nil
}

func clampRectToCanvas(x, y, w, h, canvasW, canvasH int) (int, int, int, int) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > canvasW {
		w = canvasW - x
	}
	if y+h > canvasH {
		h = canvasH - y
	}
	return x, y, w, h
}

// compositeWithOpacity alpha-blends a w x h region of src onto dst at
// (x,y), scaling src's own alpha by opacity (0..1). DrawImageExact uses it
// when its own OpacityPercent is set; Watermark's expansion fades the
// watermark with a ColorFilterSrgb step instead and leaves that unset.
func compositeWithOpacity(src, dst *bitmap.Window, x, y, w, h int, opacity float64) error {
	srcBpp := src.Layout().BytesPerPixel()
	dstBpp := dst.Layout().BytesPerPixel()
	for row := 0; row < h; row++ {
		srcRow, err := src.RowBytes(row)
		if err != nil {
			return err
		}
		dstRow, err := dst.RowBytes(y + row)
		if err != nil {
			return err
		}
		for col := 0; col < w; col++ {
			so := col * srcBpp
			do := (x + col) * dstBpp
			a := opacity
			if src.Layout().HasAlpha() {
				a *= float64(srcRow[so+3]) / 255
			}
			dstRow[do+0] = blendChannel(dstRow[do+0], srcRow[so+0], a)
			dstRow[do+1] = blendChannel(dstRow[do+1], srcRow[so+1], a)
			dstRow[do+2] = blendChannel(dstRow[do+2], srcRow[so+2], a)
		}
	}
	return nil
}

func blendChannel(dst, src uint8, a float64) uint8 {
	v := float64(dst)*(1-a) + float64(src)*a
	return clamp255(v)
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

// watermarkRedDotExecute paints a solid red Size x Size square at (X,Y),
// a minimal debug marker used by tests to confirm watermark placement
// geometry without needing an image fixture.
func watermarkRedDotExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*WatermarkRedDotParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.WatermarkRedDot", fmt.Errorf("node %s missing WatermarkRedDotParams", id))
	}
	parent, ok := canvasParentOrSingle(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.WatermarkRedDot.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	x, y, w, h := clampRectToCanvas(p.X, p.Y, p.Size, p.Size, win.Width(), win.Height())
	if w > 0 && h > 0 {
		if err := pixel.FillRect(win, x, y, w, h, bitmap.Color{R: 255, A: 255}); err != nil {
			return err
		}
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
	return nil
}
