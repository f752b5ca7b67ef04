package nodes

import (
	"fmt"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/pixel"
)

func init() {
	Register(&Def{TypeName: "CreateCanvas", Estimate: createCanvasEstimate, Execute: createCanvasExecute})
	Register(&Def{TypeName: "FillRect", Estimate: copyEstimateFromParent, Execute: fillRectExecute, Mutates: true})
	Register(&Def{TypeName: "CopyRectToCanvas", Estimate: copyRectToCanvasEstimate, Execute: copyRectToCanvasExecute, Mutates: true})
	Register(&Def{TypeName: "ExpandCanvas", Estimate: expandCanvasEstimate, Execute: expandCanvasExecute})
	Register(&Def{TypeName: "EnableTransparency", Estimate: enableTransparencyEstimate, FlattenPre: enableTransparencyFlatten, Execute: enableTransparencyExecute})
}

// enableTransparencyEstimate keeps the parent's dimensions but reports the
// BGRA layout with meaningful alpha that enableTransparencyExecute produces.
func enableTransparencyEstimate(_ ExecEnv, g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	est := g.Node(parent).Estimate
	est.Layout, est.AlphaMeaningful = bitmap.BGRA, true
	g.Node(id).Estimate = est
	return nil
}

func createCanvasEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*CreateCanvasParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.CreateCanvas", fmt.Errorf("node %s missing CreateCanvasParams", id))
	}
	g.Node(id).Estimate = graph.FrameEstimate{Width: p.Width, Height: p.Height, Layout: p.Layout, AlphaMeaningful: p.Color.A != 255, Known: true}
	return nil
}

func createCanvasExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p := g.Node(id).Params.(*CreateCanvasParams)
	compositing := bitmap.Compositing{Mode: bitmap.ReplaceSelf}
	key, err := env.Store().CreateU8(p.Width, p.Height, p.Layout, p.Color.A != 255, bitmap.StandardRGB, compositing)
	if err != nil {
		return err
	}
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	if err := pixel.FillRect(win, 0, 0, p.Width, p.Height, p.Color); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
	return nil
}

func fillRectExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*FillRectParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.FillRect", fmt.Errorf("node %s missing FillRectParams", id))
	}
	parent, ok := canvasParentOrSingle(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.FillRect.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	win, err := env.Store().TryBorrowMut(key)
	if err != nil {
		return err
	}
	defer win.Close()
	if err := pixel.FillRect(win, p.X1, p.Y1, p.X2-p.X1, p.Y2-p.Y1, p.Color); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
	return nil
}

// canvasParentOrSingle prefers a Canvas-kind inbound edge (the bitmap a
// mutate node is licensed to write into); if none exists it falls back to
// the node's single Input parent, the shape a node gets when used as a
// simple one-parent mutator (spec §4.G).
func canvasParentOrSingle(g *graph.Graph, id graph.NodeID) (graph.NodeID, bool) {
	if p, ok := canvasParent(g, id); ok {
		return p, true
	}
	return singleParent(g, id)
}

func copyRectToCanvasEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	canvas, ok := canvasParent(g, id)
	if !ok {
		return nil
	}
	g.Node(id).Estimate = g.Node(canvas).Estimate
	return nil
}

func copyRectToCanvasExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*CopyRectToCanvasParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.CopyRectToCanvas", fmt.Errorf("node %s missing CopyRectToCanvasParams", id))
	}
	canvas, ok := canvasParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.CopyRectToCanvas.Execute", fmt.Errorf("node %s has no Canvas parent", id))
	}
	src, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.CopyRectToCanvas.Execute", fmt.Errorf("node %s has no Input parent", id))
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
	if err := pixel.CopyRect(srcWin, canvasWin, p.FromX, p.FromY, p.ToX, p.ToY, p.Width, p.Height); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: canvasKey}
	return nil
}

func expandCanvasEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*ExpandCanvasParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.ExpandCanvas", fmt.Errorf("node %s missing ExpandCanvasParams", id))
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	pe := g.Node(parent).Estimate
	g.Node(id).Estimate = graph.FrameEstimate{
		Width:  pe.Width + p.Left + p.Right,
		Height: pe.Height + p.Top + p.Bottom,
		Layout: pe.Layout, AlphaMeaningful: pe.AlphaMeaningful || p.Color.A != 255, Known: pe.Known,
	}
	return nil
}

func expandCanvasExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p := g.Node(id).Params.(*ExpandCanvasParams)
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.ExpandCanvas.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	srcBmp := srcWin.Bitmap()
	w := srcWin.Width() + p.Left + p.Right
	h := srcWin.Height() + p.Top + p.Bottom
	alphaMeaningful := srcBmp.AlphaMeaningful() || p.Color.A != 255
	dstKey, err := env.Store().CreateU8(w, h, srcBmp.Layout(), alphaMeaningful, srcBmp.ColorSpace(), srcBmp.Compositing())
	if err != nil {
		return err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return err
	}
	defer dstWin.Close()
	if err := pixel.FillRect(dstWin, 0, 0, w, h, p.Color); err != nil {
		return err
	}
	if err := pixel.CopyRect(srcWin, dstWin, 0, 0, p.Left, p.Top, srcWin.Width(), srcWin.Height()); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
	return nil
}

// enableTransparencyFlatten drops the node entirely when its parent
// already has a meaningful alpha channel, via
// graph.DeleteNodeAndSnapTogether (spec §4.G's flattening example).
func enableTransparencyFlatten(g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	if g.Node(parent).Estimate.Known && g.Node(parent).Estimate.AlphaMeaningful {
		return g.DeleteNodeAndSnapTogether(id)
	}
	return nil
}

func enableTransparencyExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, _ := g.Node(id).Params.(*EnableTransparencyParams)
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.EnableTransparency.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	srcBmp := srcWin.Bitmap()
	matte := bitmap.Transparent
	if p != nil {
		matte = p.Matte
	}
	compositing := bitmap.Compositing{Mode: bitmap.BlendWithMatte, Matte: matte}
	dstKey, err := env.Store().CreateU8(srcWin.Width(), srcWin.Height(), bitmap.BGRA, true, srcBmp.ColorSpace(), compositing)
	if err != nil {
		return err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return err
	}
	defer dstWin.Close()
	if err := pixel.CopyRect(srcWin, dstWin, 0, 0, 0, 0, srcWin.Width(), srcWin.Height()); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
	return nil
}
