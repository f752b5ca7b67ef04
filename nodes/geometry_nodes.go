package nodes

import (
	"fmt"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/pixel"
)

func init() {
	Register(&Def{TypeName: "Crop", Estimate: cropEstimate, Execute: cropExecute})
	Register(&Def{TypeName: "FlipV", Estimate: copyEstimateFromParent, Execute: flipExecute(pixel.FlipVertical), Mutates: true})
	Register(&Def{TypeName: "FlipH", Estimate: copyEstimateFromParent, Execute: flipExecute(pixel.FlipHorizontal), Mutates: true})
	Register(&Def{TypeName: "Transpose", Estimate: swapEstimate, Execute: transposeExecute})
	Register(&Def{TypeName: "Rotate90", Estimate: swapEstimate, Execute: rotateExecute(pixel.Orientation(6))})
	Register(&Def{TypeName: "Rotate180", Estimate: copyEstimateFromParent, Execute: rotateExecute(pixel.Orientation(3))})
	Register(&Def{TypeName: "Rotate270", Estimate: swapEstimate, Execute: rotateExecute(pixel.Orientation(8))})
}

func cropParams(g *graph.Graph, id graph.NodeID) (*CropParams, error) {
	p, ok := g.Node(id).Params.(*CropParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.Crop", fmt.Errorf("node %s missing CropParams", id))
	}
	return p, nil
}

func cropEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := cropParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	pe := g.Node(parent).Estimate
	w, h := p.X2-p.X1, p.Y2-p.Y1
	if pe.Known && (p.X1 < 0 || p.Y1 < 0 || p.X2 > pe.Width || p.Y2 > pe.Height || w <= 0 || h <= 0) {
		return ferr.New(ferr.InvalidDimensions, "nodes.Crop.Estimate", fmt.Errorf("crop rect (%d,%d)-(%d,%d) invalid for %dx%d parent", p.X1, p.Y1, p.X2, p.Y2, pe.Width, pe.Height))
	}
	g.Node(id).Estimate = graph.FrameEstimate{Width: w, Height: h, Layout: pe.Layout, AlphaMeaningful: pe.AlphaMeaningful, Known: pe.Known}
	return nil
}

func cropExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := cropParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Crop.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	sub, err := srcWin.SubRect(p.X1, p.Y1, p.X2, p.Y2)
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

// swapEstimate is Estimate for nodes that swap width and height (transpose,
// 90/270 degree rotation).
func swapEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	pe := g.Node(parent).Estimate
	g.Node(id).Estimate = graph.FrameEstimate{Width: pe.Height, Height: pe.Width, Layout: pe.Layout, AlphaMeaningful: pe.AlphaMeaningful, Known: pe.Known}
	return nil
}

// flipExecute builds an Execute function for an in-place flip operation
// that mutates its Input parent's bitmap directly (spec §4.G: flips
// never change dimensions, so they take exclusive ownership rather than
// allocating a new bitmap).
func flipExecute(op func(*bitmap.Window) error) func(ExecEnv, *graph.Graph, graph.NodeID) error {
	return func(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
		parent, ok := singleParent(g, id)
		if !ok {
			return ferr.New(ferr.InvalidNodeConnections, "nodes.flip.Execute", fmt.Errorf("node %s has no input", id))
		}
		key := g.Node(parent).Result.BitmapKey
		win, err := env.Store().TryBorrowMut(key)
		if err != nil {
			return err
		}
		defer win.Close()
		if err := op(win); err != nil {
			return err
		}
		g.Node(id).Result = graph.NodeResult{Kind: graph.ResultConsumed, BitmapKey: key}
		return nil
	}
}

func transposeExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Transpose.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	srcBmp := srcWin.Bitmap()
	dstKey, err := env.Store().CreateU8(srcWin.Height(), srcWin.Width(), srcBmp.Layout(), srcBmp.AlphaMeaningful(), srcBmp.ColorSpace(), srcBmp.Compositing())
	if err != nil {
		return err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return err
	}
	defer dstWin.Close()
	if err := pixel.Transpose(srcWin, dstWin); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
	return nil
}

// rotateExecute builds an Execute function around pixel.ApplyOrientation
// for a fixed EXIF-style orientation code.
func rotateExecute(o pixel.Orientation) func(ExecEnv, *graph.Graph, graph.NodeID) error {
	return func(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
		parent, ok := singleParent(g, id)
		if !ok {
			return ferr.New(ferr.InvalidNodeConnections, "nodes.rotate.Execute", fmt.Errorf("node %s has no input", id))
		}
		srcKey := g.Node(parent).Result.BitmapKey
		dstKey, err := applyExifRotation(env, srcKey, int(o))
		if err != nil {
			return err
		}
		g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
		return nil
	}
}

// applyExifRotation allocates a fresh bitmap with the orientation o's
// transform applied to src, used both by the rotate/flip node types and by
// Decode when an EXIF orientation tag says the frame's own pixels should
// be normalized upright.
func applyExifRotation(env ExecEnv, srcKey bitmap.Key, o int) (bitmap.Key, error) {
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return 0, err
	}
	defer srcWin.Close()
	srcBmp := srcWin.Bitmap()
	w, h := srcWin.Width(), srcWin.Height()
	if o >= 5 {
		w, h = h, w
	}
	dstKey, err := env.Store().CreateU8(w, h, srcBmp.Layout(), srcBmp.AlphaMeaningful(), srcBmp.ColorSpace(), srcBmp.Compositing())
	if err != nil {
		return 0, err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return 0, err
	}
	defer dstWin.Close()
	if err := pixel.ApplyOrientation(srcWin, dstWin, pixel.Orientation(o)); err != nil {
		return 0, err
	}
	return dstKey, nil
}
