package nodes

import (
	"fmt"
	"math"

	"github.com/imazen-go/imageflow/colorspace"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/scale"
)

func init() {
	Register(&Def{TypeName: "Resample2D", Estimate: resample2DEstimate, Execute: resample2DExecute})
	Register(&Def{TypeName: "Constrain", Estimate: constrainEstimate, FlattenPre: constrainFlatten})
}

func resample2DParams(g *graph.Graph, id graph.NodeID) (*Resample2DParams, error) {
	p, ok := g.Node(id).Params.(*Resample2DParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.Resample2D", fmt.Errorf("node %s missing Resample2DParams", id))
	}
	return p, nil
}

func resample2DEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := resample2DParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	pe := graph.FrameEstimate{}
	if ok {
		pe = g.Node(parent).Estimate
	}
	g.Node(id).Estimate = graph.FrameEstimate{Width: p.Width, Height: p.Height, Layout: pe.Layout, AlphaMeaningful: pe.AlphaMeaningful, Known: true}
	return nil
}

func resample2DExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := resample2DParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Resample2D.Execute", fmt.Errorf("node %s has no input", id))
	}
	srcKey := g.Node(parent).Result.BitmapKey
	srcWin, err := env.Store().TryBorrow(srcKey)
	if err != nil {
		return err
	}
	defer srcWin.Close()
	srcBmp := srcWin.Bitmap()
	dstKey, err := env.Store().CreateU8(p.Width, p.Height, srcBmp.Layout(), srcBmp.AlphaMeaningful(), srcBmp.ColorSpace(), srcBmp.Compositing())
	if err != nil {
		return err
	}
	dstWin, err := env.Store().TryBorrowMut(dstKey)
	if err != nil {
		return err
	}
	defer dstWin.Close()
	filter := p.Filter
	if filter == "" {
		filter = scale.DefaultOptions().Filter
	}
	opts := scale.Options{Filter: filter, SharpenPercent: p.SharpenPercent, Colors: colorspace.NewSRGBContext()}
	if err := scale.Render2D(srcWin, dstWin, opts); err != nil {
		return err
	}
	g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: dstKey}
	return nil
}

func constrainParams(g *graph.Graph, id graph.NodeID) (*ConstrainParams, error) {
	p, ok := g.Node(id).Params.(*ConstrainParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.Constrain", fmt.Errorf("node %s missing ConstrainParams", id))
	}
	return p, nil
}

// constrainPlan computes the same geometry constrainEstimate and
// constrainFlatten both need: the resample target size and, for modes
// that crop or pad, the extra geometry node required.
type constrainPlan struct {
	resampleW, resampleH int
	cropRect             *[4]int // x1,y1,x2,y2 on the source, applied before resampling, fit_crop only
	padRect              *[4]int // left,top,right,bottom, applied after resampling, pad only
}

func planConstrain(p *ConstrainParams, srcW, srcH int) constrainPlan {
	targetW, targetH := float64(p.Width), float64(p.Height)
	srcWf, srcHf := float64(srcW), float64(srcH)
	switch p.Mode {
	case ConstrainWithin, "":
		scaleFactor := math.Min(targetW/srcWf, targetH/srcHf)
		if scaleFactor > 1 {
			scaleFactor = 1
		}
		return constrainPlan{resampleW: round(srcWf * scaleFactor), resampleH: round(srcHf * scaleFactor)}
	case ConstrainDistort:
		return constrainPlan{resampleW: int(targetW), resampleH: int(targetH)}
	case ConstrainFit:
		scaleFactor := math.Min(targetW/srcWf, targetH/srcHf)
		return constrainPlan{resampleW: round(srcWf * scaleFactor), resampleH: round(srcHf * scaleFactor)}
	case ConstrainFitCrop:
		scaleFactor := math.Max(targetW/srcWf, targetH/srcHf)
		resampleW, resampleH := round(srcWf*scaleFactor), round(srcHf*scaleFactor)
		x1 := (resampleW - int(targetW)) / 2
		y1 := (resampleH - int(targetH)) / 2
		crop := [4]int{x1, y1, x1 + int(targetW), y1 + int(targetH)}
		return constrainPlan{resampleW: resampleW, resampleH: resampleH, cropRect: &crop}
	case ConstrainAspectPad:
		scaleFactor := math.Min(targetW/srcWf, targetH/srcHf)
		resampleW, resampleH := round(srcWf*scaleFactor), round(srcHf*scaleFactor)
		left := (int(targetW) - resampleW) / 2
		top := (int(targetH) - resampleH) / 2
		right := int(targetW) - resampleW - left
		bottom := int(targetH) - resampleH - top
		pad := [4]int{left, top, right, bottom}
		return constrainPlan{resampleW: resampleW, resampleH: resampleH, padRect: &pad}
	default:
		scaleFactor := math.Min(targetW/srcWf, targetH/srcHf)
		return constrainPlan{resampleW: round(srcWf * scaleFactor), resampleH: round(srcHf * scaleFactor)}
	}
}

func round(v float64) int {
	r := int(math.Round(v))
	if r < 1 {
		return 1
	}
	return r
}

func constrainEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := constrainParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	pe := g.Node(parent).Estimate
	if !pe.Known {
		return nil
	}
	plan := planConstrain(p, pe.Width, pe.Height)
	w, h := plan.resampleW, plan.resampleH
	if plan.cropRect != nil {
		w, h = plan.cropRect[2]-plan.cropRect[0], plan.cropRect[3]-plan.cropRect[1]
	}
	if plan.padRect != nil {
		w = w + plan.padRect[0] + plan.padRect[2]
		h = h + plan.padRect[1] + plan.padRect[3]
	}
	g.Node(id).Estimate = graph.FrameEstimate{Width: w, Height: h, Layout: pe.Layout, AlphaMeaningful: pe.AlphaMeaningful || plan.padRect != nil, Known: true}
	return nil
}

// constrainFlatten expands Constrain into Resample2D (+Crop for fit_crop,
// +ExpandCanvas for pad), mirroring how imageflow_core's constrain.rs
// desugars into primitive resample/crop nodes before optimization (spec
// §4.J, §4.G FlattenPre).
func constrainFlatten(g *graph.Graph, id graph.NodeID) error {
	p, err := constrainParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Constrain.Flatten", fmt.Errorf("node %s has no input", id))
	}
	pe := g.Node(parent).Estimate
	if !pe.Known {
		return ferr.New(ferr.InvalidState, "nodes.Constrain.Flatten", fmt.Errorf("node %s's input dimensions are not yet known", id))
	}
	plan := planConstrain(p, pe.Width, pe.Height)
	filter := p.Filter
	if filter == "" {
		filter = scale.DefaultOptions().Filter
	}
	resampleID, err := g.AddNode("Resample2D", &Resample2DParams{Width: plan.resampleW, Height: plan.resampleH, Filter: filter})
	if err != nil {
		return err
	}
	last := resampleID
	if plan.cropRect != nil {
		cropID, err := g.AddNode("Crop", &CropParams{X1: plan.cropRect[0], Y1: plan.cropRect[1], X2: plan.cropRect[2], Y2: plan.cropRect[3]})
		if err != nil {
			return err
		}
		if err := g.AddEdge(resampleID, cropID, graph.Input); err != nil {
			return err
		}
		last = cropID
	}
	if plan.padRect != nil {
		expandID, err := g.AddNode("ExpandCanvas", &ExpandCanvasParams{Left: plan.padRect[0], Top: plan.padRect[1], Right: plan.padRect[2], Bottom: plan.padRect[3], Color: p.PadColor})
		if err != nil {
			return err
		}
		if err := g.AddEdge(last, expandID, graph.Input); err != nil {
			return err
		}
		last = expandID
	}
	return g.SpliceChain(id, resampleID, last)
}
