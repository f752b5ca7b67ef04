package nodes

import (
	"fmt"

	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
)

func init() {
	Register(&Def{TypeName: "CommandString", Estimate: copyEstimateFromParent, FlattenPre: commandStringFlatten})
}

// Step is one node in a chain produced by parsing an ImageResizer4-style
// querystring (package riapi), kept generic (TypeName + map params) here
// so that nodes does not need to import riapi: riapi sets
// CommandStringParser during its own init(), the same dependency-inversion
// pattern the teacher uses for plugin-style codec registration.
type Step struct {
	TypeName string
	Params   map[string]interface{}
}

// CommandStringParser parses a querystring into a Step chain. Set by
// package riapi's init(); nil until that package is imported somewhere in
// the program (the root facade package always imports it).
var CommandStringParser func(qs string) ([]Step, error)

// toNodeParams converts a generic Step's map params into the concrete Params
// struct CommandString's flatten step passes to AddNode, so riapi never
// needs to know about nodes' own param types.
func (s Step) toNodeParams() (interface{}, error) {
	switch s.TypeName {
	case "Resample2D":
		return &Resample2DParams{
			Width:          intParam(s.Params, "width"),
			Height:         intParam(s.Params, "height"),
			SharpenPercent: floatParam(s.Params, "sharpen"),
		}, nil
	case "Constrain":
		return &ConstrainParams{
			Width:  intParam(s.Params, "width"),
			Height: intParam(s.Params, "height"),
			Mode:   ConstrainMode(stringParam(s.Params, "mode")),
		}, nil
	case "Crop":
		return &CropParams{
			X1: intParam(s.Params, "x1"), Y1: intParam(s.Params, "y1"),
			X2: intParam(s.Params, "x2"), Y2: intParam(s.Params, "y2"),
		}, nil
	case "FlipV", "FlipH", "Rotate90", "Rotate180", "Rotate270":
		return &RotateParams{}, nil
	case "ColorFilterSrgb":
		if stringParam(s.Params, "preset") == "grayscale" {
			return &ColorFilterSrgbParams{Matrix: GrayscaleMatrix}, nil
		}
		return &ColorFilterSrgbParams{Matrix: SepiaMatrix}, nil
	default:
		return nil, fmt.Errorf("command string produced unsupported node type %q", s.TypeName)
	}
}

func intParam(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
		if i, ok := v.(int); ok {
			return i
		}
	}
	return 0
}

func floatParam(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func stringParam(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// commandStringFlatten parses the node's querystring into a primitive
// chain and splices it in where CommandString sat (spec §6's riapi
// sub-interface, expressed as a node so it composes with the JSON graph
// API instead of being a separate code path).
func commandStringFlatten(g *graph.Graph, id graph.NodeID) error {
	p, ok := g.Node(id).Params.(*CommandStringParams)
	if !ok {
		return ferr.New(ferr.NodeParamsMismatch, "nodes.CommandString", fmt.Errorf("node %s missing CommandStringParams", id))
	}
	if CommandStringParser == nil {
		return ferr.New(ferr.InvalidState, "nodes.CommandString.Flatten", fmt.Errorf("no querystring parser registered (import package riapi)"))
	}
	steps, err := CommandStringParser(p.Querystring)
	if err != nil {
		return ferr.Wrap(ferr.InvalidArgument, "nodes.CommandString.Flatten", err)
	}
	if _, ok := singleParent(g, id); !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.CommandString.Flatten", fmt.Errorf("node %s has no input", id))
	}
	if len(steps) == 0 {
		return g.DeleteNodeAndSnapTogether(id)
	}
	var first, last graph.NodeID
	var prev graph.NodeID
	for i, step := range steps {
		params, err := step.toNodeParams()
		if err != nil {
			return ferr.Wrap(ferr.InvalidArgument, "nodes.CommandString.Flatten", err)
		}
		newID, err := g.AddNode(step.TypeName, params)
		if err != nil {
			return err
		}
		if i == 0 {
			first = newID
		} else if err := g.AddEdge(prev, newID, graph.Input); err != nil {
			return err
		}
		prev = newID
		last = newID
	}
	return g.SpliceChain(id, first, last)
}
