package request

import (
	"fmt"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/nodes"
	"github.com/imazen-go/imageflow/pixel"
	"github.com/imazen-go/imageflow/weights"
)

// BuildGraph translates a Framewise document into a graph.Graph (spec
// §4.J): the Steps form is sugar for a linear chain with Input edges; the
// Graph form carries explicit node IDs and edges. This plays the role of
// imageflow_core's parsing::GraphTranslator, generalized to Go's JSON
// decoding instead of serde's enum derive.
func BuildGraph(fw Framewise) (*graph.Graph, error) {
	g := graph.New()
	switch {
	case fw.Graph != nil:
		return buildExplicitGraph(g, fw.Graph)
	case len(fw.Steps) > 0:
		return buildLinearGraph(g, fw.Steps)
	default:
		return nil, ferr.New(ferr.InvalidArgument, "request.BuildGraph", fmt.Errorf("framewise has neither steps nor graph"))
	}
}

func buildLinearGraph(g *graph.Graph, steps []Node) (*graph.Graph, error) {
	var prev graph.NodeID
	for i, n := range steps {
		typeName, params, err := nodeParams(n)
		if err != nil {
			return nil, err
		}
		id, err := g.AddNode(typeName, params)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			if err := g.AddEdge(prev, id, graph.Input); err != nil {
				return nil, err
			}
		}
		prev = id
	}
	return g, nil
}

func buildExplicitGraph(g *graph.Graph, doc *GraphDoc) (*graph.Graph, error) {
	ids := make(map[string]graph.NodeID, len(doc.Nodes))
	for rawID, n := range doc.Nodes {
		typeName, params, err := nodeParams(n)
		if err != nil {
			return nil, err
		}
		id, err := g.AddNode(typeName, params)
		if err != nil {
			return nil, err
		}
		ids[rawID] = id
	}
	for _, e := range doc.Edges {
		from, ok := ids[e.From]
		if !ok {
			return nil, ferr.New(ferr.InvalidNodeConnections, "request.BuildGraph", fmt.Errorf("edge references unknown node %q", e.From))
		}
		to, ok := ids[e.To]
		if !ok {
			return nil, ferr.New(ferr.InvalidNodeConnections, "request.BuildGraph", fmt.Errorf("edge references unknown node %q", e.To))
		}
		kind := graph.Input
		if e.Kind == "Canvas" {
			kind = graph.Canvas
		}
		if err := g.AddEdge(from, to, kind); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// nodeParams maps a JSON Node's Type and fields onto the matching
// nodes.*Params struct and the graph registry's TypeName, covering every
// Node variant spec §4.J enumerates. Any other type registered in the
// nodes registry is passed through by name with nil params; an
// unregistered type is a NodeParamsMismatch.
func nodeParams(n Node) (string, interface{}, error) {
	switch n.Type {
	case "Decode":
		return "Decode", &nodes.DecodeParams{IoID: n.stringField("io_id")}, nil
	case "Encode":
		format := codec.Format(n.stringField("format"))
		return "Encode", &nodes.EncodeParams{
			IoID:   n.stringField("io_id"),
			Format: format,
			Options: codec.EncodeOptions{
				Quality:     n.intField("quality"),
				Lossless:    n.boolField("lossless"),
				Progressive: n.boolField("progressive"),
				MinQuality:  n.intField("min_quality"),
			},
		}, nil
	case "Crop":
		return "Crop", &nodes.CropParams{X1: n.intField("x1"), Y1: n.intField("y1"), X2: n.intField("x2"), Y2: n.intField("y2")}, nil
	case "FlipV":
		return "FlipV", &nodes.RotateParams{}, nil
	case "FlipH":
		return "FlipH", &nodes.RotateParams{}, nil
	case "Transpose":
		return "Transpose", &nodes.RotateParams{}, nil
	case "Rotate90":
		return "Rotate90", &nodes.RotateParams{}, nil
	case "Rotate180":
		return "Rotate180", &nodes.RotateParams{}, nil
	case "Rotate270":
		return "Rotate270", &nodes.RotateParams{}, nil
	case "CreateCanvas":
		return "CreateCanvas", &nodes.CreateCanvasParams{Width: n.intField("w"), Height: n.intField("h"), Color: n.colorField("color")}, nil
	case "CopyRectToCanvas":
		return "CopyRectToCanvas", &nodes.CopyRectToCanvasParams{
			FromX: n.intField("from_x"), FromY: n.intField("from_y"),
			Width: n.intField("width"), Height: n.intField("height"),
			ToX: n.intField("x"), ToY: n.intField("y"),
		}, nil
	case "FillRect":
		return "FillRect", &nodes.FillRectParams{X1: n.intField("x1"), Y1: n.intField("y1"), X2: n.intField("x2"), Y2: n.intField("y2"), Color: n.colorField("color")}, nil
	case "ExpandCanvas":
		return "ExpandCanvas", &nodes.ExpandCanvasParams{Left: n.intField("left"), Top: n.intField("top"), Right: n.intField("right"), Bottom: n.intField("bottom"), Color: n.colorField("color")}, nil
	case "Resample2D":
		return "Resample2D", &nodes.Resample2DParams{
			Width: n.intField("w"), Height: n.intField("h"),
			Filter: weights.Filter(n.stringField("filter")), SharpenPercent: n.floatField("sharpen_percent"),
		}, nil
	case "Constrain":
		return "Constrain", &nodes.ConstrainParams{
			Width: n.intField("w"), Height: n.intField("h"),
			Mode:     constrainMode(n.stringField("mode")),
			Filter:   weights.Filter(n.stringField("filter")),
			PadColor: n.colorField("canvas_color"),
		}, nil
	case "DrawImageExact":
		return "DrawImageExact", &nodes.DrawImageExactParams{X: n.intField("x"), Y: n.intField("y"), Width: n.intField("w"), Height: n.intField("h"), OpacityPercent: n.floatField("opacity")}, nil
	case "ColorFilterSrgb":
		return "ColorFilterSrgb", &nodes.ColorFilterSrgbParams{Matrix: colorFilterMatrix(n)}, nil
	case "Watermark":
		return "Watermark", &nodes.WatermarkParams{
			IoID: n.stringField("io_id"), Gravity: n.stringField("gravity"),
			OpacityPercent: n.floatField("opacity"), FitBoxPercent: n.floatField("fit_box_percent"),
		}, nil
	case "WhiteBalanceHistogramAreaThresholdSrgb":
		return "WhiteBalanceHistogramAreaThresholdSrgb", &nodes.WhiteBalanceParams{Threshold: n.floatField("threshold")}, nil
	case "CropWhitespace":
		return "CropWhitespace", &nodes.CropWhitespaceParams{Threshold: n.intField("threshold"), Padding: n.intField("padding")}, nil
	case "RoundImageCorners":
		return "RoundImageCorners", &nodes.RoundImageCornersParams{RadiusPercent: n.floatField("radius_percent")}, nil
	case "EnableTransparency":
		return "EnableTransparency", &nodes.EnableTransparencyParams{Matte: n.colorField("matte")}, nil
	case "CommandString":
		return "CommandString", &nodes.CommandStringParams{Querystring: n.stringField("value")}, nil
	case "WatermarkRedDot":
		return "WatermarkRedDot", &nodes.WatermarkRedDotParams{X: n.intField("x"), Y: n.intField("y"), Size: n.intField("size")}, nil
	default:
		if _, ok := nodes.Get(n.Type); ok {
			return n.Type, nil, nil
		}
		return "", nil, ferr.New(ferr.NodeParamsMismatch, "request.nodeParams", fmt.Errorf("unrecognized node type %q", n.Type))
	}
}

func constrainMode(s string) nodes.ConstrainMode {
	switch s {
	case "Within", "within":
		return nodes.ConstrainWithin
	case "Fit", "fit":
		return nodes.ConstrainFit
	case "FitCrop", "fit_crop":
		return nodes.ConstrainFitCrop
	case "Distort", "distort":
		return nodes.ConstrainDistort
	case "AspectCrop", "pad", "Pad":
		return nodes.ConstrainAspectPad
	default:
		return nodes.ConstrainWithin
	}
}

// colorFilterMatrix maps ColorFilterSrgb's preset name (Invert, Sepia,
// Grayscale, Alpha; Brightness/Contrast/Saturation are not yet
// implemented as fixed matrices and fall back to identity) to a concrete
// matrix.
func colorFilterMatrix(n Node) pixel.ColorMatrix {
	switch n.stringField("preset") {
	case "Invert", "invert":
		return nodes.InvertMatrix
	case "Sepia", "sepia":
		return nodes.SepiaMatrix
	case "Grayscale", "grayscale":
		return nodes.GrayscaleMatrix
	case "Alpha", "alpha":
		factor := n.floatField("amount")
		if factor == 0 {
			factor = 1
		}
		return nodes.AlphaMatrix(factor)
	default:
		return pixel.ColorMatrix{
			{1, 0, 0, 0, 0},
			{0, 1, 0, 0, 0},
			{0, 0, 1, 0, 0},
			{0, 0, 0, 1, 0},
			{0, 0, 0, 0, 1},
		}
	}
}
