// Package nodes implements every node type named in spec.md §4.J: their
// Estimate (dimension propagation), Flatten (composite-node expansion) and
// Execute behavior, registered by type name for the engine package to
// drive. The registry pattern and the estimate/flatten/execute split are
// grounded on original_source/imageflow_core/src/flow/definitions.rs's
// NodeDefinition{fn_estimate, fn_flatten_pre_optimize,
// fn_flatten_post_optimize, fn_execute}, adapted from Rust function
// pointers to a Go struct of function fields, the idiom the teacher's own
// core.Registry (map-of-interface) and pipeline.Pipeline (slice of Step
// interface values) both already use for swappable, named behavior.
package nodes

import (
	"context"
	"io"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/graph"
)

// ExecEnv is everything a node's Execute function needs beyond the graph
// itself: the bitmap store, and access to the job's I/O handles and codec
// registry (spec §4.I). job.Context implements this interface; nodes does
// not import job to avoid a dependency cycle (job depends on nodes, not
// the reverse).
type ExecEnv interface {
	Context() context.Context
	Store() *bitmap.Store
	OpenInput(ioID string) (io.Reader, error)
	OpenOutput(ioID string) (io.WriteCloser, error)
	DecoderFor(r io.Reader, hint codec.Format) (codec.Decoder, error)
	EncoderFor(format codec.Format) (codec.Encoder, error)
	// SecurityLimits returns the configured decode/frame/encode size
	// bounds (spec §6 builder_config.security), consulted by Decode's
	// Estimate before any pixel is read.
	SecurityLimits() config.Security
}

// Def is one node type's behavior table.
type Def struct {
	TypeName string
	// Estimate fills in n.Estimate from its parents' estimates. Most node
	// types have exactly one parent; composite nodes estimate using their
	// own params alone and are expanded into primitives before Execute
	// ever runs. Decode is the one node type that needs env: it must peek
	// the source image's header to learn its dimensions before any pixel
	// is read.
	Estimate func(env ExecEnv, g *graph.Graph, id graph.NodeID) error
	// FlattenPre expands a composite node into a primitive sub-chain
	// before the Optimize pass sees it (spec §4.H Pass 2).
	FlattenPre func(g *graph.Graph, id graph.NodeID) error
	// FlattenPost expands a node after Optimize, for node types whose
	// expansion depends on optimizer decisions (spec §4.H Pass 4).
	FlattenPost func(g *graph.Graph, id graph.NodeID) error
	// Execute performs the node's actual work (spec §4.H Pass 5).
	Execute func(env ExecEnv, g *graph.Graph, id graph.NodeID) error
	// Mutates reports whether this node type modifies a parent's bitmap in
	// place, through a Canvas or Input edge, rather than producing a new one
	// (spec §4.G). The engine does not read it.
	Mutates bool
}

var registry = map[string]*Def{}

// Register adds d to the global registry, keyed by d.TypeName. Called
// from each node-type file's init().
func Register(d *Def) { registry[d.TypeName] = d }

// Get looks up a node type's Def.
func Get(typeName string) (*Def, bool) {
	d, ok := registry[typeName]
	return d, ok
}

// singleParent returns the one parent of id that is connected via an
// Input edge (not Canvas), the common case for non-mutating nodes.
func singleParent(g *graph.Graph, id graph.NodeID) (graph.NodeID, bool) {
	for _, e := range g.InEdges(id) {
		if e.Kind == graph.Input {
			return e.Parent, true
		}
	}
	return "", false
}

// canvasParent returns the parent connected via a Canvas edge, the target
// a mutate-in-place node is permitted to modify.
func canvasParent(g *graph.Graph, id graph.NodeID) (graph.NodeID, bool) {
	for _, e := range g.InEdges(id) {
		if e.Kind == graph.Canvas {
			return e.Parent, true
		}
	}
	return "", false
}

// copyEstimateFromParent is the default Estimate for geometry-preserving
// nodes (flip, color filters) that neither change dimensions nor format.
func copyEstimateFromParent(_ ExecEnv, g *graph.Graph, id graph.NodeID) error {
	parent, ok := singleParent(g, id)
	if !ok {
		return nil
	}
	g.Node(id).Estimate = g.Node(parent).Estimate
	return nil
}
