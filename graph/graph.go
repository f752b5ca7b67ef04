// Package graph implements imageflow's Operation Graph data model (spec
// §4.G): a DAG of typed nodes connected by Input/Canvas edges, with
// cycle-rejecting edge insertion and the node-lifecycle stage enum the
// Graph Engine drives through its five passes.
//
// DAG storage and cycle/topological analysis are delegated to
// github.com/katalvlaran/lvlath (core for storage, dfs for traversal),
// found in the retrieval pack's other_examples (katalvlaran-lvlath files)
// rather than hand-rolled, the same way imageflow_core leans on petgraph
// in the original Rust source instead of hand-rolling its own graph.
package graph

import (
	"fmt"
	"strconv"

	lvcore "github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/ferr"
)

// NodeID identifies a node within one Graph.
type NodeID string

// EdgeKind distinguishes a normal data-flow edge from a Canvas edge, which
// marks the parent whose bitmap a mutate-in-place node is allowed to
// modify (spec §4.G).
type EdgeKind int

const (
	Input EdgeKind = iota
	Canvas
)

// Stage is a node's position in its lifecycle (spec §4.G), mirroring
// imageflow_core's NodeStage enum (Blank..Done).
type Stage int

const (
	Blank Stage = iota
	InputDimsKnown
	PreFlattened
	Optimized
	PostFlattened
	InputsExecuted
	Executed
	Done
)

// FrameEstimate is a node's best-known output shape before execution,
// used by the planning passes to flow dimensions through the graph
// without decoding/resampling pixels.
type FrameEstimate struct {
	Width, Height   int
	Layout          bitmap.PixelLayout
	AlphaMeaningful bool
	Known           bool
}

// ResultKind distinguishes a node with no output, one that consumed its
// input in place, or one that produced a new bitmap.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultConsumed
	ResultFrame
)

// NodeResult is what executing a node actually produced.
type NodeResult struct {
	Kind      ResultKind
	BitmapKey bitmap.Key
}

// Node is one vertex of the Operation Graph: a type name (resolved against
// the nodes package's registry), opaque type-specific params, and the
// mutable planning/execution state the engine advances through Stage.
type Node struct {
	ID       NodeID
	TypeName string
	Params   interface{}
	Stage    Stage
	Estimate FrameEstimate
	Result   NodeResult
}

// Graph is a mutable, acyclic Operation Graph (spec §4.G).
type Graph struct {
	g       *lvcore.Graph
	nodes   map[NodeID]*Node
	edgeKind map[[2]NodeID]EdgeKind
	next    int
}

// New returns an empty, directed Graph.
func New() *Graph {
	return &Graph{
		g:        lvcore.NewGraph(lvcore.WithDirected(true)),
		nodes:    make(map[NodeID]*Node),
		edgeKind: make(map[[2]NodeID]EdgeKind),
	}
}

func (gr *Graph) freshID() NodeID {
	id := NodeID("n" + strconv.Itoa(gr.next))
	gr.next++
	return id
}

// AddNode inserts a new, Blank-stage node of the given type and returns
// its ID. It does not connect any edges.
func (gr *Graph) AddNode(typeName string, params interface{}) (NodeID, error) {
	id := gr.freshID()
	if err := gr.g.AddVertex(string(id)); err != nil {
		return "", ferr.Wrap(ferr.InvalidState, "graph.AddNode", err)
	}
	gr.nodes[id] = &Node{ID: id, TypeName: typeName, Params: params, Stage: Blank}
	return id, nil
}

// AddNodes inserts several nodes in one call, for use by node flattening
// code that expands one composite node into a sub-chain (spec §4.G's
// `ctx.add_nodes`).
func (gr *Graph) AddNodes(typeNames []string, params []interface{}) ([]NodeID, error) {
	ids := make([]NodeID, len(typeNames))
	for i, t := range typeNames {
		var p interface{}
		if params != nil {
			p = params[i]
		}
		id, err := gr.AddNode(t, p)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Node returns the node for id, or nil if it doesn't exist.
func (gr *Graph) Node(id NodeID) *Node { return gr.nodes[id] }

// Nodes returns every node ID currently in the graph, in no particular
// order; callers that need execution order should use TopoOrder.
func (gr *Graph) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(gr.nodes))
	for id := range gr.nodes {
		ids = append(ids, id)
	}
	return ids
}

// AddEdge connects from->to with the given kind. It rejects the edge with
// GraphCyclic if adding it would create a cycle (spec §4.G, §8).
func (gr *Graph) AddEdge(from, to NodeID, kind EdgeKind) error {
	if gr.nodes[from] == nil || gr.nodes[to] == nil {
		return ferr.New(ferr.InvalidNodeConnections, "graph.AddEdge", fmt.Errorf("unknown node id in edge %s->%s", from, to))
	}
	weight := 0.0
	if kind == Canvas {
		weight = 1.0
	}
	if _, err := gr.g.AddEdge(string(from), string(to), weight); err != nil {
		return ferr.Wrap(ferr.InvalidNodeConnections, "graph.AddEdge", err)
	}
	if _, err := dfs.TopologicalSort(gr.g); err != nil {
		// Roll back: the edge we just added is the only thing that could
		// have introduced a cycle, since the graph was acyclic before it.
		_ = gr.g.RemoveEdge(string(from), string(to))
		return ferr.New(ferr.GraphCyclic, "graph.AddEdge", fmt.Errorf("edge %s->%s would create a cycle", from, to))
	}
	gr.edgeKind[[2]NodeID{from, to}] = kind
	return nil
}

// EdgeKindOf reports the kind of the edge from->to, and whether it exists.
func (gr *Graph) EdgeKindOf(from, to NodeID) (EdgeKind, bool) {
	k, ok := gr.edgeKind[[2]NodeID{from, to}]
	return k, ok
}

// InEdges returns the (parent, kind) pairs for every edge pointing at id.
func (gr *Graph) InEdges(id NodeID) []struct {
	Parent NodeID
	Kind   EdgeKind
} {
	var out []struct {
		Parent NodeID
		Kind   EdgeKind
	}
	for pair, kind := range gr.edgeKind {
		if pair[1] == id {
			out = append(out, struct {
				Parent NodeID
				Kind   EdgeKind
			}{pair[0], kind})
		}
	}
	return out
}

// OutEdges returns the (child, kind) pairs for every edge starting at id.
func (gr *Graph) OutEdges(id NodeID) []struct {
	Child NodeID
	Kind  EdgeKind
} {
	var out []struct {
		Child NodeID
		Kind  EdgeKind
	}
	for pair, kind := range gr.edgeKind {
		if pair[0] == id {
			out = append(out, struct {
				Child NodeID
				Kind  EdgeKind
			}{pair[1], kind})
		}
	}
	return out
}

// TopoOrder returns a topological ordering of every node, the order Pass 5
// (Execute) visits nodes in (spec §4.H).
func (gr *Graph) TopoOrder() ([]NodeID, error) {
	order, err := dfs.TopologicalSort(gr.g)
	if err != nil {
		return nil, ferr.Wrap(ferr.GraphCyclic, "graph.TopoOrder", err)
	}
	ids := make([]NodeID, len(order))
	for i, s := range order {
		ids[i] = NodeID(s)
	}
	return ids, nil
}
