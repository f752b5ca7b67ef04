package graph

import (
	"fmt"

	"github.com/imazen-go/imageflow/ferr"
)

// RemoveNode deletes a node and every edge touching it.
func (gr *Graph) RemoveNode(id NodeID) error {
	if gr.nodes[id] == nil {
		return nil
	}
	for pair := range gr.edgeKind {
		if pair[0] == id || pair[1] == id {
			_ = gr.g.RemoveEdge(string(pair[0]), string(pair[1]))
			delete(gr.edgeKind, pair)
		}
	}
	if err := gr.g.RemoveVertex(string(id)); err != nil {
		return ferr.Wrap(ferr.InvalidState, "graph.RemoveNode", err)
	}
	delete(gr.nodes, id)
	return nil
}

// ReplaceNode swaps id's node type/params for a new one, leaving its edges
// untouched, used by flattening passes that simplify a node without
// changing its graph position (spec §4.G `ctx.replace_node`).
func (gr *Graph) ReplaceNode(id NodeID, typeName string, params interface{}) error {
	n := gr.nodes[id]
	if n == nil {
		return ferr.New(ferr.InvalidState, "graph.ReplaceNode", fmt.Errorf("unknown node %s", id))
	}
	n.TypeName = typeName
	n.Params = params
	n.Stage = Blank
	return nil
}

// ReplaceNodeWithExisting rewires every edge into or out of old to attach
// to existing instead, then removes old, used when flattening determines
// one already-built node can stand in for another (spec §4.G
// `ctx.replace_node_with_existing`).
func (gr *Graph) ReplaceNodeWithExisting(old, existing NodeID) error {
	if gr.nodes[old] == nil || gr.nodes[existing] == nil {
		return ferr.New(ferr.InvalidState, "graph.ReplaceNodeWithExisting", fmt.Errorf("unknown node in replace %s -> %s", old, existing))
	}
	for pair, kind := range gr.edgeKind {
		switch {
		case pair[0] == old:
			if err := gr.rewireEdge(pair[0], pair[1], existing, pair[1], kind); err != nil {
				return err
			}
		case pair[1] == old:
			if err := gr.rewireEdge(pair[0], pair[1], pair[0], existing, kind); err != nil {
				return err
			}
		}
	}
	return gr.RemoveNode(old)
}

// InsertNodeBetween splices a new node of the given type in between an
// existing parent->child edge: the edge is removed, the new node is added,
// and parent->new (with the original edge's kind) and new->child (Input)
// edges replace it. Used by flattening passes that need to prepend a
// prerequisite step to an existing node (spec §4.G), the mirror image of
// DeleteNodeAndSnapTogether.
func (gr *Graph) InsertNodeBetween(parent, child NodeID, typeName string, params interface{}) (NodeID, error) {
	kind, ok := gr.EdgeKindOf(parent, child)
	if !ok {
		return "", ferr.New(ferr.InvalidNodeConnections, "graph.InsertNodeBetween", fmt.Errorf("no edge %s->%s to split", parent, child))
	}
	newID, err := gr.AddNode(typeName, params)
	if err != nil {
		return "", err
	}
	_ = gr.g.RemoveEdge(string(parent), string(child))
	delete(gr.edgeKind, [2]NodeID{parent, child})
	if err := gr.AddEdge(parent, newID, kind); err != nil {
		return "", err
	}
	if err := gr.AddEdge(newID, child, Input); err != nil {
		return "", err
	}
	return newID, nil
}

// SpliceChain replaces old with a multi-node sub-chain: every edge
// pointing into old is rewired to point into first (preserving kind),
// every edge pointing out of old is rewired to originate from last
// (preserving kind), and old is removed. first and last may be equal,
// the single-node case. This is the primitive node-type Flatten functions
// use to expand one composite node into several (spec §4.G); unlike
// ReplaceNodeWithExisting, which rewires both directions to one node, it
// is safe when the replacement is itself a chain with distinct entry and
// exit points.
func (gr *Graph) SpliceChain(old, first, last NodeID) error {
	if gr.nodes[old] == nil {
		return ferr.New(ferr.InvalidState, "graph.SpliceChain", fmt.Errorf("unknown node %s", old))
	}
	for _, e := range gr.InEdges(old) {
		_ = gr.g.RemoveEdge(string(e.Parent), string(old))
		delete(gr.edgeKind, [2]NodeID{e.Parent, old})
		if e.Parent == first {
			continue
		}
		if err := gr.AddEdge(e.Parent, first, e.Kind); err != nil {
			return err
		}
	}
	for _, e := range gr.OutEdges(old) {
		_ = gr.g.RemoveEdge(string(old), string(e.Child))
		delete(gr.edgeKind, [2]NodeID{old, e.Child})
		if e.Child == last {
			continue
		}
		if err := gr.AddEdge(last, e.Child, e.Kind); err != nil {
			return err
		}
	}
	return gr.RemoveNode(old)
}

func (gr *Graph) rewireEdge(oldFrom, oldTo, newFrom, newTo NodeID, kind EdgeKind) error {
	_ = gr.g.RemoveEdge(string(oldFrom), string(oldTo))
	delete(gr.edgeKind, [2]NodeID{oldFrom, oldTo})
	if newFrom == newTo {
		return nil // degenerate self-loop produced by the rewire; drop it
	}
	return gr.AddEdge(newFrom, newTo, kind)
}

// DeleteNodeAndSnapTogether removes a single-input, single-output node and
// reconnects its one parent directly to its one child, preserving edge
// kind from the child's original inbound edge (spec §4.G
// `ctx.delete_node_and_snap_together`, used by e.g. EnableTransparency
// when a Bgra32 parent already satisfies the node's postcondition).
func (gr *Graph) DeleteNodeAndSnapTogether(id NodeID) error {
	in := gr.InEdges(id)
	out := gr.OutEdges(id)
	if len(in) != 1 || len(out) > 1 {
		return ferr.New(ferr.InvalidNodeConnections, "graph.DeleteNodeAndSnapTogether", fmt.Errorf("node %s is not a simple pass-through (in=%d out=%d)", id, len(in), len(out)))
	}
	parent := in[0].Parent
	if err := gr.RemoveNode(id); err != nil {
		return err
	}
	for _, child := range out {
		if err := gr.AddEdge(parent, child.Child, child.Kind); err != nil {
			return err
		}
	}
	return nil
}
