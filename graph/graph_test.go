package graph

import "testing"

func TestAddEdgeRejectsCycle(t *testing.T) {
	g := New()
	a, _ := g.AddNode("Decode", nil)
	b, _ := g.AddNode("FlipV", nil)
	if err := g.AddEdge(a, b, Input); err != nil {
		t.Fatalf("AddEdge a->b: %v", err)
	}
	if err := g.AddEdge(b, a, Input); err == nil {
		t.Fatal("expected GraphCyclic rejecting b->a")
	}
	// the graph must still be usable after the rejected edge
	order, err := g.TopoOrder()
	if err != nil || len(order) != 2 {
		t.Fatalf("graph corrupted after rejected cyclic edge: order=%v err=%v", order, err)
	}
}

func TestTopoOrderRespectsEdges(t *testing.T) {
	g := New()
	a, _ := g.AddNode("Decode", nil)
	b, _ := g.AddNode("Resample2D", nil)
	c, _ := g.AddNode("Encode", nil)
	_ = g.AddEdge(a, b, Input)
	_ = g.AddEdge(b, c, Input)
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}
	pos := map[NodeID]int{}
	for i, id := range order {
		pos[id] = i
	}
	if !(pos[a] < pos[b] && pos[b] < pos[c]) {
		t.Fatalf("topo order %v does not respect a->b->c", order)
	}
}

func TestDeleteNodeAndSnapTogether(t *testing.T) {
	g := New()
	a, _ := g.AddNode("Decode", nil)
	mid, _ := g.AddNode("EnableTransparency", nil)
	c, _ := g.AddNode("Encode", nil)
	_ = g.AddEdge(a, mid, Input)
	_ = g.AddEdge(mid, c, Input)

	if err := g.DeleteNodeAndSnapTogether(mid); err != nil {
		t.Fatal(err)
	}
	if g.Node(mid) != nil {
		t.Fatal("mid node should be removed")
	}
	kind, ok := g.EdgeKindOf(a, c)
	if !ok || kind != Input {
		t.Fatal("expected a->c edge after snapping together")
	}
}

func TestReplaceNodeWithExisting(t *testing.T) {
	g := New()
	a, _ := g.AddNode("Decode", nil)
	old, _ := g.AddNode("Crop", nil)
	existing, _ := g.AddNode("CropWhitespace", nil)
	c, _ := g.AddNode("Encode", nil)
	_ = g.AddEdge(a, old, Input)
	_ = g.AddEdge(old, c, Input)

	if err := g.ReplaceNodeWithExisting(old, existing); err != nil {
		t.Fatal(err)
	}
	if g.Node(old) != nil {
		t.Fatal("old node should be removed")
	}
	if _, ok := g.EdgeKindOf(a, existing); !ok {
		t.Fatal("expected a->existing edge")
	}
	if _, ok := g.EdgeKindOf(existing, c); !ok {
		t.Fatal("expected existing->c edge")
	}
}
