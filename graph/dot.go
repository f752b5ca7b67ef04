package graph

import (
	"fmt"
	"strings"
)

// DOT renders the graph as Graphviz source, grounded on imageflow_core's
// flow/visualize.rs. Nothing in this module calls it; config.GraphRecording
// and builder_config.graph_recording do not produce DOT snapshots.
func (gr *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	for _, id := range gr.Nodes() {
		n := gr.nodes[id]
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", id, fmt.Sprintf("%s\\n%s", id, n.TypeName)))
	}
	for pair, kind := range gr.edgeKind {
		style := "solid"
		if kind == Canvas {
			style = "dashed"
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [style=%s];\n", pair[0], pair[1], style))
	}
	b.WriteString("}\n")
	return b.String()
}
