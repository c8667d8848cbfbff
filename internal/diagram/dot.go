package diagram

import (
	"fmt"
	"strings"
)

// RenderDOT renders a DiagramModel as Graphviz DOT source. The output feeds
// any dot-compatible renderer; no graphviz binding is required to produce it.
func RenderDOT(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("digraph flow {\n")
	b.WriteString("    rankdir=TB;\n")
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    label=%q;\n", model.Title))
	}
	b.WriteString("    node [fontname=\"Helvetica\"];\n")

	for _, node := range model.Nodes {
		attrs := []string{
			fmt.Sprintf("label=%q", firstLine(node.Label)),
			fmt.Sprintf("shape=%s", dotShape(node.Kind)),
		}
		if node.Status != nil {
			if color := dotFillColor(node.Status.Status); color != "" {
				attrs = append(attrs, "style=filled", fmt.Sprintf("fillcolor=%q", color), "fontcolor=\"white\"")
			}
		}
		b.WriteString(fmt.Sprintf("    %q [%s];\n", node.ID, strings.Join(attrs, ", ")))
	}

	for _, edge := range model.Edges {
		if edge.Label != "" {
			b.WriteString(fmt.Sprintf("    %q -> %q [label=%q];\n", edge.From, edge.To, edge.Label))
		} else {
			b.WriteString(fmt.Sprintf("    %q -> %q;\n", edge.From, edge.To))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// dotShape maps a NodeKind to a DOT shape.
func dotShape(kind NodeKind) string {
	switch kind {
	case NodeKindEntry:
		return "circle"
	case NodeKindExit:
		return "doublecircle"
	case NodeKindDecision:
		return "diamond"
	case NodeKindGate:
		return "oval"
	case NodeKindTransform:
		return "hexagon"
	case NodeKindFan:
		return "box3d"
	default:
		return "box"
	}
}

// dotFillColor maps a NodeStatus string to a fill color.
func dotFillColor(status string) string {
	switch status {
	case "completed":
		return "#2d6a2d"
	case "error":
		return "#8b1a1a"
	case "running":
		return "#1a5276"
	case "waiting":
		return "#b7791a"
	case "skipped":
		return "#4a4a4a"
	case "idle":
		return "#6b6b6b"
	default:
		return ""
	}
}
