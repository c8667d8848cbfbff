package diagram

import (
	"fmt"
	"sort"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// Build constructs a DiagramModel from a graph document and optional
// execution states. Topology comes from the document's edges; edges that
// reference unknown nodes are skipped rather than rejected, so a diagram can
// still be produced for a document that would fail validation. A cycle is
// the one thing Build refuses: levels cannot be computed for it.
func Build(title string, doc *schema.GraphDocument, states map[string]schema.NodeExecutionState) (*DiagramModel, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeMalformed, "diagram: nil document")
	}

	nodes := make([]*Node, 0, len(doc.Nodes))
	index := make(map[string]*Node, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		dn := &Node{
			ID:    n.ID,
			Label: nodeLabel(n),
			Kind:  typeToKind(n.Type),
		}
		if st, ok := states[n.ID]; ok {
			dn.Status = &StatusOverlay{
				Status:     string(st.Status),
				DurationMs: st.DurationMs,
				Tokens:     st.Tokens,
				Error:      st.Error,
			}
		}
		nodes = append(nodes, dn)
		index[n.ID] = dn
	}

	var edges []Edge
	outgoing := make(map[string][]string, len(doc.Nodes))
	inDegree := make(map[string]int, len(doc.Nodes))
	for _, e := range doc.Edges {
		if index[e.Source] == nil || index[e.Target] == nil {
			continue
		}
		edges = append(edges, Edge{From: e.Source, To: e.Target, Label: string(e.TypeTag)})
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
		inDegree[e.Target]++
	}

	levels, err := buildLevels(nodes, outgoing, inDegree)
	if err != nil {
		return nil, err
	}

	return &DiagramModel{
		Title:  title,
		Nodes:  nodes,
		Edges:  edges,
		Levels: levels,
	}, nil
}

// buildLevels groups node IDs into topological levels: level 0 holds nodes
// with no incoming edges, level n+1 holds nodes whose last remaining
// predecessor sits in level n. IDs within a level are sorted for stable
// output.
func buildLevels(nodes []*Node, outgoing map[string][]string, inDegree map[string]int) ([][]string, error) {
	remaining := make(map[string]int, len(nodes))
	var frontier []string
	for _, n := range nodes {
		remaining[n.ID] = inDegree[n.ID]
		if inDegree[n.ID] == 0 {
			frontier = append(frontier, n.ID)
		}
	}
	sort.Strings(frontier)

	var levels [][]string
	visited := 0
	for len(frontier) > 0 {
		level := frontier
		levels = append(levels, level)
		visited += len(level)

		var next []string
		for _, id := range level {
			for _, to := range outgoing[id] {
				remaining[to]--
				if remaining[to] == 0 {
					next = append(next, to)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}

	if visited != len(nodes) {
		return nil, schema.NewError(schema.ErrCodeCycle, "diagram: document contains a cycle")
	}
	return levels, nil
}

// nodeLabel creates a human-readable label for a node. The display label
// from node data wins when present; otherwise the node ID is used, with the
// node type on a second line.
func nodeLabel(n *schema.Node) string {
	if label, ok := n.Data["label"].(string); ok && label != "" {
		return fmt.Sprintf("%s\n(%s)", label, n.Type)
	}
	return fmt.Sprintf("%s\n(%s)", n.ID, n.Type)
}

// typeToKind maps a canvas node type to a diagram shape class.
func typeToKind(t schema.NodeType) NodeKind {
	switch t {
	case schema.NodeTypeInput:
		return NodeKindEntry
	case schema.NodeTypeOutput:
		return NodeKindExit
	case schema.NodeTypeRouter:
		return NodeKindDecision
	case schema.NodeTypeApproval:
		return NodeKindGate
	case schema.NodeTypeTransform, schema.NodeTypeValidator:
		return NodeKindTransform
	case schema.NodeTypeIterator, schema.NodeTypeAggregator:
		return NodeKindFan
	default:
		return NodeKindTask
	}
}
