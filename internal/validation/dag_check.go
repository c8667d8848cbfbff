package validation

import (
	"fmt"
	"sort"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// validateDAG performs graph analysis: cycle detection (Kahn's algorithm),
// disconnected-node warnings, and entry/exit presence checks.
func validateDAG(doc *schema.GraphDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeIDs[n.ID] = true
	}

	// outgoing[src] = targets, inDegree counts incoming edges per node.
	outgoing := make(map[string][]string, len(doc.Nodes))
	inDegree := make(map[string]int, len(doc.Nodes))
	connected := make(map[string]bool, len(doc.Nodes))
	for id := range nodeIDs {
		inDegree[id] = 0
	}
	for _, e := range doc.Edges {
		if !nodeIDs[e.Source] || !nodeIDs[e.Target] {
			continue // dangling refs already caught by semantic
		}
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
		inDegree[e.Target]++
		connected[e.Source] = true
		connected[e.Target] = true
	}

	// Kahn's algorithm for cycle detection.
	queue := make([]string, 0, len(nodeIDs))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	// Sort roots for deterministic output.
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range outgoing[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(nodeIDs) {
		result.AddError("/edges", schema.ErrCodeCycle, "workflow contains a cycle")
		return result // cycle makes the remaining analysis meaningless
	}

	// Disconnected nodes are legal while editing, but worth flagging before a run.
	if len(doc.Nodes) > 1 {
		for i, n := range doc.Nodes {
			if !connected[n.ID] {
				result.AddWarning(fmt.Sprintf("/nodes/%d", i), schema.ErrCodeValidation,
					fmt.Sprintf("node %q is not connected to anything", n.ID))
			}
		}
	}

	var hasInput, hasOutput bool
	for _, n := range doc.Nodes {
		switch n.Type {
		case schema.NodeTypeInput:
			hasInput = true
		case schema.NodeTypeOutput:
			hasOutput = true
		}
	}
	// A runnable workflow needs at least one entry and one exit node.
	if len(doc.Nodes) > 0 {
		if !hasInput {
			result.AddError("/nodes", schema.ErrCodeValidation,
				"workflow has no input node")
		}
		if !hasOutput {
			result.AddError("/nodes", schema.ErrCodeValidation,
				"workflow has no output node")
		}
	}

	return result
}
