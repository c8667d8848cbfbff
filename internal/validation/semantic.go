package validation

import (
	"fmt"

	"github.com/flowdeck/flowdeck/internal/handles"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// ConfigChecker prechecks a node's configuration (expressions, jq programs,
// schemas) without executing anything. May be nil to skip config checks.
type ConfigChecker interface {
	CheckNodeConfig(node schema.Node) error
}

// validateSemantic performs semantic analysis on a structurally valid
// document: edge endpoints exist, handles resolve against the registry, edge
// type tags are consistent with the handle table, and node configs precheck.
func validateSemantic(doc *schema.GraphDocument, checker ConfigChecker) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeTypes := make(map[string]schema.NodeType, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeTypes[n.ID] = n.Type
	}

	for i, e := range doc.Edges {
		path := fmt.Sprintf("/edges/%d", i)

		srcType, srcOK := nodeTypes[e.Source]
		if !srcOK {
			result.AddError(path+"/source", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Source))
		}
		dstType, dstOK := nodeTypes[e.Target]
		if !dstOK {
			result.AddError(path+"/target", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Target))
		}
		if !srcOK || !dstOK {
			continue
		}

		if e.Source == e.Target {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("self loop on node %q", e.Source))
			continue
		}

		srcHandle, ok := handles.Resolve(srcType, e.SourceHandle, handles.Output)
		if !ok {
			result.AddError(path+"/sourceHandle", schema.ErrCodeValidation,
				fmt.Sprintf("node type %q has no output handle %q", srcType, e.SourceHandle))
			continue
		}
		dstHandle, ok := handles.Resolve(dstType, e.TargetHandle, handles.Input)
		if !ok {
			result.AddError(path+"/targetHandle", schema.ErrCodeValidation,
				fmt.Sprintf("node type %q has no input handle %q", dstType, e.TargetHandle))
			continue
		}

		if !handles.Compatible(srcHandle, dstHandle) {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("handle type %s does not flow into %s", srcHandle, dstHandle))
		}

		// An edge's persisted type tag must match the source handle it
		// claims to carry.
		if e.TypeTag != "" && e.TypeTag != srcHandle {
			result.AddWarning(path+"/typeTag", schema.ErrCodeValidation,
				fmt.Sprintf("type tag %s disagrees with source handle type %s", e.TypeTag, srcHandle))
		}
	}

	if checker != nil {
		for i, n := range doc.Nodes {
			if err := checker.CheckNodeConfig(n); err != nil {
				result.AddError(fmt.Sprintf("/nodes/%d/data", i), schema.ErrCodeValidation, err.Error())
			}
		}
	}

	return result
}
