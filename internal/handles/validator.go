package handles

import "github.com/flowdeck/flowdeck/pkg/schema"

// NodeTypeLookup resolves a node id to its type. Satisfied by the graph model.
type NodeTypeLookup interface {
	NodeType(nodeID string) (schema.NodeType, bool)
}

// Validator gates which nodes may be wired together. Rejection is silent:
// callers observe only the boolean; no error object is produced.
type Validator struct {
	nodes NodeTypeLookup
}

// NewValidator creates a Validator resolving node types through the lookup.
func NewValidator(nodes NodeTypeLookup) *Validator {
	return &Validator{nodes: nodes}
}

// IsValidConnection applies the connection rules in order, first match wins:
//
//  1. Self-loops are rejected regardless of handle types.
//  2. Both endpoint types must resolve in the registry; a miss rejects.
//  3. `any` on either side accepts.
//  4. Identical types accept.
//  5. A coercion listed in the table accepts.
//  6. Everything else rejects.
func (v *Validator) IsValidConnection(sourceNode, sourceHandle, targetNode, targetHandle string) bool {
	if sourceNode == targetNode {
		return false
	}

	srcType, ok := v.nodes.NodeType(sourceNode)
	if !ok {
		return false
	}
	dstType, ok := v.nodes.NodeType(targetNode)
	if !ok {
		return false
	}

	src, ok := Resolve(srcType, sourceHandle, Output)
	if !ok {
		return false
	}
	dst, ok := Resolve(dstType, targetHandle, Input)
	if !ok {
		return false
	}

	return Compatible(src, dst)
}

// SourceType resolves the declared type of a source handle, for stamping an
// edge's TypeTag at creation. Returns HandleAny when the node id is unknown
// so callers can still tag edges loaded from foreign documents.
func (v *Validator) SourceType(sourceNode, sourceHandle string) schema.HandleType {
	nt, ok := v.nodes.NodeType(sourceNode)
	if !ok {
		return schema.HandleAny
	}
	ht, ok := Resolve(nt, sourceHandle, Output)
	if !ok {
		return schema.HandleAny
	}
	return ht
}
