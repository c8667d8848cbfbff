// Package handles declares the static handle-type registry and the
// connection compatibility rule used to gate edges between nodes.
//
// The registry is the single source of truth for which ports a node type
// exposes and what semantic type each port carries. It is deliberately
// decoupled from any rendering layer: handle types are resolved by node
// type + handle id, never by introspecting what happens to be on screen.
package handles

import "github.com/flowdeck/flowdeck/pkg/schema"

// Direction distinguishes a node's source (output) handles from its
// target (input) handles.
type Direction int

const (
	Output Direction = iota
	Input
)

// HandleSpec is one declared port on a node type.
type HandleSpec struct {
	ID   string
	Type schema.HandleType
}

type nodeHandles struct {
	Inputs  []HandleSpec
	Outputs []HandleSpec
}

// registry maps every node type to its fixed set of named handles. The
// first handle in each direction is the default, used when an edge carries
// a null handle id. Types follow the data each executor produces: file
// readers emit text or rows depending on mode, shell_exec splits stdout
// from the numeric exit code, and llm exposes token/cost telemetry ports.
var registry = map[schema.NodeType]nodeHandles{
	schema.NodeTypeInput: {
		Outputs: []HandleSpec{{"value", schema.HandleText}},
	},
	schema.NodeTypeOutput: {
		Inputs: []HandleSpec{{"value", schema.HandleText}},
	},
	schema.NodeTypeLLM: {
		Inputs: []HandleSpec{
			{"prompt", schema.HandleText},
			{"system", schema.HandleText},
		},
		Outputs: []HandleSpec{
			{"response", schema.HandleText},
			{"tokens", schema.HandleNumber},
			{"cost", schema.HandleFloat},
		},
	},
	schema.NodeTypeTool: {
		Inputs:  []HandleSpec{{"input", schema.HandleJSON}},
		Outputs: []HandleSpec{{"result", schema.HandleJSON}},
	},
	schema.NodeTypeRouter: {
		Inputs: []HandleSpec{{"input", schema.HandleBool}},
		Outputs: []HandleSpec{
			{"true", schema.HandleAny},
			{"false", schema.HandleAny},
		},
	},
	schema.NodeTypeApproval: {
		Inputs: []HandleSpec{{"input", schema.HandleAny}},
		Outputs: []HandleSpec{
			{"approved", schema.HandleAny},
			{"rejected", schema.HandleAny},
		},
	},
	schema.NodeTypeTransform: {
		Inputs:  []HandleSpec{{"input", schema.HandleAny}},
		Outputs: []HandleSpec{{"output", schema.HandleText}},
	},
	schema.NodeTypeSubworkflow: {
		Inputs:  []HandleSpec{{"input", schema.HandleJSON}},
		Outputs: []HandleSpec{{"output", schema.HandleJSON}},
	},
	schema.NodeTypeHTTPRequest: {
		Inputs: []HandleSpec{
			{"url", schema.HandleText},
			{"body", schema.HandleText},
		},
		Outputs: []HandleSpec{
			{"response", schema.HandleJSON},
			{"status", schema.HandleNumber},
		},
	},
	schema.NodeTypeFileRead: {
		Inputs: []HandleSpec{{"path", schema.HandleText}},
		Outputs: []HandleSpec{
			{"content", schema.HandleText},
			{"rows", schema.HandleRows},
			{"raw", schema.HandleBinary},
		},
	},
	schema.NodeTypeFileGlob: {
		Inputs: []HandleSpec{{"directory", schema.HandleText}},
		Outputs: []HandleSpec{
			{"files", schema.HandleRows},
			{"content", schema.HandleText},
		},
	},
	schema.NodeTypeFileWrite: {
		Inputs: []HandleSpec{
			{"content", schema.HandleText},
			{"path", schema.HandleText},
		},
		Outputs: []HandleSpec{{"path", schema.HandleText}},
	},
	schema.NodeTypeShellExec: {
		Inputs: []HandleSpec{
			{"command", schema.HandleText},
			{"stdin", schema.HandleText},
		},
		Outputs: []HandleSpec{
			{"stdout", schema.HandleText},
			{"exitCode", schema.HandleNumber},
		},
	},
	schema.NodeTypeValidator: {
		Inputs: []HandleSpec{{"input", schema.HandleJSON}},
		Outputs: []HandleSpec{
			{"valid", schema.HandleBool},
			{"output", schema.HandleJSON},
		},
	},
	schema.NodeTypeIterator: {
		Inputs: []HandleSpec{{"items", schema.HandleRows}},
		Outputs: []HandleSpec{
			{"item", schema.HandleJSON},
			{"index", schema.HandleNumber},
		},
	},
	schema.NodeTypeAggregator: {
		Inputs: []HandleSpec{
			{"in1", schema.HandleAny},
			{"in2", schema.HandleAny},
			{"in3", schema.HandleAny},
		},
		Outputs: []HandleSpec{{"output", schema.HandleJSON}},
	},
	schema.NodeTypeKnowledgeBase: {
		Inputs:  []HandleSpec{{"query", schema.HandleText}},
		Outputs: []HandleSpec{{"results", schema.HandleRows}},
	},
}

// Resolve returns the declared type of a handle. An empty handle id resolves
// to the node type's default handle in that direction. Unknown node types or
// handle ids return ok=false; callers must treat that as a hard miss, not as
// a permissive `any`.
func Resolve(nodeType schema.NodeType, handleID string, dir Direction) (schema.HandleType, bool) {
	nh, ok := registry[nodeType]
	if !ok {
		return "", false
	}
	specs := nh.Outputs
	if dir == Input {
		specs = nh.Inputs
	}
	if len(specs) == 0 {
		return "", false
	}
	if handleID == "" {
		return specs[0].Type, true
	}
	for _, s := range specs {
		if s.ID == handleID {
			return s.Type, true
		}
	}
	return "", false
}

// Handles returns the declared handles of a node type in a direction.
// The returned slice must not be mutated.
func Handles(nodeType schema.NodeType, dir Direction) []HandleSpec {
	nh, ok := registry[nodeType]
	if !ok {
		return nil
	}
	if dir == Input {
		return nh.Inputs
	}
	return nh.Outputs
}

// HasHandle reports whether a node type declares the given handle id in the
// given direction. An empty id counts as the default handle when the node
// declares at least one handle in that direction.
func HasHandle(nodeType schema.NodeType, handleID string, dir Direction) bool {
	_, ok := Resolve(nodeType, handleID, dir)
	return ok
}
