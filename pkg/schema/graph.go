package schema

// NodeType enumerates the kinds of nodes that can appear on the canvas.
// The set is closed: documents carrying any other type fail semantic validation.
type NodeType string

const (
	NodeTypeInput         NodeType = "input"
	NodeTypeOutput        NodeType = "output"
	NodeTypeLLM           NodeType = "llm"
	NodeTypeTool          NodeType = "tool"
	NodeTypeRouter        NodeType = "router"
	NodeTypeApproval      NodeType = "approval"
	NodeTypeTransform     NodeType = "transform"
	NodeTypeSubworkflow   NodeType = "subworkflow"
	NodeTypeHTTPRequest   NodeType = "http_request"
	NodeTypeFileRead      NodeType = "file_read"
	NodeTypeFileGlob      NodeType = "file_glob"
	NodeTypeFileWrite     NodeType = "file_write"
	NodeTypeShellExec     NodeType = "shell_exec"
	NodeTypeValidator     NodeType = "validator"
	NodeTypeIterator      NodeType = "iterator"
	NodeTypeAggregator    NodeType = "aggregator"
	NodeTypeKnowledgeBase NodeType = "knowledge_base"
)

// NodeTypes lists every valid node type, in palette order.
var NodeTypes = []NodeType{
	NodeTypeInput, NodeTypeOutput, NodeTypeLLM, NodeTypeTool, NodeTypeRouter,
	NodeTypeApproval, NodeTypeTransform, NodeTypeSubworkflow, NodeTypeHTTPRequest,
	NodeTypeFileRead, NodeTypeFileGlob, NodeTypeFileWrite, NodeTypeShellExec,
	NodeTypeValidator, NodeTypeIterator, NodeTypeAggregator, NodeTypeKnowledgeBase,
}

// Valid reports whether t is a member of the closed node type set.
func (t NodeType) Valid() bool {
	for _, nt := range NodeTypes {
		if t == nt {
			return true
		}
	}
	return false
}

// HandleType is the semantic data category of a node port. Edges are only
// accepted between handles whose types are identical, coercible, or `any`.
type HandleType string

const (
	HandleAny    HandleType = "any"
	HandleText   HandleType = "text"
	HandleJSON   HandleType = "json"
	HandleBool   HandleType = "bool"
	HandleNumber HandleType = "number"
	HandleFloat  HandleType = "float"
	HandleRows   HandleType = "rows"
	HandleBinary HandleType = "binary"
)

// HandleTypes lists every valid handle type.
var HandleTypes = []HandleType{
	HandleAny, HandleText, HandleJSON, HandleBool,
	HandleNumber, HandleFloat, HandleRows, HandleBinary,
}

// Valid reports whether h is a member of the closed handle type set.
func (h HandleType) Valid() bool {
	for _, ht := range HandleTypes {
		if h == ht {
			return true
		}
	}
	return false
}

// Position holds canvas coordinates for a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed unit of work in the graph. Data is a type-specific field
// bag edited by the config panel; its shape is checked by validation, not here.
type Node struct {
	ID        string         `json:"id"`
	Type      NodeType       `json:"type"`
	Position  Position       `json:"position"`
	Data      map[string]any `json:"data"`
	Collapsed bool           `json:"collapsed,omitempty"`
}

// Edge is a typed connection between a source handle and a target handle.
// TypeTag is fixed at creation time from the source handle's declared type
// and is never re-derived, even if node configuration later changes.
type Edge struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	SourceHandle string     `json:"sourceHandle,omitempty"`
	Target       string     `json:"target"`
	TargetHandle string     `json:"targetHandle,omitempty"`
	TypeTag      HandleType `json:"typeTag,omitempty"`
}

// Viewport is the persisted pan/zoom state of the canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// GraphDocument is the persisted (and importable/exportable) unit: a
// versionless JSON object holding the full graph. Transient UI state such as
// selection is not part of the document.
type GraphDocument struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// Clipboard is a copied selection: nodes plus the edges internal to it.
type Clipboard struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
