package diagram

// NodeKind classifies a diagram node by the shape it renders with.
type NodeKind string

const (
	NodeKindEntry     NodeKind = "entry"
	NodeKindExit      NodeKind = "exit"
	NodeKindDecision  NodeKind = "decision"
	NodeKindGate      NodeKind = "gate"
	NodeKindTransform NodeKind = "transform"
	NodeKindFan       NodeKind = "fan"
	NodeKindTask      NodeKind = "task"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single canvas node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries per-node execution state for a node.
type StatusOverlay struct {
	Status     string // from schema.NodeStatus
	DurationMs int64
	Tokens     int64
	Error      string
}

// Edge represents a typed connection between two nodes. Label carries the
// edge's type tag when one is set.
type Edge struct {
	From  string
	To    string
	Label string
}
