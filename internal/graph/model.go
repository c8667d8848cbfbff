// Package graph holds the editable workflow graph: nodes, edges and
// viewport, with connection gating, clipboard support and (de)serialization.
//
// The model is a plain observable store. All mutation goes through its
// methods; execution state lives elsewhere and is never written back here.
package graph

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/internal/handles"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// ChangeKind classifies a model mutation for subscribers.
type ChangeKind string

const (
	ChangeNodeAdded   ChangeKind = "node_added"
	ChangeNodeRemoved ChangeKind = "node_removed"
	ChangeNodeUpdated ChangeKind = "node_updated"
	ChangeEdgeAdded   ChangeKind = "edge_added"
	ChangeEdgeRemoved ChangeKind = "edge_removed"
	ChangeReloaded    ChangeKind = "reloaded"
)

// Change describes a single model mutation.
type Change struct {
	Kind   ChangeKind
	NodeID string
	EdgeID string
}

const subscriberBuffer = 64

// duplicateOffset is the fixed position delta applied by DuplicateNode.
const duplicateOffset = 32

// Model is the mutable graph store. Safe for concurrent use, though in
// practice a single editing actor drives all mutation.
type Model struct {
	mu       sync.RWMutex
	nodes    []schema.Node
	edges    []schema.Edge
	viewport schema.Viewport

	counter   uint64
	validator *handles.Validator

	subMu  sync.Mutex
	subSeq uint64
	subs   map[uint64]chan Change
}

// NewModel creates an empty graph model with its own connection validator.
func NewModel() *Model {
	m := &Model{
		viewport: schema.Viewport{Zoom: 1},
		subs:     make(map[uint64]chan Change),
	}
	m.validator = handles.NewValidator(m)
	return m
}

// Validator exposes the connection validator bound to this model.
func (m *Model) Validator() *handles.Validator { return m.validator }

// NodeType implements handles.NodeTypeLookup.
func (m *Model) NodeType(nodeID string) (schema.NodeType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.nodes {
		if m.nodes[i].ID == nodeID {
			return m.nodes[i].Type, true
		}
	}
	return "", false
}

// Subscribe registers a change listener. The returned cancel function must
// be called to release the subscription. Slow subscribers drop changes
// rather than block mutation.
func (m *Model) Subscribe() (<-chan Change, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subSeq++
	id := m.subSeq
	ch := make(chan Change, subscriberBuffer)
	m.subs[id] = ch
	cancel := func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
	return ch, cancel
}

func (m *Model) notify(c Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// nextID generates a fresh node id: type, a per-model monotonic counter and
// a time-based suffix. Unique across a session even with repeated placement
// of the same type.
func (m *Model) nextID(prefix string) string {
	m.counter++
	return fmt.Sprintf("%s-%d-%s", prefix, m.counter,
		strconv.FormatInt(time.Now().UnixMilli(), 36))
}

// AddNode places a new node of the given type and returns it.
func (m *Model) AddNode(nodeType schema.NodeType, pos schema.Position) schema.Node {
	m.mu.Lock()
	node := schema.Node{
		ID:       m.nextID(string(nodeType)),
		Type:     nodeType,
		Position: pos,
		Data:     map[string]any{},
	}
	m.nodes = append(m.nodes, node)
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeNodeAdded, NodeID: node.ID})
	return node
}

// DeleteNode removes a node and every edge touching it. Dangling edges are
// never permitted, so the cascade is unconditional.
func (m *Model) DeleteNode(id string) bool {
	m.mu.Lock()
	idx := -1
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.nodes = append(m.nodes[:idx], m.nodes[idx+1:]...)

	kept := m.edges[:0]
	var removed []string
	for _, e := range m.edges {
		if e.Source == id || e.Target == id {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	m.mu.Unlock()

	for _, eid := range removed {
		m.notify(Change{Kind: ChangeEdgeRemoved, EdgeID: eid})
	}
	m.notify(Change{Kind: ChangeNodeRemoved, NodeID: id})
	return true
}

// UpdateNodeData shallow-merges the given fields into the node's data bag.
func (m *Model) UpdateNodeData(id string, data map[string]any) bool {
	m.mu.Lock()
	var found bool
	for i := range m.nodes {
		if m.nodes[i].ID != id {
			continue
		}
		if m.nodes[i].Data == nil {
			m.nodes[i].Data = map[string]any{}
		}
		for k, v := range data {
			m.nodes[i].Data[k] = v
		}
		found = true
		break
	}
	m.mu.Unlock()

	if found {
		m.notify(Change{Kind: ChangeNodeUpdated, NodeID: id})
	}
	return found
}

// MoveNode updates a node's canvas position.
func (m *Model) MoveNode(id string, pos schema.Position) bool {
	m.mu.Lock()
	var found bool
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			m.nodes[i].Position = pos
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		m.notify(Change{Kind: ChangeNodeUpdated, NodeID: id})
	}
	return found
}

// SetCollapsed toggles a node's collapsed flag.
func (m *Model) SetCollapsed(id string, collapsed bool) bool {
	m.mu.Lock()
	var found bool
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			m.nodes[i].Collapsed = collapsed
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		m.notify(Change{Kind: ChangeNodeUpdated, NodeID: id})
	}
	return found
}

// DuplicateNode copies a node under a fresh id, offset on the canvas so the
// copy never overlaps the original. Data is shallow-copied; execution state
// is not part of the model and is never carried over.
func (m *Model) DuplicateNode(id string) (schema.Node, bool) {
	m.mu.Lock()
	var src *schema.Node
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			src = &m.nodes[i]
			break
		}
	}
	if src == nil {
		m.mu.Unlock()
		return schema.Node{}, false
	}

	dup := schema.Node{
		ID:   m.nextID(string(src.Type)),
		Type: src.Type,
		Position: schema.Position{
			X: src.Position.X + duplicateOffset,
			Y: src.Position.Y + duplicateOffset,
		},
		Data:      copyData(src.Data),
		Collapsed: src.Collapsed,
	}
	m.nodes = append(m.nodes, dup)
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeNodeAdded, NodeID: dup.ID})
	return dup, true
}

// Connect validates a proposed edge and, if accepted, appends it with
// TypeTag stamped from the source handle's declared type. Rejection is
// silent: the graph is left unchanged and no error is produced.
func (m *Model) Connect(sourceNode, sourceHandle, targetNode, targetHandle string) (schema.Edge, bool) {
	if !m.validator.IsValidConnection(sourceNode, sourceHandle, targetNode, targetHandle) {
		return schema.Edge{}, false
	}

	typeTag := m.validator.SourceType(sourceNode, sourceHandle)

	m.mu.Lock()
	edge := schema.Edge{
		ID:           m.nextID("edge"),
		Source:       sourceNode,
		SourceHandle: sourceHandle,
		Target:       targetNode,
		TargetHandle: targetHandle,
		TypeTag:      typeTag,
	}
	m.edges = append(m.edges, edge)
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeEdgeAdded, EdgeID: edge.ID})
	return edge, true
}

// DisconnectEdge removes a single edge by id.
func (m *Model) DisconnectEdge(id string) bool {
	m.mu.Lock()
	idx := -1
	for i := range m.edges {
		if m.edges[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.edges = append(m.edges[:idx], m.edges[idx+1:]...)
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeEdgeRemoved, EdgeID: id})
	return true
}

// SetViewport stores the canvas pan/zoom state.
func (m *Model) SetViewport(v schema.Viewport) {
	m.mu.Lock()
	m.viewport = v
	m.mu.Unlock()
}

// Node returns a copy of the node with the given id.
func (m *Model) Node(id string) (schema.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			n := m.nodes[i]
			n.Data = copyData(n.Data)
			return n, true
		}
	}
	return schema.Node{}, false
}

// Nodes returns a copy of all nodes in insertion order.
func (m *Model) Nodes() []schema.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.Node, len(m.nodes))
	copy(out, m.nodes)
	for i := range out {
		out[i].Data = copyData(out[i].Data)
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (m *Model) Edges() []schema.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// NodeCount returns the number of nodes.
func (m *Model) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount returns the number of edges.
func (m *Model) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
