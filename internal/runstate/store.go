// Package runstate folds the runtime's node-lifecycle event stream into the
// per-node execution state displayed on the canvas.
//
// The store is the only writer of execution state, and execution state is
// never read back into the graph model: the two stores stay disjoint.
package runstate

import (
	"sync"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// NodeEvent is a decoded node-lifecycle event from the runtime boundary.
type NodeEvent struct {
	Type       string
	NodeID     string
	Output     string
	Error      string
	DurationMs int64
	Tokens     int64
	CostUsd    float64
}

const subscriberBuffer = 128

// Store reconciles inbound node events into per-node state with a
// last-event-wins policy per node id. Events for different nodes are
// independent and commute. The runtime promises not to emit completed
// before started for the same node within a run; the store does not verify
// or reorder; whatever arrives last wins.
type Store struct {
	mu     sync.RWMutex
	states map[string]schema.NodeExecutionState

	subMu  sync.Mutex
	subSeq uint64
	subs   map[uint64]chan schema.NodeExecutionState
}

// NewStore creates an empty execution state store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]schema.NodeExecutionState),
		subs:   make(map[uint64]chan schema.NodeExecutionState),
	}
}

// Apply folds one event into the store. Events with an empty node id or an
// unknown event type are no-ops; nothing on this path ever panics.
func (s *Store) Apply(ev NodeEvent) {
	if ev.NodeID == "" {
		return
	}

	var status schema.NodeStatus
	switch ev.Type {
	case schema.EventNodeStarted:
		status = schema.NodeStatusRunning
	case schema.EventNodeCompleted:
		status = schema.NodeStatusCompleted
	case schema.EventNodeError:
		status = schema.NodeStatusError
	case schema.EventNodeWaiting:
		status = schema.NodeStatusWaiting
	case schema.EventNodeSkipped:
		status = schema.NodeStatusSkipped
	default:
		return
	}

	state := schema.NodeExecutionState{
		NodeID: ev.NodeID,
		Status: status,
	}
	switch status {
	case schema.NodeStatusCompleted:
		state.Output = ev.Output
		state.DurationMs = ev.DurationMs
		state.Tokens = ev.Tokens
		state.CostUsd = ev.CostUsd
	case schema.NodeStatusError:
		state.Error = ev.Error
	}

	s.mu.Lock()
	s.states[ev.NodeID] = state
	s.mu.Unlock()

	s.notify(state)
}

// Get returns the state for a node id. A node with no entry is idle.
func (s *Store) Get(nodeID string) schema.NodeExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[nodeID]; ok {
		return state
	}
	return schema.NodeExecutionState{NodeID: nodeID, Status: schema.NodeStatusIdle}
}

// Has reports whether the store tracks any state for the node id.
func (s *Store) Has(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.states[nodeID]
	return ok
}

// Size returns the number of tracked node states.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Snapshot returns a copy of all tracked states keyed by node id.
func (s *Store) Snapshot() map[string]schema.NodeExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]schema.NodeExecutionState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

// ResetAll clears every node back to absent (idle). Called at the start of
// every run, one-shot and live alike, so stale state from a previous run is
// never displayed. Subscribers receive one idle notification per cleared node.
func (s *Store) ResetAll() {
	s.mu.Lock()
	cleared := make([]string, 0, len(s.states))
	for id := range s.states {
		cleared = append(cleared, id)
	}
	s.states = make(map[string]schema.NodeExecutionState)
	s.mu.Unlock()

	for _, id := range cleared {
		s.notify(schema.NodeExecutionState{NodeID: id, Status: schema.NodeStatusIdle})
	}
}

// Subscribe registers a listener for state changes. Slow subscribers drop
// updates rather than block the event path.
func (s *Store) Subscribe() (<-chan schema.NodeExecutionState, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	ch := make(chan schema.NodeExecutionState, subscriberBuffer)
	s.subs[id] = ch
	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify(state schema.NodeExecutionState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}
