package runtime

import (
	"encoding/json"

	"github.com/flowdeck/flowdeck/internal/runstate"
	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// nodeEventPayload is the wire shape of workflow.node.* payloads. The
// runtime sends snake_case fields and up to three output variants.
type nodeEventPayload struct {
	NodeID        string  `json:"node_id"`
	Output        string  `json:"output"`
	OutputPreview string  `json:"output_preview"`
	OutputFull    string  `json:"output_full"`
	Error         string  `json:"error"`
	DurationMs    int64   `json:"duration_ms"`
	Tokens        int64   `json:"tokens"`
	CostUsd       float64 `json:"cost_usd"`
}

// pickOutput selects the richest output variant present.
func (p nodeEventPayload) pickOutput() string {
	if p.OutputFull != "" {
		return p.OutputFull
	}
	if p.OutputPreview != "" {
		return p.OutputPreview
	}
	return p.Output
}

// approvalPayload is the wire shape of workflow_approval_requested.
type approvalPayload struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	DataPreview string `json:"dataPreview"`
}

func isNodeEvent(eventType string) bool {
	switch eventType {
	case schema.EventNodeStarted, schema.EventNodeCompleted, schema.EventNodeError,
		schema.EventNodeWaiting, schema.EventNodeSkipped:
		return true
	}
	return false
}

// decodeNodeEvent turns a stream event into a runstate.NodeEvent. The node
// id may arrive in the payload or on the envelope; the payload wins.
func decodeNodeEvent(ev streaming.StreamEvent) (runstate.NodeEvent, error) {
	var p nodeEventPayload
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return runstate.NodeEvent{}, err
		}
	}
	nodeID := p.NodeID
	if nodeID == "" {
		nodeID = ev.NodeID
	}
	return runstate.NodeEvent{
		Type:       ev.EventType,
		NodeID:     nodeID,
		Output:     p.pickOutput(),
		Error:      p.Error,
		DurationMs: p.DurationMs,
		Tokens:     p.Tokens,
		CostUsd:    p.CostUsd,
	}, nil
}
