package schema

import "time"

// ApprovalRequest is emitted by the runtime when an approval node blocks.
// The node stays in NodeStatusWaiting until a decision arrives; no timeout
// is enforced on this side.
type ApprovalRequest struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	NodeID      string    `json:"nodeId,omitempty"`
	Message     string    `json:"message"`
	DataPreview string    `json:"dataPreview,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ApprovalDecision is the reply sent back over the runtime boundary.
type ApprovalDecision struct {
	ID      string `json:"id"`
	Approve bool   `json:"approve"`
}
