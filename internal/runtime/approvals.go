package runtime

import (
	"sort"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// ApprovalInbox collects approval requests pushed by the runtime until the
// user decides on them. A node sits in waiting state while its request is
// pending; there is no client-side timeout.
type ApprovalInbox struct {
	mu      sync.RWMutex
	pending map[string]schema.ApprovalRequest
}

// NewApprovalInbox creates an empty inbox.
func NewApprovalInbox() *ApprovalInbox {
	return &ApprovalInbox{pending: make(map[string]schema.ApprovalRequest)}
}

// Add records a request. A request with an empty id is dropped; a duplicate
// id replaces the earlier request.
func (a *ApprovalInbox) Add(req schema.ApprovalRequest) {
	if req.ID == "" {
		return
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	a.mu.Lock()
	a.pending[req.ID] = req
	a.mu.Unlock()
}

// Pending returns outstanding requests, oldest first.
func (a *ApprovalInbox) Pending() []schema.ApprovalRequest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]schema.ApprovalRequest, 0, len(a.pending))
	for _, req := range a.pending {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// Get returns the pending request with the given id.
func (a *ApprovalInbox) Get(id string) (schema.ApprovalRequest, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	req, ok := a.pending[id]
	return req, ok
}

// Resolve removes and returns the request once the user has decided.
func (a *ApprovalInbox) Resolve(id string) (schema.ApprovalRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	return req, ok
}

// Len reports the number of outstanding requests.
func (a *ApprovalInbox) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pending)
}
