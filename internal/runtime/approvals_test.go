package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestApprovalInbox_AddAndResolve(t *testing.T) {
	inbox := NewApprovalInbox()

	inbox.Add(schema.ApprovalRequest{ID: "a", Message: "first"})
	inbox.Add(schema.ApprovalRequest{ID: "b", Message: "second"})
	require.Equal(t, 2, inbox.Len())

	req, ok := inbox.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, "first", req.Message)
	assert.Equal(t, 1, inbox.Len())

	_, ok = inbox.Resolve("a")
	assert.False(t, ok, "a resolved request is gone")
}

func TestApprovalInbox_PendingOrderedByAge(t *testing.T) {
	inbox := NewApprovalInbox()
	now := time.Now().UTC()

	inbox.Add(schema.ApprovalRequest{ID: "late", RequestedAt: now.Add(time.Minute)})
	inbox.Add(schema.ApprovalRequest{ID: "early", RequestedAt: now})

	pending := inbox.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "early", pending[0].ID)
	assert.Equal(t, "late", pending[1].ID)
}

func TestApprovalInbox_EmptyIDDropped(t *testing.T) {
	inbox := NewApprovalInbox()
	inbox.Add(schema.ApprovalRequest{Message: "no id"})
	assert.Equal(t, 0, inbox.Len())
}

func TestApprovalInbox_DuplicateIDReplaces(t *testing.T) {
	inbox := NewApprovalInbox()
	inbox.Add(schema.ApprovalRequest{ID: "a", Message: "v1"})
	inbox.Add(schema.ApprovalRequest{ID: "a", Message: "v2"})

	require.Equal(t, 1, inbox.Len())
	req, _ := inbox.Get("a")
	assert.Equal(t, "v2", req.Message)
}
