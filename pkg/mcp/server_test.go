package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlowdeckServer(t *testing.T) {
	s := newTestServer(t, newMockDocStore(), &mockRuntime{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.sessions)
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t, newMockDocStore(), &mockRuntime{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 12)

	expectedTools := []string{
		"flowdeck.save",
		"flowdeck.load",
		"flowdeck.validate",
		"flowdeck.preview",
		"flowdeck.run",
		"flowdeck.live_start",
		"flowdeck.live_stop",
		"flowdeck.approve",
		"flowdeck.approvals",
		"flowdeck.history",
		"flowdeck.schedule",
		"flowdeck.triggers",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"save", "flowdeck.save", "Persist a workflow graph document. Creates the workflow if it does not exist"},
		{"load", "flowdeck.load", "Load a workflow's graph document"},
		{"preview", "flowdeck.preview", "Render a workflow graph as a text diagram, with execution state overlaid when available"},
		{"run", "flowdeck.run", "Execute a workflow once and return the run result"},
		{"live_stop", "flowdeck.live_stop", "Stop the active live session. The feed is kept for inspection"},
		{"approve", "flowdeck.approve", "Respond to a pending approval gate"},
		{"schedule", "flowdeck.schedule", "Create a cron trigger that runs a workflow on a schedule"},
		{"triggers", "flowdeck.triggers", "List scheduled triggers"},
	}

	s := newTestServer(t, newMockDocStore(), &mockRuntime{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
