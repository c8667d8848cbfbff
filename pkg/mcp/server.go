package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flowdeck/flowdeck/internal/live"
	"github.com/flowdeck/flowdeck/internal/runstate"
	"github.com/flowdeck/flowdeck/internal/runtime"
	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/internal/validation"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// RunHistory reads persisted run sessions and replays their event logs into
// per-node states. Satisfied by store.EventLog.
type RunHistory interface {
	GetSession(ctx context.Context, id string) (*store.RunSession, error)
	ListSessions(ctx context.Context, filter store.SessionFilter) ([]*store.RunSession, error)
	ReplayEvents(ctx context.Context, sessionID string) (map[string]schema.NodeExecutionState, error)
}

// FlowdeckServerDeps holds the dependencies for creating a FlowdeckServer.
type FlowdeckServerDeps struct {
	Store     store.Store
	Validator *validation.GraphValidator
	Runtime   *runtime.Service
	Live      *live.Controller
	Hub       streaming.EventHub
	States    *runstate.Store
	Approvals *runtime.ApprovalInbox
	History   RunHistory
	Logger    *slog.Logger
}

// FlowdeckServer wraps an MCP server with flowdeck-specific tool handlers,
// giving agents the same operations the canvas exposes: persist and load
// graph documents, validate them, run workflows, and drive live sessions.
type FlowdeckServer struct {
	store     store.Store
	docs      *store.PersistenceAdapter
	validator *validation.GraphValidator
	runtime   *runtime.Service
	live      *live.Controller
	hub       streaming.EventHub
	states    *runstate.Store
	approvals *runtime.ApprovalInbox
	history   RunHistory
	sessions  *SessionRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowdeckServer creates a new FlowdeckServer with all tools registered.
func NewFlowdeckServer(deps FlowdeckServerDeps) *FlowdeckServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &FlowdeckServer{
		store:     deps.Store,
		docs:      store.NewPersistenceAdapter(deps.Store),
		validator: deps.Validator,
		runtime:   deps.Runtime,
		live:      deps.Live,
		hub:       deps.Hub,
		states:    deps.States,
		approvals: deps.Approvals,
		history:   deps.History,
		sessions:  NewSessionRegistry(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowdeck",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowdeck is a visual workflow editor. Use flowdeck.save/flowdeck.load to persist and fetch graph documents, flowdeck.validate to check a graph, flowdeck.preview to render it as a text diagram, flowdeck.run for one-shot execution, flowdeck.live_start/flowdeck.live_stop for continuous sessions, flowdeck.approve and flowdeck.approvals for approval gates, flowdeck.history for past run sessions, and flowdeck.schedule/flowdeck.triggers for cron triggers."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowdeckServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowdeckServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sessions returns the agent session registry.
func (s *FlowdeckServer) Sessions() *SessionRegistry {
	return s.sessions
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *FlowdeckServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: loadTool(), Handler: s.handleLoad},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: previewTool(), Handler: s.handlePreview},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: liveStartTool(), Handler: s.handleLiveStart},
		{Tool: liveStopTool(), Handler: s.handleLiveStop},
		{Tool: approveTool(), Handler: s.handleApprove},
		{Tool: approvalsTool(), Handler: s.handleApprovals},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: triggersTool(), Handler: s.handleTriggers},
	}
}

// --- Tool definitions ---

func saveTool() mcp.Tool {
	return mcp.NewTool("flowdeck.save",
		mcp.WithDescription("Persist a workflow graph document. Creates the workflow if it does not exist"),
		mcp.WithString("workflow_id", mcp.Description("Workflow ID (generated when omitted)")),
		mcp.WithObject("document", mcp.Required(), mcp.Description("Graph document with nodes, edges, and viewport")),
		mcp.WithString("agent_id", mcp.Description("ID of the calling agent, used for push notifications")),
	)
}

func loadTool() mcp.Tool {
	return mcp.NewTool("flowdeck.load",
		mcp.WithDescription("Load a workflow's graph document"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to load")),
		mcp.WithString("agent_id", mcp.Description("ID of the calling agent, used for push notifications")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flowdeck.validate",
		mcp.WithDescription("Validate a graph document: structure, connections, node configuration, and cycles. Returns errors and warnings"),
		mcp.WithString("workflow_id", mcp.Description("Validate the stored document of this workflow")),
		mcp.WithObject("document", mcp.Description("Validate this inline document instead of a stored one")),
	)
}

func previewTool() mcp.Tool {
	return mcp.NewTool("flowdeck.preview",
		mcp.WithDescription("Render a workflow graph as a text diagram, with execution state overlaid when available"),
		mcp.WithString("workflow_id", mcp.Description("Render the stored document of this workflow")),
		mcp.WithObject("document", mcp.Description("Render this inline document instead of a stored one")),
		mcp.WithString("format", mcp.Enum("mermaid", "ascii", "dot"),
			mcp.Description("Output format (default mermaid)")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("flowdeck.run",
		mcp.WithDescription("Execute a workflow once and return the run result"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to run")),
		mcp.WithObject("inputs", mcp.Description("Input values for the workflow's input nodes")),
		mcp.WithString("agent_id", mcp.Description("ID of the calling agent, used for push notifications")),
	)
}

func liveStartTool() mcp.Tool {
	return mcp.NewTool("flowdeck.live_start",
		mcp.WithDescription("Start a continuous live session for a workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to run continuously")),
		mcp.WithObject("inputs", mcp.Description("Input values for each iteration")),
		mcp.WithNumber("interval_ms", mcp.Description("Delay between iterations in milliseconds (default 5000)")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration cap (default 1000)")),
		mcp.WithString("error_policy", mcp.Enum("stop", "skip"),
			mcp.Description("What a failed iteration does to the session (default skip)")),
		mcp.WithString("agent_id", mcp.Description("ID of the calling agent, used for push notifications")),
	)
}

func liveStopTool() mcp.Tool {
	return mcp.NewTool("flowdeck.live_stop",
		mcp.WithDescription("Stop the active live session. The feed is kept for inspection"),
	)
}

func approveTool() mcp.Tool {
	return mcp.NewTool("flowdeck.approve",
		mcp.WithDescription("Respond to a pending approval gate"),
		mcp.WithString("approval_id", mcp.Required(), mcp.Description("ID of the pending approval request")),
		mcp.WithBoolean("approve", mcp.Required(), mcp.Description("true to approve, false to reject")),
		mcp.WithString("agent_id", mcp.Description("ID of the calling agent, used for push notifications")),
	)
}

func approvalsTool() mcp.Tool {
	return mcp.NewTool("flowdeck.approvals",
		mcp.WithDescription("List approval requests. Pending requests come from the live inbox; resolved ones from the store"),
		mcp.WithString("status", mcp.Enum("pending", "approved", "rejected", "all"),
			mcp.Description("Which approvals to list (default pending)")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("flowdeck.history",
		mcp.WithDescription("Inspect past run sessions. With session_id, replays the session's event log into per-node states"),
		mcp.WithString("session_id", mcp.Description("Replay this session's event log")),
		mcp.WithString("workflow_id", mcp.Description("List sessions of this workflow only")),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to list (default 20)")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("flowdeck.schedule",
		mcp.WithDescription("Create a cron trigger that runs a workflow on a schedule"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to schedule")),
		mcp.WithString("cron", mcp.Required(), mcp.Description("Five-field cron expression, e.g. */5 * * * *")),
		mcp.WithObject("inputs", mcp.Description("Input values for each triggered run")),
		mcp.WithBoolean("enabled", mcp.Description("Whether the trigger starts enabled (default true)")),
	)
}

func triggersTool() mcp.Tool {
	return mcp.NewTool("flowdeck.triggers",
		mcp.WithDescription("List scheduled triggers"),
		mcp.WithBoolean("enabled_only", mcp.Description("List only enabled triggers")),
	)
}
