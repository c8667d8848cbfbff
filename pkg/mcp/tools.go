package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"

	"github.com/flowdeck/flowdeck/internal/diagram"
	"github.com/flowdeck/flowdeck/internal/graph"
	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// cronParser accepts the same five-field expressions the trigger scheduler
// runs.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// handleSave persists a graph document, creating the workflow when needed.
func (s *FlowdeckServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docRaw := mcp.ParseStringMap(req, "document", nil)
	if docRaw == nil {
		return mcp.NewToolResultError("document is required"), nil
	}

	doc, err := decodeDocument(docRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
	}

	workflowID := req.GetString("workflow_id", "")
	if workflowID == "" {
		workflowID = uuid.New().String()
	}

	s.captureSession(ctx, req.GetString("agent_id", ""))

	if saveErr := s.docs.Save(ctx, workflowID, *doc); saveErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", saveErr)), nil
	}

	return marshalResult(map[string]any{"workflow_id": workflowID})
}

// handleLoad fetches a workflow's stored graph document.
func (s *FlowdeckServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	s.captureSession(ctx, req.GetString("agent_id", ""))

	doc, loadErr := s.docs.Load(ctx, workflowID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", loadErr)), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": workflowID,
		"document":    doc,
	})
}

// handleValidate runs the full validation pipeline over an inline document
// or the stored document of a workflow.
func (s *FlowdeckServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc *schema.GraphDocument

	if docRaw := mcp.ParseStringMap(req, "document", nil); docRaw != nil {
		decoded, err := decodeDocument(docRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
		}
		doc = decoded
	} else if workflowID := req.GetString("workflow_id", ""); workflowID != "" {
		loaded, err := s.docs.Load(ctx, workflowID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		doc = &loaded
	} else {
		return mcp.NewToolResultError("either document or workflow_id is required"), nil
	}

	result := s.validator.Validate(doc)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handlePreview renders a graph document as a text diagram. When the
// execution state store has entries, they are overlaid on the nodes.
func (s *FlowdeckServer) handlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc *schema.GraphDocument
	title := "Workflow"

	if docRaw := mcp.ParseStringMap(req, "document", nil); docRaw != nil {
		decoded, err := decodeDocument(docRaw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
		}
		doc = decoded
	} else if workflowID := req.GetString("workflow_id", ""); workflowID != "" {
		loaded, err := s.docs.Load(ctx, workflowID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		doc = &loaded
		title = workflowID
	} else {
		return mcp.NewToolResultError("either document or workflow_id is required"), nil
	}

	var states map[string]schema.NodeExecutionState
	if s.states != nil {
		states = s.states.Snapshot()
	}

	model, err := diagram.Build(title, doc, states)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("preview failed: %v", err)), nil
	}

	format := req.GetString("format", "mermaid")
	var rendered string
	switch format {
	case "mermaid":
		rendered = diagram.RenderMermaid(model)
	case "ascii":
		rendered = diagram.RenderASCII(model)
	case "dot":
		rendered = diagram.RenderDOT(model)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}

	return marshalResult(map[string]any{
		"format":  format,
		"diagram": rendered,
	})
}

// handleRun executes a workflow once.
func (s *FlowdeckServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)

	s.captureSession(ctx, req.GetString("agent_id", ""))

	result, runErr := s.runtime.Run(ctx, workflowID, inputs)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", runErr)), nil
	}

	return marshalResult(result)
}

// handleLiveStart begins a continuous live session.
func (s *FlowdeckServer) handleLiveStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)

	cfg := schema.DefaultLiveConfig()
	if v := req.GetFloat("interval_ms", 0); v > 0 {
		cfg.IntervalMs = int64(v)
	}
	if v := req.GetFloat("max_iterations", 0); v > 0 {
		cfg.MaxIterations = int64(v)
	}
	if v := req.GetString("error_policy", ""); v != "" {
		cfg.ErrorPolicy = schema.ErrorPolicy(v)
	}

	s.captureSession(ctx, req.GetString("agent_id", ""))

	result, startErr := s.live.Start(ctx, workflowID, inputs, cfg)
	if startErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("live start failed: %v", startErr)), nil
	}

	return marshalResult(result)
}

// handleLiveStop ends the active live session.
func (s *FlowdeckServer) handleLiveStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.live.Stop(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("live stop failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"stopped":     true,
		"stop_reason": s.live.StopReason(),
	})
}

// handleApprove resolves a pending approval gate.
func (s *FlowdeckServer) handleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	approvalID, err := req.RequireString("approval_id")
	if err != nil {
		return mcp.NewToolResultError("approval_id is required"), nil
	}
	approve, err := req.RequireBool("approve")
	if err != nil {
		return mcp.NewToolResultError("approve is required"), nil
	}

	s.captureSession(ctx, req.GetString("agent_id", ""))

	if respErr := s.runtime.RespondApproval(ctx, approvalID, approve); respErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("approval response failed: %v", respErr)), nil
	}
	if s.approvals != nil {
		s.approvals.Resolve(approvalID)
	}

	return marshalResult(map[string]any{
		"approval_id": approvalID,
		"approved":    approve,
	})
}

// handleApprovals lists approval requests. The pending view reads the live
// inbox; resolved views come from the persisted approval rows.
func (s *FlowdeckServer) handleApprovals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "pending")

	if status == "pending" {
		if s.approvals == nil {
			return mcp.NewToolResultError("approval inbox is not available"), nil
		}
		pending := s.approvals.Pending()
		return marshalResult(map[string]any{
			"approvals": pending,
			"count":     len(pending),
		})
	}

	var filter store.ApprovalStatus
	switch status {
	case "approved":
		filter = store.ApprovalApproved
	case "rejected":
		filter = store.ApprovalRejected
	case "all":
		filter = ""
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", status)), nil
	}

	rows, err := s.store.ListApprovals(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list approvals failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"approvals": rows,
		"count":     len(rows),
	})
}

// handleHistory inspects past run sessions. Given a session id it replays
// the session's event log into the same per-node states the canvas shows.
func (s *FlowdeckServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run history is not available"), nil
	}

	if sessionID := req.GetString("session_id", ""); sessionID != "" {
		sess, err := s.history.GetSession(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load session failed: %v", err)), nil
		}
		nodeStates, err := s.history.ReplayEvents(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("replay failed: %v", err)), nil
		}
		return marshalResult(map[string]any{
			"session":     sess,
			"node_states": nodeStates,
		})
	}

	limit := req.GetInt("limit", 20)
	sessions, err := s.history.ListSessions(ctx, store.SessionFilter{
		WorkflowID: req.GetString("workflow_id", ""),
		Limit:      limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleSchedule creates a cron trigger for a workflow. The expression is
// parsed up front so a bad schedule fails here instead of inside the
// scheduler loop.
func (s *FlowdeckServer) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	cronExpr, err := req.RequireString("cron")
	if err != nil {
		return mcp.NewToolResultError("cron is required"), nil
	}

	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", err)), nil
	}

	if _, loadErr := s.docs.Load(ctx, workflowID); loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow not found: %v", loadErr)), nil
	}

	next := sched.Next(time.Now().UTC())
	tr := &store.ScheduledTrigger{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		CronExpr:   cronExpr,
		Inputs:     mcp.ParseStringMap(req, "inputs", nil),
		Enabled:    req.GetBool("enabled", true),
		NextRunAt:  &next,
	}
	if err := s.store.CreateTrigger(ctx, tr); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create trigger failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"trigger_id":  tr.ID,
		"next_run_at": next,
	})
}

// handleTriggers lists scheduled triggers.
func (s *FlowdeckServer) handleTriggers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trs, err := s.store.ListTriggers(ctx, store.TriggerFilter{
		EnabledOnly: req.GetBool("enabled_only", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list triggers failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"triggers": trs,
		"count":    len(trs),
	})
}

// --- Internal helpers ---

// decodeDocument converts a tool-call object into a GraphDocument. The raw
// object goes through the same parser as imported files, so a payload missing
// the nodes or edges arrays is rejected before it can be persisted.
func decodeDocument(raw map[string]any) (*schema.GraphDocument, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	doc, err := graph.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// captureSession maps the agent ID to its current MCP session for notifications.
func (s *FlowdeckServer) captureSession(ctx context.Context, agentID string) {
	if agentID == "" {
		return
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(agentID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
