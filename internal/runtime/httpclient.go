package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// HTTPRuntime is the production Runtime transport: a JSON client for the
// execution runtime's HTTP API. Every failure to reach the runtime or
// decode its response surfaces as an invocation error, keeping transport
// problems distinct from workflow failures the runtime reports in-band.
type HTTPRuntime struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRuntime creates a client for the runtime listening at baseURL.
func NewHTTPRuntime(baseURL string, timeout time.Duration) *HTTPRuntime {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRuntime{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type runRequest struct {
	WorkflowID string         `json:"workflowId"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

type liveStartRequest struct {
	WorkflowID string            `json:"workflowId"`
	Inputs     map[string]any    `json:"inputs,omitempty"`
	Config     schema.LiveConfig `json:"config"`
}

type approvalRequest struct {
	Approve bool `json:"approve"`
}

// RunWorkflow executes a workflow once.
func (r *HTTPRuntime) RunWorkflow(ctx context.Context, workflowID string, inputs map[string]any) (schema.RunResult, error) {
	var result schema.RunResult
	err := r.post(ctx, "/v1/run", runRequest{WorkflowID: workflowID, Inputs: inputs}, &result)
	return result, err
}

// StartLive begins a continuous live session.
func (r *HTTPRuntime) StartLive(ctx context.Context, workflowID string, inputs map[string]any, cfg schema.LiveConfig) (schema.StartLiveResult, error) {
	var result schema.StartLiveResult
	err := r.post(ctx, "/v1/live/start", liveStartRequest{WorkflowID: workflowID, Inputs: inputs, Config: cfg}, &result)
	return result, err
}

// StopLive ends the live session for a workflow.
func (r *HTTPRuntime) StopLive(ctx context.Context, workflowID string) error {
	return r.post(ctx, "/v1/live/stop", runRequest{WorkflowID: workflowID}, nil)
}

// RespondApproval answers a pending approval gate.
func (r *HTTPRuntime) RespondApproval(ctx context.Context, approvalID string, approve bool) error {
	return r.post(ctx, "/v1/approvals/"+approvalID, approvalRequest{Approve: approve}, nil)
}

func (r *HTTPRuntime) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return schema.NewError(schema.ErrCodeInvocation, "encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return schema.NewError(schema.ErrCodeInvocation, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeInvocation, "runtime unreachable: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.NewError(schema.ErrCodeInvocation, "read response").WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return decodeRuntimeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return schema.NewError(schema.ErrCodeInvocation, "decode response").WithCause(err)
	}
	return nil
}

// decodeRuntimeError maps a non-2xx response to a FlowdeckError, preserving
// the runtime's structured code when the body carries one.
func decodeRuntimeError(status int, data []byte) error {
	var fe schema.FlowdeckError
	if err := json.Unmarshal(data, &fe); err == nil && fe.Code != "" {
		return &fe
	}
	return schema.NewErrorf(schema.ErrCodeInvocation, "runtime returned status %d: %s",
		status, firstLine(data))
}

func firstLine(data []byte) string {
	const max = 200
	s := string(data)
	for i, c := range s {
		if c == '\n' || i >= max {
			return s[:i]
		}
	}
	return s
}

var _ Runtime = (*HTTPRuntime)(nil)
