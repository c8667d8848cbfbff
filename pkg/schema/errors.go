package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeExecution   = "EXECUTION_ERROR"
	ErrCodeInvocation  = "INVOCATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeCycle       = "CYCLE_DETECTED"
	ErrCodeMalformed   = "MALFORMED_DOCUMENT"
	ErrCodeStore       = "STORE_ERROR"
	ErrCodeLiveSession = "LIVE_SESSION_ERROR"
)

// FlowdeckError is the structured error type for all flowdeck operations.
type FlowdeckError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowdeckError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowdeckError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowdeckError.
func NewError(code, message string) *FlowdeckError {
	return &FlowdeckError{Code: code, Message: message}
}

// NewErrorf creates a new FlowdeckError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowdeckError {
	return &FlowdeckError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *FlowdeckError) WithNode(nodeID string) *FlowdeckError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowdeckError) WithCause(err error) *FlowdeckError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowdeckError) WithDetails(details map[string]any) *FlowdeckError {
	e.Details = details
	return e
}

// CodeOf returns the code carried by err, or "" when err is not a FlowdeckError.
func CodeOf(err error) string {
	var fe *FlowdeckError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
