package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestValidateSemanticAcceptsValidDocument(t *testing.T) {
	result := validateSemantic(validDoc(), nil)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidateSemanticEdgeErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc *schema.GraphDocument)
		wantPath string
		wantMsg  string
	}{
		{
			name:     "missing source node",
			mutate:   func(doc *schema.GraphDocument) { doc.Edges[0].Source = "ghost" },
			wantPath: "/edges/0/source",
			wantMsg:  "non-existent node",
		},
		{
			name:     "missing target node",
			mutate:   func(doc *schema.GraphDocument) { doc.Edges[1].Target = "ghost" },
			wantPath: "/edges/1/target",
			wantMsg:  "non-existent node",
		},
		{
			name: "self loop",
			mutate: func(doc *schema.GraphDocument) {
				doc.Edges[0].Target = "in"
				doc.Edges[0].TargetHandle = ""
			},
			wantPath: "/edges/0",
			wantMsg:  "self loop",
		},
		{
			name:     "unknown source handle",
			mutate:   func(doc *schema.GraphDocument) { doc.Edges[0].SourceHandle = "sparkle" },
			wantPath: "/edges/0/sourceHandle",
			wantMsg:  "no output handle",
		},
		{
			name:     "unknown target handle",
			mutate:   func(doc *schema.GraphDocument) { doc.Edges[0].TargetHandle = "sparkle" },
			wantPath: "/edges/0/targetHandle",
			wantMsg:  "no input handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)

			result := validateSemantic(doc, nil)
			require.False(t, result.Valid())
			assert.Equal(t, tt.wantPath, result.Errors[0].Path)
			assert.Contains(t, result.Errors[0].Message, tt.wantMsg)
		})
	}
}

func TestValidateSemanticIncompatibleHandles(t *testing.T) {
	// llm tokens (number) into router input (bool): no coercion exists.
	doc := &schema.GraphDocument{
		Nodes: []schema.Node{
			{ID: "llm", Type: schema.NodeTypeLLM},
			{ID: "router", Type: schema.NodeTypeRouter},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "llm", SourceHandle: "tokens", Target: "router", TargetHandle: "input"},
		},
	}

	result := validateSemantic(doc, nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "does not flow into")
}

func TestValidateSemanticEmptyHandleResolvesDefault(t *testing.T) {
	// Omitted handle ids fall back to each node type's first declared handle.
	doc := &schema.GraphDocument{
		Nodes: []schema.Node{
			{ID: "in", Type: schema.NodeTypeInput},
			{ID: "out", Type: schema.NodeTypeOutput},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "in", Target: "out"},
		},
	}

	assert.True(t, validateSemantic(doc, nil).Valid())
}

func TestValidateSemanticTypeTagMismatchWarns(t *testing.T) {
	doc := validDoc()
	doc.Edges[0].TypeTag = schema.HandleRows

	result := validateSemantic(doc, nil)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "/edges/0/typeTag", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "disagrees")
}

type failingChecker struct {
	failType schema.NodeType
	msg      string
}

func (c *failingChecker) CheckNodeConfig(node schema.Node) error {
	if node.Type == c.failType {
		return errors.New(c.msg)
	}
	return nil
}

func TestValidateSemanticConfigCheck(t *testing.T) {
	doc := validDoc()
	checker := &failingChecker{failType: schema.NodeTypeLLM, msg: "prompt template is malformed"}

	result := validateSemantic(doc, checker)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "/nodes/1/data", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, "prompt template is malformed")
}
