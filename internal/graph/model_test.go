package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestAddNode_UniqueIDs(t *testing.T) {
	m := NewModel()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n := m.AddNode(schema.NodeTypeLLM, schema.Position{X: float64(i), Y: 0})
		assert.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
	}
	assert.Equal(t, 50, m.NodeCount())
}

func TestConnect_AcceptStampsTypeTag(t *testing.T) {
	m := NewModel()
	in := m.AddNode(schema.NodeTypeInput, schema.Position{})
	llm := m.AddNode(schema.NodeTypeLLM, schema.Position{X: 200})

	edge, ok := m.Connect(in.ID, "value", llm.ID, "prompt")
	require.True(t, ok)
	assert.Equal(t, schema.HandleText, edge.TypeTag)
	assert.Equal(t, in.ID, edge.Source)
	assert.Equal(t, llm.ID, edge.Target)
	assert.Equal(t, 1, m.EdgeCount())
}

func TestConnect_SilentRejection(t *testing.T) {
	m := NewModel()
	llm := m.AddNode(schema.NodeTypeLLM, schema.Position{})
	rt := m.AddNode(schema.NodeTypeRouter, schema.Position{X: 200})

	// text -> bool: rejected, graph unchanged
	_, ok := m.Connect(llm.ID, "response", rt.ID, "input")
	assert.False(t, ok)
	assert.Equal(t, 0, m.EdgeCount())

	// self-loop: rejected regardless of handle types
	_, ok = m.Connect(llm.ID, "response", llm.ID, "prompt")
	assert.False(t, ok)
	assert.Equal(t, 0, m.EdgeCount())
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	m := NewModel()
	in := m.AddNode(schema.NodeTypeInput, schema.Position{})
	llm := m.AddNode(schema.NodeTypeLLM, schema.Position{})
	tr := m.AddNode(schema.NodeTypeTransform, schema.Position{})
	out := m.AddNode(schema.NodeTypeOutput, schema.Position{})

	_, ok := m.Connect(in.ID, "value", llm.ID, "prompt")
	require.True(t, ok)
	_, ok = m.Connect(llm.ID, "response", tr.ID, "input")
	require.True(t, ok)
	_, ok = m.Connect(tr.ID, "output", out.ID, "value")
	require.True(t, ok)
	require.Equal(t, 3, m.EdgeCount())

	// llm touches two of the three edges
	require.True(t, m.DeleteNode(llm.ID))
	assert.Equal(t, 3, m.NodeCount())
	assert.Equal(t, 1, m.EdgeCount())

	for _, e := range m.Edges() {
		assert.NotEqual(t, llm.ID, e.Source)
		assert.NotEqual(t, llm.ID, e.Target)
	}
}

func TestDeleteNode_Unknown(t *testing.T) {
	m := NewModel()
	assert.False(t, m.DeleteNode("ghost"))
}

func TestUpdateNodeData_ShallowMerge(t *testing.T) {
	m := NewModel()
	n := m.AddNode(schema.NodeTypeLLM, schema.Position{})

	require.True(t, m.UpdateNodeData(n.ID, map[string]any{"model": "gpt", "temperature": 0.2}))
	require.True(t, m.UpdateNodeData(n.ID, map[string]any{"temperature": 0.7}))

	got, ok := m.Node(n.ID)
	require.True(t, ok)
	assert.Equal(t, "gpt", got.Data["model"])
	assert.Equal(t, 0.7, got.Data["temperature"])
}

func TestDuplicateNode(t *testing.T) {
	m := NewModel()
	n := m.AddNode(schema.NodeTypeTool, schema.Position{X: 100, Y: 50})
	m.UpdateNodeData(n.ID, map[string]any{"name": "search"})

	dup, ok := m.DuplicateNode(n.ID)
	require.True(t, ok)
	assert.NotEqual(t, n.ID, dup.ID)
	assert.Equal(t, schema.NodeTypeTool, dup.Type)
	assert.Equal(t, 132.0, dup.Position.X)
	assert.Equal(t, 82.0, dup.Position.Y)
	assert.Equal(t, "search", dup.Data["name"])

	// shallow copy: mutating the duplicate's data never touches the original
	m.UpdateNodeData(dup.ID, map[string]any{"name": "fetch"})
	orig, _ := m.Node(n.ID)
	assert.Equal(t, "search", orig.Data["name"])
}

func TestSubscribe_NotifiesChanges(t *testing.T) {
	m := NewModel()
	ch, cancel := m.Subscribe()
	defer cancel()

	n := m.AddNode(schema.NodeTypeInput, schema.Position{})

	change := <-ch
	assert.Equal(t, ChangeNodeAdded, change.Kind)
	assert.Equal(t, n.ID, change.NodeID)
}

func TestRoundTrip_Document(t *testing.T) {
	m := NewModel()
	in := m.AddNode(schema.NodeTypeInput, schema.Position{X: 10, Y: 20})
	llm := m.AddNode(schema.NodeTypeLLM, schema.Position{X: 300, Y: 20})
	m.UpdateNodeData(llm.ID, map[string]any{"model": "local"})
	_, ok := m.Connect(in.ID, "value", llm.ID, "prompt")
	require.True(t, ok)
	m.SetViewport(schema.Viewport{X: -50, Y: 25, Zoom: 1.5})

	doc := m.ToDocument()

	m2 := NewModel()
	m2.FromDocument(doc)
	assert.Equal(t, doc, m2.ToDocument())
}

func TestFromDocument_ReplacesContents(t *testing.T) {
	m := NewModel()
	m.AddNode(schema.NodeTypeInput, schema.Position{})
	m.AddNode(schema.NodeTypeOutput, schema.Position{})

	m.FromDocument(schema.GraphDocument{
		Nodes: []schema.Node{{ID: "x-1", Type: schema.NodeTypeTool, Data: map[string]any{}}},
		Edges: []schema.Edge{},
	})
	assert.Equal(t, 1, m.NodeCount())
	assert.Equal(t, 0, m.EdgeCount())
}

func TestImport_EmptyDocument(t *testing.T) {
	m := NewModel()
	err := m.Import([]byte(`{"nodes":[],"edges":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, m.NodeCount())
}

func TestImport_MalformedRejectedNoChange(t *testing.T) {
	m := NewModel()
	n := m.AddNode(schema.NodeTypeInput, schema.Position{})

	err := m.Import([]byte(`{"foo":1}`))
	require.Error(t, err)
	var fdErr *schema.FlowdeckError
	require.ErrorAs(t, err, &fdErr)
	assert.Equal(t, schema.ErrCodeMalformed, fdErr.Code)

	// graph unchanged
	assert.Equal(t, 1, m.NodeCount())
	_, ok := m.Node(n.ID)
	assert.True(t, ok)
}

func TestImport_NotJSON(t *testing.T) {
	m := NewModel()
	err := m.Import([]byte(`not json`))
	require.Error(t, err)
}
