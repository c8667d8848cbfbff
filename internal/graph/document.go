package graph

import (
	"encoding/json"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// ParseDocument decodes raw JSON into a GraphDocument. A document missing
// the nodes or edges arrays is malformed and fails closed: the returned
// document is empty and the error carries a user-presentable message.
func ParseDocument(data []byte) (schema.GraphDocument, error) {
	empty := schema.GraphDocument{Nodes: []schema.Node{}, Edges: []schema.Edge{}}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return empty, schema.NewError(schema.ErrCodeMalformed, "document is not valid JSON").WithCause(err)
	}
	if _, ok := fields["nodes"]; !ok {
		return empty, schema.NewError(schema.ErrCodeMalformed, "document has no nodes array")
	}
	if _, ok := fields["edges"]; !ok {
		return empty, schema.NewError(schema.ErrCodeMalformed, "document has no edges array")
	}

	var doc schema.GraphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return empty, schema.NewError(schema.ErrCodeMalformed, "document shape does not match the graph format").WithCause(err)
	}
	if doc.Nodes == nil {
		doc.Nodes = []schema.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []schema.Edge{}
	}
	return doc, nil
}

// ToDocument snapshots the model into a persistable document.
func (m *Model) ToDocument() schema.GraphDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := schema.GraphDocument{
		Nodes:    make([]schema.Node, len(m.nodes)),
		Edges:    make([]schema.Edge, len(m.edges)),
		Viewport: m.viewport,
	}
	copy(doc.Nodes, m.nodes)
	copy(doc.Edges, m.edges)
	for i := range doc.Nodes {
		doc.Nodes[i].Data = copyData(doc.Nodes[i].Data)
	}
	return doc
}

// FromDocument replaces the model contents with the document. Inverse of
// ToDocument up to floating-point position precision. The id counter is not
// reset, so ids generated after a load never collide with loaded ones only
// by virtue of the time suffix.
func (m *Model) FromDocument(doc schema.GraphDocument) {
	m.mu.Lock()
	m.nodes = make([]schema.Node, len(doc.Nodes))
	m.edges = make([]schema.Edge, len(doc.Edges))
	copy(m.nodes, doc.Nodes)
	copy(m.edges, doc.Edges)
	for i := range m.nodes {
		m.nodes[i].Data = copyData(m.nodes[i].Data)
	}
	m.viewport = doc.Viewport
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeReloaded})
}

// Import parses raw JSON and loads it into the model. On a malformed
// document the model is left unchanged and the error surfaces to the user;
// this is the one validation failure that is not silent.
func (m *Model) Import(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	m.FromDocument(doc)
	return nil
}

// Export serializes the model's document as JSON.
func (m *Model) Export() ([]byte, error) {
	return json.Marshal(m.ToDocument())
}
