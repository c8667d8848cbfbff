package graph

import "github.com/flowdeck/flowdeck/pkg/schema"

// CopySelection captures the selected nodes and only the edges whose both
// endpoints are inside the selection. Edges crossing the selection boundary
// are dropped, never retargeted.
func (m *Model) CopySelection(nodeIDs []string) schema.Clipboard {
	selected := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		selected[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cb := schema.Clipboard{}
	for _, n := range m.nodes {
		if !selected[n.ID] {
			continue
		}
		c := n
		c.Data = copyData(n.Data)
		cb.Nodes = append(cb.Nodes, c)
	}
	for _, e := range m.edges {
		if selected[e.Source] && selected[e.Target] {
			cb.Edges = append(cb.Edges, e)
		}
	}
	return cb
}

// Paste inserts the clipboard contents under fresh ids. Every copied node id
// is remapped through an id map, copied edges are rewritten through that map,
// and positions are shifted by the offset so pasted nodes never exactly
// overlap the originals. Returns the pasted nodes.
func (m *Model) Paste(cb schema.Clipboard, offset schema.Position) []schema.Node {
	if len(cb.Nodes) == 0 {
		return nil
	}

	m.mu.Lock()
	idMap := make(map[string]string, len(cb.Nodes))
	pasted := make([]schema.Node, 0, len(cb.Nodes))

	for _, n := range cb.Nodes {
		fresh := m.nextID(string(n.Type))
		idMap[n.ID] = fresh
		node := schema.Node{
			ID:   fresh,
			Type: n.Type,
			Position: schema.Position{
				X: n.Position.X + offset.X,
				Y: n.Position.Y + offset.Y,
			},
			Data:      copyData(n.Data),
			Collapsed: n.Collapsed,
		}
		m.nodes = append(m.nodes, node)
		pasted = append(pasted, node)
	}

	var newEdges []schema.Edge
	for _, e := range cb.Edges {
		src, okS := idMap[e.Source]
		dst, okT := idMap[e.Target]
		if !okS || !okT {
			continue
		}
		edge := schema.Edge{
			ID:           m.nextID("edge"),
			Source:       src,
			SourceHandle: e.SourceHandle,
			Target:       dst,
			TargetHandle: e.TargetHandle,
			TypeTag:      e.TypeTag,
		}
		m.edges = append(m.edges, edge)
		newEdges = append(newEdges, edge)
	}
	m.mu.Unlock()

	for _, n := range pasted {
		m.notify(Change{Kind: ChangeNodeAdded, NodeID: n.ID})
	}
	for _, e := range newEdges {
		m.notify(Change{Kind: ChangeEdgeAdded, EdgeID: e.ID})
	}
	return pasted
}
