package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestAdapter_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a := NewPersistenceAdapter(s)
	ctx := context.Background()

	doc := testDocument()
	require.NoError(t, a.Save(ctx, "graph-1", doc))

	loaded, err := a.Load(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestAdapter_SaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	a := NewPersistenceAdapter(s)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "graph-1", testDocument()))

	smaller := schema.GraphDocument{
		Nodes:    []schema.Node{{ID: "input-1-a", Type: schema.NodeTypeInput}},
		Viewport: schema.Viewport{Zoom: 1},
	}
	require.NoError(t, a.Save(ctx, "graph-1", smaller))

	loaded, err := a.Load(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, smaller, loaded)
}

func TestAdapter_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	a := NewPersistenceAdapter(s)

	_, err := a.Load(context.Background(), "missing")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}
