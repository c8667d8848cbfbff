package store

import (
	"context"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// PersistenceAdapter is the narrow save/load surface the editor uses. Its
// only contract: a save followed by a load for the same id returns a
// document structurally equal to the one saved.
type PersistenceAdapter struct {
	store Store
}

// NewPersistenceAdapter wraps a Store.
func NewPersistenceAdapter(s Store) *PersistenceAdapter {
	return &PersistenceAdapter{store: s}
}

// Save persists the graph document under the given id, creating the
// workflow row on first save.
func (p *PersistenceAdapter) Save(ctx context.Context, graphID string, doc schema.GraphDocument) error {
	existing, err := p.store.GetWorkflow(ctx, graphID)
	if err != nil {
		if schema.CodeOf(err) != schema.ErrCodeNotFound {
			return schema.NewError(schema.ErrCodeStore, "load before save failed").WithCause(err)
		}
		existing = &Workflow{ID: graphID, Name: graphID}
	}
	existing.Document = doc
	if err := p.store.SaveWorkflow(ctx, existing); err != nil {
		return schema.NewError(schema.ErrCodeStore, "save failed").WithCause(err)
	}
	return nil
}

// Load returns the document saved under the given id.
func (p *PersistenceAdapter) Load(ctx context.Context, graphID string) (schema.GraphDocument, error) {
	wf, err := p.store.GetWorkflow(ctx, graphID)
	if err != nil {
		return schema.GraphDocument{}, err
	}
	return wf.Document, nil
}
