package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
)

type tx struct {
	state state
	now   time.Time
}

var _ domain.GraphTx = (*tx)(nil)

func (t *tx) DeactivateSource(_ context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	var flipped []domain.ProvenanceEdge
	for k, e := range t.state.edges {
		if e.SourceID != sourceID || !e.IsActive {
			continue
		}
		e.IsActive = false
		e.UpdatedAt = t.now
		t.state.edges[k] = e
		flipped = append(flipped, e)
	}
	sortBySlot(flipped)
	return flipped, nil
}

func (t *tx) ActiveClaims(_ context.Context, slot domain.Slot, excludeSource string) ([]domain.ProvenanceEdge, error) {
	var out []domain.ProvenanceEdge
	for _, e := range t.state.edges {
		if e.IsActive && e.EntityKey == slot.EntityKey && e.Attribute == slot.Attribute && e.SourceID != excludeSource {
			out = append(out, e)
		}
	}
	sortBySlot(out)
	return out, nil
}

func (t *tx) RecordFact(_ context.Context, f *domain.ProvableFact) error {
	if _, ok := t.state.facts[f.ID]; ok {
		return nil
	}
	t.state.facts[f.ID] = *f
	return nil
}

// activeConflict mirrors the partial unique index on active slots.
func (t *tx) activeConflict(e domain.ProvenanceEdge) error {
	for k, other := range t.state.edges {
		if k == keyOf(e) || !other.IsActive {
			continue
		}
		if other.EntityKey == e.EntityKey && other.Attribute == e.Attribute {
			return fmt.Errorf("%w: slot %s already active for %s", store.ErrConflict, e.Slot(), other.SourceID)
		}
	}
	return nil
}

func (t *tx) UpsertEdge(_ context.Context, e *domain.ProvenanceEdge) error {
	if e.IsActive {
		if err := t.activeConflict(*e); err != nil {
			return err
		}
	}
	k := keyOf(*e)
	if existing, ok := t.state.edges[k]; ok {
		e.ID = existing.ID
	} else if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.UpdatedAt = t.now
	t.state.edges[k] = *e
	return nil
}

func (t *tx) SetEdgeActive(_ context.Context, id uuid.UUID, active bool) error {
	for k, e := range t.state.edges {
		if e.ID != id {
			continue
		}
		if active && !e.IsActive {
			if err := t.activeConflict(e); err != nil {
				return err
			}
		}
		e.IsActive = active
		e.UpdatedAt = t.now
		t.state.edges[k] = e
		return nil
	}
	return store.ErrNotFound
}

func (t *tx) SetAttribute(_ context.Context, entityKey string, kind domain.EntityKind, attribute string, value *string) error {
	e, ok := t.state.entities[entityKey]
	if value == nil {
		if ok {
			delete(e.Attributes, attribute)
			e.UpdatedAt = t.now
			t.state.entities[entityKey] = e
		}
		return nil
	}
	if !ok {
		e = domain.Entity{Key: entityKey, Kind: kind, Attributes: map[string]string{}, CreatedAt: t.now}
	}
	e.Attributes[attribute] = *value
	e.UpdatedAt = t.now
	t.state.entities[entityKey] = e
	return nil
}

func (t *tx) ActiveEdges(_ context.Context) ([]domain.ProvenanceEdge, error) {
	var out []domain.ProvenanceEdge
	for _, e := range t.state.edges {
		if e.IsActive {
			out = append(out, e)
		}
	}
	sortBySlot(out)
	return out, nil
}

func (t *tx) DeleteInferred(context.Context) (int64, error) {
	n := int64(len(t.state.inferred))
	t.state.inferred = nil
	return n, nil
}

func (t *tx) CreateInferred(_ context.Context, rels []domain.InferredRelationship) error {
	seen := make(map[[3]string]bool, len(t.state.inferred))
	for _, r := range t.state.inferred {
		seen[[3]string{r.Relation, r.SubjectKey, r.ObjectKey}] = true
	}
	for i := range rels {
		k := [3]string{rels[i].Relation, rels[i].SubjectKey, rels[i].ObjectKey}
		if seen[k] {
			return fmt.Errorf("%w: %s(%s, %s) exists", store.ErrConflict, k[0], k[1], k[2])
		}
		seen[k] = true
		if rels[i].ID == uuid.Nil {
			rels[i].ID = uuid.New()
		}
		rels[i].CreatedAt = t.now
		t.state.inferred = append(t.state.inferred, rels[i])
	}
	return nil
}
