package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
)

// QueryService answers read-only questions about the committed graph.
type QueryService struct {
	store domain.GraphReader
}

func NewQueryService(r domain.GraphReader) *QueryService {
	return &QueryService{store: r}
}

func (s *QueryService) GetEntity(ctx context.Context, key string) (*domain.Entity, error) {
	e, err := s.store.GetEntity(ctx, domain.NormalizeKey(key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListEntities returns entities with at least one current attribute value.
func (s *QueryService) ListEntities(ctx context.Context, filter domain.EntityFilter) ([]domain.Entity, error) {
	return s.store.ListEntities(ctx, filter)
}

// Provenance returns every edge of the entity, active and inactive, so the
// full claim history of each slot can be inspected.
func (s *QueryService) Provenance(ctx context.Context, key string) ([]domain.ProvenanceEdge, error) {
	edges, err := s.store.EdgesForEntity(ctx, domain.NormalizeKey(key))
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, ErrEntityNotFound
	}
	return edges, nil
}

// SourceClaims lists the edges a source holds.
func (s *QueryService) SourceClaims(ctx context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	if sourceID == "" {
		return nil, ErrEmptySourceID
	}
	return s.store.EdgesForSource(ctx, sourceID)
}

// Relationships lists inferred relationships, optionally of one relation type.
func (s *QueryService) Relationships(ctx context.Context, relation string) ([]domain.InferredRelationship, error) {
	return s.store.ListInferred(ctx, relation)
}
