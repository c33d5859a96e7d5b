package memstore

import (
	"context"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
)

func (s *Store) Create(_ context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.APIKeyHash]; ok {
		return store.ErrConflict
	}
	for _, other := range s.clients {
		if other.SourceID == c.SourceID {
			return store.ErrConflict
		}
	}
	now := s.nowFn()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.clients[c.APIKeyHash] = *c
	return nil
}

func (s *Store) GetByAPIKeyHash(_ context.Context, apiKeyHash string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[apiKeyHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}
