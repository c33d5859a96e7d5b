package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
)

// ClientService manages push producers. Each client may submit batches for
// exactly one configured push source.
type ClientService struct {
	store domain.ClientStore
	cfg   *config.Corroboration
}

func NewClientService(s domain.ClientStore, cfg *config.Corroboration) *ClientService {
	return &ClientService{store: s, cfg: cfg}
}

// Register creates a client for sourceID and returns it with its API key.
// The key is only available here; the store keeps its hash.
func (s *ClientService) Register(ctx context.Context, name, sourceID string) (*domain.Client, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrClientNameEmpty
	}
	if sourceID == "" {
		return nil, "", ErrEmptySourceID
	}
	src, ok := s.cfg.Source(sourceID)
	if !ok || src.Kind != config.SourcePush {
		return nil, "", fmt.Errorf("%w: %q is not a push source", ErrUnknownSource, sourceID)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate API key: %w", err)
	}

	c := &domain.Client{
		Name:       name,
		SourceID:   sourceID,
		APIKeyHash: domain.HashAPIKey(apiKey),
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, "", ErrClientConflict
		}
		return nil, "", err
	}
	return c, apiKey, nil
}

func (s *ClientService) Authenticate(ctx context.Context, apiKey string) (*domain.Client, error) {
	c, err := s.store.GetByAPIKeyHash(ctx, domain.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "fg_" + hex.EncodeToString(b), nil
}
