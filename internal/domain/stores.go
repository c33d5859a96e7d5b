package domain

import (
	"context"

	"github.com/google/uuid"
)

// GraphStore is the fact graph backend. Writes only happen inside WithTx.
type GraphStore interface {
	// WithTx runs fn as one serializable unit of work. The unit commits when fn
	// returns nil and rolls back otherwise; nothing fn wrote is visible before commit.
	WithTx(ctx context.Context, fn func(tx GraphTx) error) error
	Ping(ctx context.Context) error
	GraphReader
}

// GraphTx is the set of operations available inside one unit of work.
type GraphTx interface {
	// DeactivateSource flips every active edge of the source to inactive and
	// returns the flipped edges.
	DeactivateSource(ctx context.Context, sourceID string) ([]ProvenanceEdge, error)
	// ActiveClaims returns the active edges for the slot, ignoring edges of
	// excludeSource. More than one result means the store is corrupt.
	ActiveClaims(ctx context.Context, slot Slot, excludeSource string) ([]ProvenanceEdge, error)
	RecordFact(ctx context.Context, f *ProvableFact) error
	// UpsertEdge creates or replaces the edge for (entity, attribute, source).
	UpsertEdge(ctx context.Context, e *ProvenanceEdge) error
	SetEdgeActive(ctx context.Context, id uuid.UUID, active bool) error
	// SetAttribute writes the entity attribute; a nil value unsets it.
	SetAttribute(ctx context.Context, entityKey string, kind EntityKind, attribute string, value *string) error
	ActiveEdges(ctx context.Context) ([]ProvenanceEdge, error)
	DeleteInferred(ctx context.Context) (int64, error)
	CreateInferred(ctx context.Context, rels []InferredRelationship) error
}

type GraphReader interface {
	GetEntity(ctx context.Context, key string) (*Entity, error)
	ListEntities(ctx context.Context, filter EntityFilter) ([]Entity, error)
	EdgesForEntity(ctx context.Context, key string) ([]ProvenanceEdge, error)
	EdgesForSource(ctx context.Context, sourceID string) ([]ProvenanceEdge, error)
	ListInferred(ctx context.Context, relation string) ([]InferredRelationship, error)
}

type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Client, error)
}

// Candidate is a fact proposed by an extractor before grounding.
type Candidate struct {
	EntityKey  string     `json:"entity_key"`
	EntityKind EntityKind `json:"entity_kind"`
	Attribute  string     `json:"attribute"`
	Value      string     `json:"value"`
	Evidence   string     `json:"evidence"`
}

// ExtractRequest carries one document to an extractor.
type ExtractRequest struct {
	SourceID string
	Text     string
	Slots    map[EntityKind][]string
}

type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]Candidate, error)
}

// Grounder verifies that a fact value is supported by its evidence snippet.
type Grounder interface {
	Ground(ctx context.Context, fact, evidence string) (bool, error)
}
