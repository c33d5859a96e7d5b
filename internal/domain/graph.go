package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a graph node. Attribute values always mirror the unique active
// provenance edge of the corresponding slot.
type Entity struct {
	Key        string            `json:"key"`
	Kind       EntityKind        `json:"kind"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ProvenanceEdge links a source to the slot it claims. There is one edge per
// (entity, attribute, source); across sources at most one edge per slot is active.
type ProvenanceEdge struct {
	ID          uuid.UUID  `json:"id"`
	EntityKey   string     `json:"entity_key"`
	EntityKind  EntityKind `json:"entity_kind"`
	Attribute   string     `json:"attribute"`
	SourceID    string     `json:"source_id"`
	FactID      uuid.UUID  `json:"fact_id"`
	Value       string     `json:"value"`
	SourceTrust float64    `json:"source_trust"`
	ObservedAt  time.Time  `json:"observed_at"`
	EvidenceRef string     `json:"evidence_ref,omitempty"`
	Evidence    string     `json:"evidence,omitempty"`
	IsActive    bool       `json:"is_active"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (e ProvenanceEdge) Slot() Slot {
	return Slot{EntityKey: e.EntityKey, Attribute: e.Attribute}
}

// Fact rebuilds the claim the edge currently carries.
func (e ProvenanceEdge) Fact() ProvableFact {
	return ProvableFact{
		ID:          e.FactID,
		EntityKey:   e.EntityKey,
		EntityKind:  e.EntityKind,
		Attribute:   e.Attribute,
		Value:       e.Value,
		SourceID:    e.SourceID,
		SourceTrust: e.SourceTrust,
		ObservedAt:  e.ObservedAt,
		EvidenceRef: e.EvidenceRef,
		Evidence:    e.Evidence,
	}
}

// EdgeFromFact builds the edge a source holds for the slot of f.
func EdgeFromFact(f ProvableFact, active bool) ProvenanceEdge {
	return ProvenanceEdge{
		EntityKey:   f.EntityKey,
		EntityKind:  f.EntityKind,
		Attribute:   f.Attribute,
		SourceID:    f.SourceID,
		FactID:      f.ID,
		Value:       f.Value,
		SourceTrust: f.SourceTrust,
		ObservedAt:  f.ObservedAt,
		EvidenceRef: f.EvidenceRef,
		Evidence:    f.Evidence,
		IsActive:    active,
	}
}

// InferredRelationship is a derived edge. It has no lifecycle of its own and
// is regenerated from the active set on every rebuild.
type InferredRelationship struct {
	ID         uuid.UUID `json:"id"`
	Rule       string    `json:"rule"`
	Relation   string    `json:"relation"`
	SubjectKey string    `json:"subject_key"`
	ObjectKey  string    `json:"object_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntityFilter selects entities for listing. Equals matches current
// attribute values exactly.
type EntityFilter struct {
	Kind   EntityKind
	Equals map[string]string
	Limit  int
}
