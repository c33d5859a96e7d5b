package neo4jstore

import (
	"errors"
	"strings"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const attrPrefix = "attr_"

func classify(err error) error {
	if err == nil {
		return nil
	}
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		switch {
		case strings.HasPrefix(nerr.Code, "Neo.TransientError"):
			return errors.Join(store.ErrSerialization, err)
		case nerr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed":
			return errors.Join(store.ErrConflict, err)
		}
	}
	return err
}

func getString(r *neo4j.Record, key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getFloat(r *neo4j.Record, key string) float64 {
	v, _ := r.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func getBool(r *neo4j.Record, key string) bool {
	v, _ := r.Get(key)
	b, _ := v.(bool)
	return b
}

func getTime(r *neo4j.Record, key string) time.Time {
	v, _ := r.Get(key)
	switch t := v.(type) {
	case time.Time:
		return t
	case neo4j.LocalDateTime:
		return t.Time()
	}
	return time.Time{}
}

func getUUID(r *neo4j.Record, key string) uuid.UUID {
	id, err := uuid.Parse(getString(r, key))
	if err != nil {
		return uuid.Nil
	}
	return id
}

const edgeReturn = `
RETURN r.id AS id, e.key AS entity_key, r.entity_kind AS entity_kind, r.attribute AS attribute,
       s.id AS source_id, r.fact_id AS fact_id, r.value AS value, r.source_trust AS source_trust,
       r.observed_at AS observed_at, r.evidence_ref AS evidence_ref, r.evidence AS evidence,
       r.is_active AS is_active, r.updated_at AS updated_at`

func edgeFromRecord(r *neo4j.Record) domain.ProvenanceEdge {
	return domain.ProvenanceEdge{
		ID:          getUUID(r, "id"),
		EntityKey:   getString(r, "entity_key"),
		EntityKind:  domain.EntityKind(getString(r, "entity_kind")),
		Attribute:   getString(r, "attribute"),
		SourceID:    getString(r, "source_id"),
		FactID:      getUUID(r, "fact_id"),
		Value:       getString(r, "value"),
		SourceTrust: getFloat(r, "source_trust"),
		ObservedAt:  getTime(r, "observed_at"),
		EvidenceRef: getString(r, "evidence_ref"),
		Evidence:    getString(r, "evidence"),
		IsActive:    getBool(r, "is_active"),
		UpdatedAt:   getTime(r, "updated_at"),
	}
}

func edgesFromRecords(records []*neo4j.Record) []domain.ProvenanceEdge {
	edges := make([]domain.ProvenanceEdge, 0, len(records))
	for _, r := range records {
		edges = append(edges, edgeFromRecord(r))
	}
	return edges
}

// entityFromProps splits node properties into bookkeeping fields and attr_*
// attribute values.
func entityFromProps(props map[string]any) domain.Entity {
	e := domain.Entity{Attributes: map[string]string{}}
	for k, v := range props {
		switch k {
		case "key":
			e.Key, _ = v.(string)
		case "kind":
			s, _ := v.(string)
			e.Kind = domain.EntityKind(s)
		case "created_at":
			e.CreatedAt, _ = v.(time.Time)
		case "updated_at":
			e.UpdatedAt, _ = v.(time.Time)
		default:
			if name, ok := strings.CutPrefix(k, attrPrefix); ok {
				if s, ok := v.(string); ok {
					e.Attributes[name] = s
				}
			}
		}
	}
	return e
}
