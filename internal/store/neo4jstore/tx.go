package neo4jstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type graphTx struct {
	tx neo4j.ManagedTransaction
}

var _ domain.GraphTx = (*graphTx)(nil)

func (t *graphTx) collect(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func (t *graphTx) exec(ctx context.Context, query string, params map[string]any) error {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (t *graphTx) DeactivateSource(ctx context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	records, err := t.collect(ctx, `
MATCH (s:Source {id: $source_id})-[r:CLAIMS {is_active: true}]->(e:Entity)
SET r.is_active = false, r.updated_at = datetime()`+edgeReturn+`
ORDER BY entity_key, attribute`,
		map[string]any{"source_id": sourceID})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records), nil
}

// lockEntity merges the entity node and write-locks it. MERGE waits on the
// key constraint, so a writer of a new key blocks until the creating
// transaction ends and then holds the lock on the committed node.
const lockEntity = `
MERGE (e:Entity {key: $key})
ON CREATE SET e.created_at = datetime(), e.updated_at = datetime()
SET e._lock = true
REMOVE e._lock`

// ActiveClaims takes a write lock on the entity node so concurrent writers
// of the same slot queue up behind each other.
func (t *graphTx) ActiveClaims(ctx context.Context, slot domain.Slot, excludeSource string) ([]domain.ProvenanceEdge, error) {
	if err := t.exec(ctx, lockEntity, map[string]any{"key": slot.EntityKey}); err != nil {
		return nil, err
	}
	records, err := t.collect(ctx, `
MATCH (s:Source)-[r:CLAIMS {attribute: $attribute, is_active: true}]->(e:Entity {key: $key})
WHERE s.id <> $exclude`+edgeReturn+`
ORDER BY source_id`,
		map[string]any{"key": slot.EntityKey, "attribute": slot.Attribute, "exclude": excludeSource})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records), nil
}

func (t *graphTx) RecordFact(ctx context.Context, f *domain.ProvableFact) error {
	return t.exec(ctx, `
MERGE (fact:Fact {id: $id})
ON CREATE SET fact.entity_key = $entity_key,
              fact.entity_kind = $entity_kind,
              fact.attribute = $attribute,
              fact.value = $value,
              fact.source_id = $source_id,
              fact.source_trust = $source_trust,
              fact.observed_at = $observed_at,
              fact.evidence_ref = $evidence_ref,
              fact.evidence = $evidence,
              fact.recorded_at = datetime()`,
		map[string]any{
			"id":           f.ID.String(),
			"entity_key":   f.EntityKey,
			"entity_kind":  string(f.EntityKind),
			"attribute":    f.Attribute,
			"value":        f.Value,
			"source_id":    f.SourceID,
			"source_trust": f.SourceTrust,
			"observed_at":  f.ObservedAt.UTC(),
			"evidence_ref": f.EvidenceRef,
			"evidence":     f.Evidence,
		})
}

func (t *graphTx) activeConflict(ctx context.Context, e *domain.ProvenanceEdge) error {
	claims, err := t.ActiveClaims(ctx, e.Slot(), e.SourceID)
	if err != nil {
		return err
	}
	if len(claims) > 0 {
		return fmt.Errorf("%w: slot %s already active for %s", store.ErrConflict, e.Slot(), claims[0].SourceID)
	}
	return nil
}

func (t *graphTx) UpsertEdge(ctx context.Context, e *domain.ProvenanceEdge) error {
	if e.IsActive {
		if err := t.activeConflict(ctx, e); err != nil {
			return err
		}
	}
	records, err := t.collect(ctx, `
MERGE (s:Source {id: $source_id})
MERGE (e:Entity {key: $entity_key})
ON CREATE SET e.created_at = datetime(), e.updated_at = datetime()
SET e.kind = coalesce(e.kind, $entity_kind)
MERGE (s)-[r:CLAIMS {attribute: $attribute}]->(e)
ON CREATE SET r.id = $new_id
SET r.entity_kind = $entity_kind,
    r.fact_id = $fact_id,
    r.value = $value,
    r.source_trust = $source_trust,
    r.observed_at = $observed_at,
    r.evidence_ref = $evidence_ref,
    r.evidence = $evidence,
    r.is_active = $is_active,
    r.updated_at = datetime()
RETURN r.id AS id, r.updated_at AS updated_at`,
		map[string]any{
			"source_id":    e.SourceID,
			"entity_key":   e.EntityKey,
			"entity_kind":  string(e.EntityKind),
			"attribute":    e.Attribute,
			"new_id":       uuid.New().String(),
			"fact_id":      e.FactID.String(),
			"value":        e.Value,
			"source_trust": e.SourceTrust,
			"observed_at":  e.ObservedAt.UTC(),
			"evidence_ref": e.EvidenceRef,
			"evidence":     e.Evidence,
			"is_active":    e.IsActive,
		})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("upsert edge %s/%s: no result", e.SourceID, e.Slot())
	}
	e.ID = getUUID(records[0], "id")
	e.UpdatedAt = getTime(records[0], "updated_at")
	return nil
}

func (t *graphTx) SetEdgeActive(ctx context.Context, id uuid.UUID, active bool) error {
	records, err := t.collect(ctx, `
MATCH (s:Source)-[r:CLAIMS {id: $id}]->(e:Entity)
SET r.is_active = $active, r.updated_at = datetime()
RETURN r.id AS id`,
		map[string]any{"id": id.String(), "active": active})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *graphTx) SetAttribute(ctx context.Context, entityKey string, kind domain.EntityKind, attribute string, value *string) error {
	if value == nil {
		return t.exec(ctx, `
MATCH (e:Entity {key: $key})
SET e += $props, e.updated_at = datetime()`,
			map[string]any{"key": entityKey, "props": map[string]any{attrPrefix + attribute: nil}})
	}
	return t.exec(ctx, `
MERGE (e:Entity {key: $key})
ON CREATE SET e.created_at = datetime()
SET e.kind = coalesce(e.kind, $kind), e += $props, e.updated_at = datetime()`,
		map[string]any{
			"key":   entityKey,
			"kind":  string(kind),
			"props": map[string]any{attrPrefix + attribute: *value},
		})
}

func (t *graphTx) ActiveEdges(ctx context.Context) ([]domain.ProvenanceEdge, error) {
	records, err := t.collect(ctx, `
MATCH (s:Source)-[r:CLAIMS {is_active: true}]->(e:Entity)`+edgeReturn+`
ORDER BY entity_key, attribute`, nil)
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records), nil
}

func (t *graphTx) DeleteInferred(ctx context.Context) (int64, error) {
	records, err := t.collect(ctx, `
MATCH ()-[r {inferred: true}]->()
DELETE r
RETURN count(r) AS deleted`, nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	v, _ := records[0].Get("deleted")
	n, _ := v.(int64)
	return n, nil
}

// CreateInferred writes one UNWIND per relation type. Relation names are
// validated as upper snake case when the rules are loaded.
func (t *graphTx) CreateInferred(ctx context.Context, rels []domain.InferredRelationship) error {
	byRelation := map[string][]map[string]any{}
	now := time.Now().UTC()
	for i := range rels {
		if rels[i].ID == uuid.Nil {
			rels[i].ID = uuid.New()
		}
		rels[i].CreatedAt = now
		byRelation[rels[i].Relation] = append(byRelation[rels[i].Relation], map[string]any{
			"id":      rels[i].ID.String(),
			"rule":    rels[i].Rule,
			"subject": rels[i].SubjectKey,
			"object":  rels[i].ObjectKey,
		})
	}

	relations := make([]string, 0, len(byRelation))
	for rel := range byRelation {
		relations = append(relations, rel)
	}
	sort.Strings(relations)

	for _, rel := range relations {
		query := fmt.Sprintf(`
UNWIND $rels AS x
MATCH (s:Entity {key: x.subject})
MATCH (o:Entity {key: x.object})
CREATE (s)-[r:%s {id: x.id, rule: x.rule, inferred: true, created_at: $now}]->(o)`, rel)
		if err := t.exec(ctx, query, map[string]any{"rels": byRelation[rel], "now": now}); err != nil {
			return err
		}
	}
	return nil
}
