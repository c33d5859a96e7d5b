package neo4jstore

import (
	"context"
	"sort"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func (s *Store) GetEntity(ctx context.Context, key string) (*domain.Entity, error) {
	records, err := s.read(ctx, `MATCH (e:Entity {key: $key}) RETURN properties(e) AS props`,
		map[string]any{"key": key})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	props, _ := records[0].Get("props")
	m, _ := props.(map[string]any)
	e := entityFromProps(m)
	return &e, nil
}

// ListEntities filters on kind in Cypher and on attribute values in Go, since
// attribute properties are named dynamically.
func (s *Store) ListEntities(ctx context.Context, filter domain.EntityFilter) ([]domain.Entity, error) {
	records, err := s.read(ctx, `
MATCH (e:Entity)
WHERE $kind = '' OR e.kind = $kind
RETURN properties(e) AS props
ORDER BY e.key`,
		map[string]any{"kind": string(filter.Kind)})
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Entity
	for _, r := range records {
		props, _ := r.Get("props")
		m, _ := props.(map[string]any)
		e := entityFromProps(m)
		if len(e.Attributes) == 0 || !matches(e, filter.Equals) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func matches(e domain.Entity, equals map[string]string) bool {
	for k, v := range equals {
		if e.Attributes[k] != v {
			return false
		}
	}
	return true
}

func (s *Store) EdgesForEntity(ctx context.Context, key string) ([]domain.ProvenanceEdge, error) {
	records, err := s.read(ctx, `
MATCH (s:Source)-[r:CLAIMS]->(e:Entity {key: $key})`+edgeReturn+`
ORDER BY attribute, is_active DESC, observed_at DESC, source_id`,
		map[string]any{"key": key})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records), nil
}

func (s *Store) EdgesForSource(ctx context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	records, err := s.read(ctx, `
MATCH (s:Source {id: $source_id})-[r:CLAIMS]->(e:Entity)`+edgeReturn+`
ORDER BY entity_key, attribute`,
		map[string]any{"source_id": sourceID})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records), nil
}

func (s *Store) ListInferred(ctx context.Context, relation string) ([]domain.InferredRelationship, error) {
	records, err := s.read(ctx, `
MATCH (a:Entity)-[r {inferred: true}]->(b:Entity)
WHERE $relation = '' OR type(r) = $relation
RETURN r.id AS id, r.rule AS rule, type(r) AS relation, a.key AS subject_key, b.key AS object_key,
       r.created_at AS created_at`,
		map[string]any{"relation": relation})
	if err != nil {
		return nil, err
	}

	rels := make([]domain.InferredRelationship, 0, len(records))
	for _, r := range records {
		rels = append(rels, domain.InferredRelationship{
			ID:         getUUID(r, "id"),
			Rule:       getString(r, "rule"),
			Relation:   getString(r, "relation"),
			SubjectKey: getString(r, "subject_key"),
			ObjectKey:  getString(r, "object_key"),
			CreatedAt:  getTime(r, "created_at"),
		})
	}
	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if c := strings.Compare(a.SubjectKey, b.SubjectKey); c != 0 {
			return c < 0
		}
		return a.ObjectKey < b.ObjectKey
	})
	return rels, nil
}

func (s *Store) Create(ctx context.Context, c *domain.Client) error {
	records, err := s.write(ctx, `
CREATE (c:Client {id: randomUUID(), name: $name, source_id: $source_id, api_key_hash: $hash,
                  created_at: datetime(), updated_at: datetime()})
RETURN c.id AS id, c.created_at AS created_at, c.updated_at AS updated_at`,
		map[string]any{"name": c.Name, "source_id": c.SourceID, "hash": c.APIKeyHash})
	if err != nil {
		return err
	}
	if len(records) > 0 {
		c.ID = getUUID(records[0], "id")
		c.CreatedAt = getTime(records[0], "created_at")
		c.UpdatedAt = getTime(records[0], "updated_at")
	}
	return nil
}

func (s *Store) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Client, error) {
	records, err := s.read(ctx, `
MATCH (c:Client {api_key_hash: $hash})
RETURN c.id AS id, c.name AS name, c.source_id AS source_id, c.api_key_hash AS api_key_hash,
       c.created_at AS created_at, c.updated_at AS updated_at`,
		map[string]any{"hash": apiKeyHash})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	r := records[0]
	return clientFromRecord(r), nil
}

func clientFromRecord(r *neo4j.Record) *domain.Client {
	return &domain.Client{
		ID:         getUUID(r, "id"),
		Name:       getString(r, "name"),
		SourceID:   getString(r, "source_id"),
		APIKeyHash: getString(r, "api_key_hash"),
		CreatedAt:  getTime(r, "created_at"),
		UpdatedAt:  getTime(r, "updated_at"),
	}
}
