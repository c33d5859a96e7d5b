package store

import (
	"context"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const edgeColumns = `id, entity_key, entity_kind, attribute, source_id, fact_id, value,
	source_trust, observed_at, evidence_ref, evidence, is_active, updated_at`

func scanEdges(rows pgx.Rows) ([]domain.ProvenanceEdge, error) {
	defer rows.Close()

	var edges []domain.ProvenanceEdge
	for rows.Next() {
		var e domain.ProvenanceEdge
		if err := rows.Scan(&e.ID, &e.EntityKey, &e.EntityKind, &e.Attribute, &e.SourceID, &e.FactID,
			&e.Value, &e.SourceTrust, &e.ObservedAt, &e.EvidenceRef, &e.Evidence, &e.IsActive, &e.UpdatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func queryEdges(ctx context.Context, q querier, sql string, args ...any) ([]domain.ProvenanceEdge, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

func (t *graphTx) DeactivateSource(ctx context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	return queryEdges(ctx, t.tx,
		`UPDATE provenance_edges SET is_active = FALSE, updated_at = NOW()
		 WHERE source_id = $1 AND is_active
		 RETURNING `+edgeColumns,
		sourceID,
	)
}

func (t *graphTx) ActiveClaims(ctx context.Context, slot domain.Slot, excludeSource string) ([]domain.ProvenanceEdge, error) {
	return queryEdges(ctx, t.tx,
		`SELECT `+edgeColumns+`
		 FROM provenance_edges
		 WHERE entity_key = $1 AND attribute = $2 AND is_active AND source_id <> $3
		 FOR UPDATE`,
		slot.EntityKey, slot.Attribute, excludeSource,
	)
}

func (t *graphTx) UpsertEdge(ctx context.Context, e *domain.ProvenanceEdge) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO provenance_edges (entity_key, entity_kind, attribute, source_id, fact_id, value,
		     source_trust, observed_at, evidence_ref, evidence, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (entity_key, attribute, source_id) DO UPDATE
		 SET entity_kind = EXCLUDED.entity_kind,
		     fact_id = EXCLUDED.fact_id,
		     value = EXCLUDED.value,
		     source_trust = EXCLUDED.source_trust,
		     observed_at = EXCLUDED.observed_at,
		     evidence_ref = EXCLUDED.evidence_ref,
		     evidence = EXCLUDED.evidence,
		     is_active = EXCLUDED.is_active,
		     updated_at = NOW()
		 RETURNING id, updated_at`,
		e.EntityKey, e.EntityKind, e.Attribute, e.SourceID, e.FactID, e.Value,
		e.SourceTrust, e.ObservedAt, e.EvidenceRef, e.Evidence, e.IsActive,
	).Scan(&e.ID, &e.UpdatedAt)
	return classify(err)
}

func (t *graphTx) SetEdgeActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE provenance_edges SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *graphTx) ActiveEdges(ctx context.Context) ([]domain.ProvenanceEdge, error) {
	return queryEdges(ctx, t.tx,
		`SELECT `+edgeColumns+`
		 FROM provenance_edges WHERE is_active
		 ORDER BY entity_key, attribute`,
	)
}

func (s *GraphStore) EdgesForEntity(ctx context.Context, key string) ([]domain.ProvenanceEdge, error) {
	return queryEdges(ctx, s.db,
		`SELECT `+edgeColumns+`
		 FROM provenance_edges WHERE entity_key = $1
		 ORDER BY attribute, is_active DESC, observed_at DESC, source_id`,
		key,
	)
}

func (s *GraphStore) EdgesForSource(ctx context.Context, sourceID string) ([]domain.ProvenanceEdge, error) {
	return queryEdges(ctx, s.db,
		`SELECT `+edgeColumns+`
		 FROM provenance_edges WHERE source_id = $1
		 ORDER BY entity_key, attribute`,
		sourceID,
	)
}
