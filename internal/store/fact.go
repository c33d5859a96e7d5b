package store

import (
	"context"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// RecordFact appends the fact to the immutable fact log. Replaying a fact
// with a known id is a no-op.
func (t *graphTx) RecordFact(ctx context.Context, f *domain.ProvableFact) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO facts (id, entity_key, entity_kind, attribute, value, source_id,
		     source_trust, observed_at, evidence_ref, evidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		f.ID, f.EntityKey, f.EntityKind, f.Attribute, f.Value, f.SourceID,
		f.SourceTrust, f.ObservedAt, f.EvidenceRef, f.Evidence,
	)
	return classify(err)
}
