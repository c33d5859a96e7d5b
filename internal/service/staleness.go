package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// Reconcile deactivates every active claim of the source. It runs inside the
// ingestion transaction before any claim of the new batch is corroborated, so
// a source never competes with its own previous statements.
func Reconcile(ctx context.Context, tx domain.GraphTx, sourceID string) ([]domain.ProvenanceEdge, error) {
	stale, err := tx.DeactivateSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("deactivate claims of %s: %w", sourceID, err)
	}
	return stale, nil
}
