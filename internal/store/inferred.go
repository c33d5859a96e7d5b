package store

import (
	"context"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (t *graphTx) DeleteInferred(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM inferred_relationships`)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *graphTx) CreateInferred(ctx context.Context, rels []domain.InferredRelationship) error {
	if len(rels) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(rels))
	for i := range rels {
		if rels[i].ID == uuid.Nil {
			rels[i].ID = uuid.New()
		}
		rows = append(rows, []any{rels[i].ID, rels[i].Rule, rels[i].Relation, rels[i].SubjectKey, rels[i].ObjectKey})
	}
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"inferred_relationships"},
		[]string{"id", "rule", "relation", "subject_key", "object_key"},
		pgx.CopyFromRows(rows),
	)
	return classify(err)
}

// ListInferred returns derived relationships, optionally of one relation.
func (s *GraphStore) ListInferred(ctx context.Context, relation string) ([]domain.InferredRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, rule, relation, subject_key, object_key, created_at
		 FROM inferred_relationships
		 WHERE $1 = '' OR relation = $1
		 ORDER BY relation, subject_key, object_key`,
		relation,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []domain.InferredRelationship
	for rows.Next() {
		var r domain.InferredRelationship
		if err := rows.Scan(&r.ID, &r.Rule, &r.Relation, &r.SubjectKey, &r.ObjectKey, &r.CreatedAt); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
