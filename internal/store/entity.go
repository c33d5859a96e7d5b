package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (t *graphTx) SetAttribute(ctx context.Context, entityKey string, kind domain.EntityKind, attribute string, value *string) error {
	if value == nil {
		_, err := t.tx.Exec(ctx,
			`UPDATE entities SET attributes = attributes - $2::text, updated_at = NOW()
			 WHERE key = $1`,
			entityKey, attribute,
		)
		return classify(err)
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO entities (key, kind, attributes)
		 VALUES ($1, $2, jsonb_build_object($3::text, $4::text))
		 ON CONFLICT (key) DO UPDATE
		 SET attributes = entities.attributes || jsonb_build_object($3::text, $4::text),
		     updated_at = NOW()`,
		entityKey, kind, attribute, *value,
	)
	return classify(err)
}

func (s *GraphStore) GetEntity(ctx context.Context, key string) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`SELECT key, kind, attributes, created_at, updated_at
		 FROM entities WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.Kind, &e.Attributes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListEntities returns entities with at least one active attribute.
func (s *GraphStore) ListEntities(ctx context.Context, filter domain.EntityFilter) ([]domain.Entity, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	equals := filter.Equals
	if equals == nil {
		equals = map[string]string{}
	}

	rows, err := s.db.Query(ctx,
		`SELECT key, kind, attributes, created_at, updated_at
		 FROM entities
		 WHERE attributes <> '{}'::jsonb
		   AND ($1 = '' OR kind = $1)
		   AND attributes @> $2::jsonb
		 ORDER BY key
		 LIMIT $3`,
		string(filter.Kind), equals, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.Key, &e.Kind, &e.Attributes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
