package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GraphStore keeps entities, facts, provenance edges and inferred
// relationships in Postgres.
type GraphStore struct {
	db *pgxpool.Pool
}

func NewGraphStore(db *pgxpool.Pool) *GraphStore {
	return &GraphStore{db: db}
}

var serializable = pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}

func (s *GraphStore) WithTx(ctx context.Context, fn func(tx domain.GraphTx) error) error {
	err := pgx.BeginTxFunc(ctx, s.db, serializable, func(tx pgx.Tx) error {
		return fn(&graphTx{tx: tx})
	})
	if err != nil {
		return fmt.Errorf("graph tx: %w", classify(err))
	}
	return nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// graphTx implements domain.GraphTx on one serializable transaction.
type graphTx struct {
	tx pgx.Tx
}

var _ domain.GraphTx = (*graphTx)(nil)
