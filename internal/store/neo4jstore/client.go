// Package neo4jstore keeps the fact graph in Neo4j. Entities are (:Entity)
// nodes whose current values live in attr_* properties; every source claim
// is a (:Source)-[:CLAIMS]->(:Entity) relationship and derived edges carry
// inferred: true.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Store implements domain.GraphStore and domain.ClientStore.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

var (
	_ domain.GraphStore  = (*Store)(nil)
	_ domain.ClientStore = (*Store)(nil)
)

// Open connects, verifies connectivity and creates the constraints the
// store relies on.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4jstore: uri is required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jstore: verify connectivity: %w", err)
	}

	s := &Store{driver: driver, database: cfg.Database, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE CONSTRAINT entity_key_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.key IS UNIQUE`,
	`CREATE CONSTRAINT source_id_unique IF NOT EXISTS FOR (s:Source) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT fact_id_unique IF NOT EXISTS FOR (f:Fact) REQUIRE f.id IS UNIQUE`,
	`CREATE CONSTRAINT client_key_unique IF NOT EXISTS FOR (c:Client) REQUIRE c.api_key_hash IS UNIQUE`,
	`CREATE CONSTRAINT client_source_unique IF NOT EXISTS FOR (c:Client) REQUIRE c.source_id IS UNIQUE`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, q, nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database)); err != nil {
			return fmt.Errorf("neo4jstore: schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// WithTx runs fn in a managed write transaction. The driver retries
// transient failures by calling fn again, so fn must not keep state across
// attempts.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.GraphTx) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&graphTx{tx: tx})
	})
	if err != nil {
		return fmt.Errorf("graph tx: %w", classify(err))
	}
	return nil
}

// read runs a query with reader routing and returns all records.
func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, classify(err)
	}
	return res.Records, nil
}

func (s *Store) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		return nil, classify(err)
	}
	return res.Records, nil
}
