package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openTestStore connects to NEO4J_TEST_URI and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{
		URI:      uri,
		User:     os.Getenv("NEO4J_TEST_USER"),
		Password: os.Getenv("NEO4J_TEST_PASSWORD"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func TestLockEntityCreatesMissingNode(t *testing.T) {
	assert.Contains(t, lockEntity, "MERGE (e:Entity {key: $key})")
	assert.NotContains(t, lockEntity, "MATCH")
}

func TestConcurrentFirstClaimsOnNewKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key := "race-" + uuid.NewString()
	slot := domain.Slot{EntityKey: key, Attribute: "interest_rate"}
	sources := make([]string, 6)
	for i := range sources {
		sources[i] = fmt.Sprintf("%s-source-%d", key, i)
	}
	t.Cleanup(func() {
		_, _ = s.write(ctx, `MATCH (e:Entity {key: $key}) DETACH DELETE e`, map[string]any{"key": key})
		_, _ = s.write(ctx, `MATCH (src:Source) WHERE src.id IN $sources DETACH DELETE src`, map[string]any{"sources": sources})
	})

	observed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make([]error, len(sources))
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.WithTx(ctx, func(tx domain.GraphTx) error {
				claims, err := tx.ActiveClaims(ctx, slot, src)
				if err != nil {
					return err
				}
				f := domain.ProvableFact{
					ID:          uuid.New(),
					EntityKey:   key,
					EntityKind:  domain.EntityProduct,
					Attribute:   slot.Attribute,
					Value:       fmt.Sprintf("2.%d", i),
					SourceID:    src,
					SourceTrust: 1,
					ObservedAt:  observed,
				}
				edge := domain.EdgeFromFact(f, len(claims) == 0)
				return tx.UpsertEdge(ctx, &edge)
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, store.ErrSerialization) {
			t.Fatalf("unexpected tx error: %v", err)
		}
	}

	edges, err := s.EdgesForEntity(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, edges)
	active := 0
	for _, e := range edges {
		if e.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	ent, err := s.GetEntity(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityProduct, ent.Kind)
}
