package service

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueryService(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	ing := newIngest(t, ms)
	mustIngest(t, ing, "public-site",
		product("public-site", sparbrief, "interest_rate", "2.0", t0),
		product("public-site", sparbrief, "product_type", "InterestProduct", t0),
		product("public-site", "girokonto", "product_type", "CheckingAccount", t0),
	)
	mustIngest(t, ing, "internal-feed",
		product("internal-feed", sparbrief, "interest_rate", "2.5", t1),
		employee("internal-feed", "anna", "role_type", "Advisor", t1),
	)
	_, err := NewInferenceService(ms, engineCfg(t).InferenceRules, nil, zap.NewNop()).Rebuild(ctx)
	require.NoError(t, err)

	q := NewQueryService(ms)

	t.Run("entity", func(t *testing.T) {
		ent, err := q.GetEntity(ctx, sparbrief)
		require.NoError(t, err)
		assert.Equal(t, domain.EntityProduct, ent.Kind)
		assert.Equal(t, map[string]string{"interest_rate": "2.5", "product_type": "InterestProduct"}, ent.Attributes)

		ent, err = q.GetEntity(ctx, " Sparbrief_5000_6")
		require.NoError(t, err)
		assert.Equal(t, sparbrief, ent.Key)

		_, err = q.GetEntity(ctx, "missing")
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("list", func(t *testing.T) {
		ents, err := q.ListEntities(ctx, domain.EntityFilter{Kind: domain.EntityProduct})
		require.NoError(t, err)
		require.Len(t, ents, 2)
		assert.Equal(t, "girokonto", ents[0].Key)

		ents, err = q.ListEntities(ctx, domain.EntityFilter{Equals: map[string]string{"product_type": "InterestProduct"}})
		require.NoError(t, err)
		require.Len(t, ents, 1)
		assert.Equal(t, sparbrief, ents[0].Key)
	})

	t.Run("provenance", func(t *testing.T) {
		edges, err := q.Provenance(ctx, sparbrief)
		require.NoError(t, err)
		require.Len(t, edges, 3)
		assert.Equal(t, "interest_rate", edges[0].Attribute)
		assert.True(t, edges[0].IsActive)
		assert.Equal(t, "internal-feed", edges[0].SourceID)
		assert.False(t, edges[1].IsActive)

		_, err = q.Provenance(ctx, "missing")
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("source claims", func(t *testing.T) {
		edges, err := q.SourceClaims(ctx, "internal-feed")
		require.NoError(t, err)
		assert.Len(t, edges, 2)

		_, err = q.SourceClaims(ctx, "")
		assert.ErrorIs(t, err, ErrEmptySourceID)
	})

	t.Run("relationships", func(t *testing.T) {
		rels, err := q.Relationships(ctx, "ADVISES_ON")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "anna", rels[0].SubjectKey)
		assert.Equal(t, sparbrief, rels[0].ObjectKey)

		rels, err = q.Relationships(ctx, "RESPONSIBLE_FOR")
		require.NoError(t, err)
		assert.Empty(t, rels)
	})
}
