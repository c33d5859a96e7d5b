package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func edge(kind domain.EntityKind, key, attr, value, source string, active bool) domain.ProvenanceEdge {
	return domain.ProvenanceEdge{
		EntityKey:  key,
		EntityKind: kind,
		Attribute:  attr,
		Value:      value,
		SourceID:   source,
		IsActive:   active,
	}
}

type triple struct{ relation, subject, object string }

func triples(rels []domain.InferredRelationship) []triple {
	out := make([]triple, 0, len(rels))
	for _, r := range rels {
		out = append(out, triple{r.Relation, r.SubjectKey, r.ObjectKey})
	}
	return out
}

func TestDerive(t *testing.T) {
	cfg := engineCfg(t)
	active := []domain.ProvenanceEdge{
		edge(domain.EntityEmployee, "anna", "role_type", "Advisor", "internal-feed", true),
		edge(domain.EntityEmployee, "anna", "advises_product", "girokonto", "internal-feed", true),
		edge(domain.EntityEmployee, "bob", "role_type", "Service", "internal-feed", true),
		edge(domain.EntityEmployee, "bob", "role_type", "Advisor", "public-site", false),
		edge(domain.EntityEmployee, "carl", "role_type", "Advisor", "public-site", true),
		edge(domain.EntityEmployee, "carl", "advises_product", "unknown_product", "public-site", true),
		edge(domain.EntityProduct, "sparbrief", "product_type", "InterestProduct", "public-site", true),
		edge(domain.EntityProduct, "tagesgeld", "product_type", "InterestProduct", "public-site", true),
		edge(domain.EntityProduct, "girokonto", "product_type", "CheckingAccount", "public-site", true),
	}

	rels := Derive(cfg.InferenceRules, active)
	assert.Equal(t, []triple{
		{"ADVISES_ON", "anna", "sparbrief"},
		{"ADVISES_ON", "anna", "tagesgeld"},
		{"ADVISES_ON", "carl", "sparbrief"},
		{"ADVISES_ON", "carl", "tagesgeld"},
		{"RESPONSIBLE_FOR", "anna", "girokonto"},
	}, triples(rels))
	assert.Equal(t, "advisors_on_interest_products", rels[0].Rule)
	assert.Equal(t, "named_product", rels[4].Rule)
}

func TestDerive_SkipsSelfPairsAndDuplicates(t *testing.T) {
	rules := []config.InferenceRule{
		{Name: "siblings", Relation: "RELATED_TO", Subject: config.Selector{Kind: domain.EntityProduct}, Object: config.Selector{Kind: domain.EntityProduct}},
		{Name: "siblings_again", Relation: "RELATED_TO", Subject: config.Selector{Kind: domain.EntityProduct}, Object: config.Selector{Kind: domain.EntityProduct}},
	}
	active := []domain.ProvenanceEdge{
		edge(domain.EntityProduct, "a", "product_type", "Security", "s", true),
		edge(domain.EntityProduct, "b", "product_type", "Security", "s", true),
	}

	rels := Derive(rules, active)
	assert.Equal(t, []triple{{"RELATED_TO", "a", "b"}, {"RELATED_TO", "b", "a"}}, triples(rels))
	for _, r := range rels {
		assert.Equal(t, "siblings", r.Rule)
	}
}

func TestDerive_NoActiveClaims(t *testing.T) {
	cfg := engineCfg(t)
	assert.Empty(t, Derive(cfg.InferenceRules, nil))
}

func seedAdvisors(t *testing.T, ing *IngestService) {
	t.Helper()
	mustIngest(t, ing, "internal-feed",
		employee("internal-feed", "anna", "role_type", "Advisor", t0),
		product("internal-feed", sparbrief, "product_type", "InterestProduct", t0),
	)
}

func TestRebuild_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	cfg := engineCfg(t)
	seedAdvisors(t, newIngest(t, ms))
	inf := NewInferenceService(ms, cfg.InferenceRules, nil, zap.NewNop())

	first, err := inf.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Deleted)
	assert.Equal(t, 1, first.Created)
	rels1, err := ms.ListInferred(ctx, "")
	require.NoError(t, err)

	second, err := inf.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Deleted)
	assert.Equal(t, 1, second.Created)
	rels2, err := ms.ListInferred(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, triples(rels1), triples(rels2))
	assert.Equal(t, []triple{{"ADVISES_ON", "anna", sparbrief}}, triples(rels2))
}

func TestRebuild_FollowsActiveSet(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	cfg := engineCfg(t)
	ing := newIngest(t, ms)
	seedAdvisors(t, ing)
	inf := NewInferenceService(ms, cfg.InferenceRules, nil, zap.NewNop())

	_, err := inf.Rebuild(ctx)
	require.NoError(t, err)

	// the feed withdraws the role; the relationship must disappear
	mustIngest(t, ing, "internal-feed", product("internal-feed", sparbrief, "product_type", "InterestProduct", t1))
	res, err := inf.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	rels, err := ms.ListInferred(ctx, "ADVISES_ON")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestRebuild_FailureKeepsPreviousLayer(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memstore.New()}
	cfg := engineCfg(t)
	seedAdvisors(t, newIngest(t, fs))
	inf := NewInferenceService(fs, cfg.InferenceRules, nil, zap.NewNop())

	_, err := inf.Rebuild(ctx)
	require.NoError(t, err)

	boom := errors.New("disk full")
	fs.wrapTx = func(tx domain.GraphTx) domain.GraphTx {
		return &failingTx{GraphTx: tx, createInferredErr: boom}
	}
	_, err = inf.Rebuild(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInferenceRebuild)
	assert.ErrorIs(t, err, boom)

	rels, err := fs.ListInferred(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}
