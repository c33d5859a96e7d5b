package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/producer"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProducer struct {
	mu      sync.Mutex
	batches map[string][]domain.ProvableFact
	errs    map[string]error
	calls   []string
}

func (p *stubProducer) Produce(ctx context.Context, src config.Source) (*producer.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, src.ID)
	if err := p.errs[src.ID]; err != nil {
		return nil, err
	}
	return &producer.Batch{SourceID: src.ID, Grounded: p.batches[src.ID]}, nil
}

func newTestRunner(t *testing.T, gs domain.GraphStore, prod BatchProducer) *Runner {
	t.Helper()
	cfg := engineCfg(t)
	ing := NewIngestService(gs, cfg, nil, zap.NewNop())
	inf := NewInferenceService(gs, cfg.InferenceRules, nil, zap.NewNop())
	r := NewRunner(cfg, prod, ing, inf, zap.NewNop())
	r.SetWorkers(2, 2)
	return r
}

func reportFor(t *testing.T, r *RunReport, sourceID string) SourceReport {
	t.Helper()
	for _, s := range r.Sources {
		if s.SourceID == sourceID {
			return s
		}
	}
	t.Fatalf("no report for %s", sourceID)
	return SourceReport{}
}

func TestRunner_ReportsPerSource(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	prod := &stubProducer{
		batches: map[string][]domain.ProvableFact{
			"public-site":   {product("public-site", sparbrief, "interest_rate", "2.0", t0), product("public-site", sparbrief, "product_type", "InterestProduct", t0)},
			"internal-feed": {product("internal-feed", sparbrief, "interest_rate", "2.5", t1), employee("internal-feed", "anna", "role_type", "Advisor", t1)},
		},
		errs: map[string]error{"mirror-site": errors.New("connection refused")},
	}
	r := newTestRunner(t, ms, prod)

	report, err := r.Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 3)
	assert.ElementsMatch(t, []string{"public-site", "mirror-site", "internal-feed"}, prod.calls)

	pub := reportFor(t, report, "public-site")
	assert.Equal(t, StatusIngested, pub.Status)
	assert.Equal(t, 2, pub.Grounded)
	require.NotNil(t, pub.Ingest)

	mirror := reportFor(t, report, "mirror-site")
	assert.Equal(t, StatusSkipped, mirror.Status)
	assert.ErrorIs(t, mirror.Err(), ErrProducer)
	assert.Contains(t, mirror.Error, "connection refused")

	assert.Equal(t, StatusIngested, reportFor(t, report, "internal-feed").Status)
	assert.Equal(t, 2, report.Committed())

	require.NotNil(t, report.Inference)
	assert.Equal(t, InferenceRebuilt, report.Inference.Status)
	assert.Equal(t, 1, report.Inference.Result.Created)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	ent, err := ms.GetEntity(ctx, sparbrief)
	require.NoError(t, err)
	assert.Equal(t, "2.5", ent.Attributes["interest_rate"])
}

func TestRunner_IngestFailureIsolated(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memstore.New()}
	fs.wrapTx = func(tx domain.GraphTx) domain.GraphTx {
		return &failingTx{GraphTx: tx, corruptSource: "internal-feed"}
	}
	prod := &stubProducer{
		batches: map[string][]domain.ProvableFact{
			"public-site":   {product("public-site", sparbrief, "interest_rate", "2.0", t0)},
			"mirror-site":   {product("mirror-site", "tagesgeld", "interest_rate", "1.0", t0)},
			"internal-feed": {product("internal-feed", sparbrief, "interest_rate", "2.5", t1)},
		},
	}
	r := newTestRunner(t, fs, prod)

	report, err := r.Run(ctx, nil)
	require.NoError(t, err)

	failed := reportFor(t, report, "internal-feed")
	assert.Equal(t, StatusFailed, failed.Status)
	assert.ErrorIs(t, failed.Err(), ErrInvariantViolation)
	assert.Equal(t, StatusIngested, reportFor(t, report, "public-site").Status)
	assert.Equal(t, StatusIngested, reportFor(t, report, "mirror-site").Status)
	assert.Equal(t, InferenceRebuilt, report.Inference.Status)

	ent, err := fs.GetEntity(ctx, sparbrief)
	require.NoError(t, err)
	assert.Equal(t, "2.0", ent.Attributes["interest_rate"])
}

func TestRunner_NoCommitSkipsRebuild(t *testing.T) {
	boom := errors.New("boom")
	prod := &stubProducer{errs: map[string]error{"public-site": boom, "mirror-site": boom, "internal-feed": boom}}
	r := newTestRunner(t, memstore.New(), prod)

	report, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Committed())
	assert.Equal(t, InferenceNotRun, report.Inference.Status)
	for _, s := range report.Sources {
		assert.Equal(t, StatusSkipped, s.Status)
	}
}

func TestRunner_RebuildFailureKeepsIngestion(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memstore.New()}
	fs.wrapTx = func(tx domain.GraphTx) domain.GraphTx {
		return &failingTx{GraphTx: tx, createInferredErr: errors.New("disk full")}
	}
	prod := &stubProducer{batches: map[string][]domain.ProvableFact{
		"internal-feed": {employee("internal-feed", "anna", "role_type", "Advisor", t0), product("internal-feed", sparbrief, "product_type", "InterestProduct", t0)},
	}}
	r := newTestRunner(t, fs, prod)

	report, err := r.Run(ctx, []string{"internal-feed"})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, reportFor(t, report, "internal-feed").Status)
	assert.Equal(t, InferenceFailed, report.Inference.Status)
	assert.Contains(t, report.Inference.Error, ErrInferenceRebuild.Error())

	ent, err := fs.GetEntity(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, "Advisor", ent.Attributes["role_type"])
}

func TestRunner_SelectsSources(t *testing.T) {
	prod := &stubProducer{}
	r := newTestRunner(t, memstore.New(), prod)

	_, err := r.Run(context.Background(), []string{"public-site", "nope"})
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Empty(t, prod.calls)

	report, err := r.Run(context.Background(), []string{"partner-push", "public-site", "public-site"})
	require.NoError(t, err)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, StatusSkipped, reportFor(t, report, "partner-push").Status)
	assert.Equal(t, StatusIngested, reportFor(t, report, "public-site").Status)
	assert.Equal(t, []string{"public-site"}, prod.calls)
}

func TestRunner_CanceledContext(t *testing.T) {
	prod := &stubProducer{batches: map[string][]domain.ProvableFact{
		"public-site": {product("public-site", sparbrief, "interest_rate", "2.0", t0)},
	}}
	r := newTestRunner(t, memstore.New(), prod)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, []string{"public-site"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, reportFor(t, report, "public-site").Status)
	assert.Equal(t, InferenceNotRun, report.Inference.Status)
}

func TestRunner_Submit(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	r := newTestRunner(t, ms, &stubProducer{})

	res, err := r.Submit(ctx, "partner-push", []domain.ProvableFact{
		employee("partner-push", "anna", "role_type", "Advisor", t0),
		product("partner-push", sparbrief, "product_type", "InterestProduct", t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Ingest.Activated)
	assert.Equal(t, InferenceRebuilt, res.Inference.Status)
	assert.Equal(t, 1, res.Inference.Result.Created)

	_, err = r.Submit(ctx, "", nil)
	assert.ErrorIs(t, err, ErrEmptySourceID)
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	prod := &stubProducer{batches: map[string][]domain.ProvableFact{
		"public-site": {product("public-site", sparbrief, "interest_rate", "2.0", t0)},
	}}
	r := newTestRunner(t, memstore.New(), prod)

	s := NewScheduler(r, 10*time.Millisecond, zap.NewNop())
	s.Start()
	require.Eventually(t, func() bool { return s.LastReport() != nil }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	report := s.LastReport()
	assert.Equal(t, StatusIngested, reportFor(t, report, "public-site").Status)
}
