package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const engineConfig = `
sources:
  - id: public-site
    kind: web
    location: https://www.vblh.de/sparbrief
    trust: 3
  - id: mirror-site
    kind: web
    location: https://mirror.example.org/sparbrief
    trust: 3
  - id: internal-feed
    kind: file
    location: feed.yaml
    trust: 9
  - id: partner-push
    kind: push
    trust: 5
slots:
  product: [interest_rate, product_type, min_deposit]
  employee: [role_type, advises_product]
inference_rules:
  - name: advisors_on_interest_products
    relation: ADVISES_ON
    subject: {kind: employee, attribute: role_type, equals: Advisor}
    object: {kind: product, attribute: product_type, equals: InterestProduct}
  - name: named_product
    relation: RESPONSIBLE_FOR
    subject: {kind: employee, attribute: role_type}
    object: {kind: product}
    link_attribute: advises_product
`

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t0.Add(48 * time.Hour)
)

func engineCfg(t *testing.T) *config.Corroboration {
	t.Helper()
	cfg, err := config.ParseCorroboration([]byte(engineConfig))
	require.NoError(t, err)
	return cfg
}

func product(source, key, attr, value string, at time.Time) domain.ProvableFact {
	return domain.ProvableFact{
		EntityKey:   key,
		EntityKind:  domain.EntityProduct,
		Attribute:   attr,
		Value:       value,
		SourceID:    source,
		ObservedAt:  at,
		EvidenceRef: "ref:" + source,
	}
}

func employee(source, key, attr, value string, at time.Time) domain.ProvableFact {
	f := product(source, key, attr, value, at)
	f.EntityKind = domain.EntityEmployee
	return f
}

func newIngest(t *testing.T, gs domain.GraphStore) *IngestService {
	t.Helper()
	return NewIngestService(gs, engineCfg(t), nil, zap.NewNop())
}

func mustIngest(t *testing.T, s *IngestService, source string, facts ...domain.ProvableFact) *IngestResult {
	t.Helper()
	res, err := s.Ingest(context.Background(), source, facts)
	require.NoError(t, err)
	return res
}

// activeBySlot fails the test when a slot holds more than one active edge.
func activeBySlot(t *testing.T, ms *memstore.Store) map[domain.Slot]domain.ProvenanceEdge {
	t.Helper()
	var edges []domain.ProvenanceEdge
	require.NoError(t, ms.WithTx(context.Background(), func(tx domain.GraphTx) error {
		var err error
		edges, err = tx.ActiveEdges(context.Background())
		return err
	}))
	out := make(map[domain.Slot]domain.ProvenanceEdge, len(edges))
	for _, e := range edges {
		_, dup := out[e.Slot()]
		require.False(t, dup, "slot %s has two active edges", e.Slot())
		out[e.Slot()] = e
	}
	return out
}

// faultyStore wraps the memory store to inject failures.
type faultyStore struct {
	*memstore.Store

	mu                    sync.Mutex
	serializationFailures int
	calls                 int
	wrapTx                func(domain.GraphTx) domain.GraphTx
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(domain.GraphTx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.serializationFailures
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("graph tx: %w", store.ErrSerialization)
	}
	return s.Store.WithTx(ctx, func(tx domain.GraphTx) error {
		if s.wrapTx != nil {
			tx = s.wrapTx(tx)
		}
		return fn(tx)
	})
}

type failingTx struct {
	domain.GraphTx

	failSetAttributeAt int
	setAttributeCalls  int
	corruptSource      string
	createInferredErr  error
}

func (t *failingTx) SetAttribute(ctx context.Context, key string, kind domain.EntityKind, attr string, value *string) error {
	t.setAttributeCalls++
	if t.failSetAttributeAt > 0 && t.setAttributeCalls == t.failSetAttributeAt {
		return errors.New("write entity: connection reset")
	}
	return t.GraphTx.SetAttribute(ctx, key, kind, attr, value)
}

// ActiveClaims reports two active claims for every slot read by corruptSource.
func (t *failingTx) ActiveClaims(ctx context.Context, slot domain.Slot, exclude string) ([]domain.ProvenanceEdge, error) {
	if t.corruptSource != "" && exclude == t.corruptSource {
		return []domain.ProvenanceEdge{
			{ID: uuid.New(), EntityKey: slot.EntityKey, Attribute: slot.Attribute, SourceID: "a", IsActive: true},
			{ID: uuid.New(), EntityKey: slot.EntityKey, Attribute: slot.Attribute, SourceID: "b", IsActive: true},
		}, nil
	}
	return t.GraphTx.ActiveClaims(ctx, slot, exclude)
}

func (t *failingTx) CreateInferred(ctx context.Context, rels []domain.InferredRelationship) error {
	if t.createInferredErr != nil {
		return t.createInferredErr
	}
	return t.GraphTx.CreateInferred(ctx, rels)
}
