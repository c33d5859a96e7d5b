package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mw "github.com/Harshitk-cp/factgraph/internal/api/middleware"
	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/metrics"
	"github.com/Harshitk-cp/factgraph/internal/producer"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfig = `
sources:
  - id: public-site
    kind: web
    trust: 3
  - id: partner-push
    kind: push
    trust: 9
slots:
  product: [interest_rate, product_type]
  employee: [role_type]
inference_rules:
  - name: advisors
    relation: ADVISES_ON
    subject: {kind: employee, attribute: role_type, equals: Advisor}
    object: {kind: product, attribute: product_type, equals: InterestProduct}
`

const adminToken = "s3cret"

type staticProducer struct{}

func (staticProducer) Produce(ctx context.Context, src config.Source) (*producer.Batch, error) {
	return &producer.Batch{SourceID: src.ID, Grounded: []domain.ProvableFact{{
		EntityKey:  "tagesgeld",
		EntityKind: domain.EntityProduct,
		Attribute:  "interest_rate",
		Value:      "1.0",
		SourceID:   src.ID,
		ObservedAt: mustTime("2026-03-01T09:00:00Z"),
	}}}, nil
}

type testServer struct {
	*httptest.Server
	store *memstore.Store
}

func newTestServer(t *testing.T, admin string) *testServer {
	t.Helper()
	cfg, err := config.ParseCorroboration([]byte(testConfig))
	require.NoError(t, err)

	ms := memstore.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := zap.NewNop()

	ingest := service.NewIngestService(ms, cfg, m, logger)
	inference := service.NewInferenceService(ms, cfg.InferenceRules, m, logger)
	runner := service.NewRunner(cfg, staticProducer{}, ingest, inference, logger)

	app := NewApp(Deps{
		Store:      ms,
		Clients:    ms,
		Runner:     runner,
		Query:      service.NewQueryService(ms),
		ClientSvc:  service.NewClientService(ms, cfg),
		Metrics:    m,
		Gatherer:   reg,
		AdminToken: admin,
		Logger:     logger,
	})
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: ms}
}

func (s *testServer) do(t *testing.T, method, path, key string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (s *testServer) register(t *testing.T) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/clients", strings.NewReader(`{"name":"partner","source_id":"partner-push"}`))
	require.NoError(t, err)
	req.Header.Set(mw.AdminTokenHeader, adminToken)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		APIKey   string `json:"api_key"`
		SourceID string `json:"source_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "partner-push", out.SourceID)
	return out.APIKey
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, adminToken)

	resp, body := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(mw.RequestIDHeader))
	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "dev", health["version"])

	resp, body = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "factgraph_http_requests_total")
}

func TestClientRegistration(t *testing.T) {
	srv := newTestServer(t, adminToken)

	resp, _ := srv.do(t, http.MethodPost, "/v1/clients", "", map[string]string{"name": "x", "source_id": "partner-push"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	key := srv.register(t)
	assert.True(t, strings.HasPrefix(key, "fg_"))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/clients", strings.NewReader(`{"name":"other","source_id":"public-site"}`))
	require.NoError(t, err)
	req.Header.Set(mw.AdminTokenHeader, adminToken)
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	disabled := newTestServer(t, "")
	resp, _ = disabled.do(t, http.MethodPost, "/v1/clients", "", map[string]string{"name": "x", "source_id": "partner-push"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, adminToken)

	resp, _ := srv.do(t, http.MethodGet, "/v1/entities", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/v1/entities", "fg_wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBatchLifecycle(t *testing.T) {
	srv := newTestServer(t, adminToken)
	key := srv.register(t)

	batch := map[string]any{"facts": []map[string]any{
		{"entity_key": "sparbrief", "entity_kind": "product", "attribute": "interest_rate", "value": "2.5", "observed_at": "2026-03-02T09:00:00Z"},
		{"entity_key": "sparbrief", "entity_kind": "product", "attribute": "product_type", "value": "InterestProduct", "observed_at": "2026-03-02T09:00:00Z"},
		{"entity_key": "anna", "entity_kind": "employee", "attribute": "role_type", "value": "Advisor", "observed_at": "2026-03-02T09:00:00Z"},
		{"entity_key": "anna", "entity_kind": "employee", "attribute": "role_type", "value": "Advisor", "observed_at": "2026-03-02T09:00:00Z", "source_id": "public-site"},
	}}
	resp, body := srv.do(t, http.MethodPost, "/v1/batches", key, batch)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var submitted service.SubmitResult
	require.NoError(t, json.Unmarshal(body, &submitted))
	assert.Equal(t, 3, submitted.Ingest.Activated)
	assert.Len(t, submitted.Ingest.Rejections, 1)
	assert.Equal(t, service.InferenceRebuilt, submitted.Inference.Status)
	assert.Equal(t, 1, submitted.Inference.Result.Created)

	resp, body = srv.do(t, http.MethodGet, "/v1/entities/sparbrief", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ent domain.Entity
	require.NoError(t, json.Unmarshal(body, &ent))
	assert.Equal(t, "2.5", ent.Attributes["interest_rate"])

	resp, body = srv.do(t, http.MethodGet, "/v1/entities?kind=product&attr.product_type=InterestProduct", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ents []domain.Entity
	require.NoError(t, json.Unmarshal(body, &ents))
	require.Len(t, ents, 1)
	assert.Equal(t, "sparbrief", ents[0].Key)

	resp, body = srv.do(t, http.MethodGet, "/v1/entities/sparbrief/provenance", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edges []domain.ProvenanceEdge
	require.NoError(t, json.Unmarshal(body, &edges))
	assert.Len(t, edges, 2)
	assert.Equal(t, 9.0, edges[0].SourceTrust)

	resp, body = srv.do(t, http.MethodGet, "/v1/relationships?relation=ADVISES_ON", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rels []domain.InferredRelationship
	require.NoError(t, json.Unmarshal(body, &rels))
	require.Len(t, rels, 1)
	assert.Equal(t, "anna", rels[0].SubjectKey)

	resp, body = srv.do(t, http.MethodGet, "/v1/claims", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &edges))
	assert.Len(t, edges, 3)

	// an empty batch withdraws every claim of the source
	resp, body = srv.do(t, http.MethodPost, "/v1/batches", key, map[string]any{"facts": []any{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var emptied service.SubmitResult
	require.NoError(t, json.Unmarshal(body, &emptied))
	assert.Equal(t, 3, emptied.Ingest.Deactivated)
	assert.Equal(t, 0, emptied.Inference.Result.Created)

	resp, body = srv.do(t, http.MethodGet, "/v1/relationships", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = srv.do(t, http.MethodGet, "/v1/entities/missing", key, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatchRejectsBadBody(t *testing.T) {
	srv := newTestServer(t, adminToken)
	key := srv.register(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/batches", strings.NewReader(`{"facts":`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsAndRebuild(t *testing.T) {
	srv := newTestServer(t, adminToken)
	key := srv.register(t)

	resp, _ := srv.do(t, http.MethodPost, "/v1/runs?source=nope", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := srv.do(t, http.MethodPost, "/v1/runs", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report service.RunReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "public-site", report.Sources[0].SourceID)
	assert.Equal(t, service.StatusIngested, report.Sources[0].Status)

	ent, err := srv.store.GetEntity(context.Background(), "tagesgeld")
	require.NoError(t, err)
	assert.Equal(t, "1.0", ent.Attributes["interest_rate"])

	resp, body = srv.do(t, http.MethodPost, "/v1/inference/rebuild", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rebuilt service.RebuildResult
	require.NoError(t, json.Unmarshal(body, &rebuilt))
	assert.Equal(t, 0, rebuilt.Created)

	resp, _ = srv.do(t, http.MethodGet, "/v1/entities?limit=0", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodGet, "/v1/entities?kind=planet", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
