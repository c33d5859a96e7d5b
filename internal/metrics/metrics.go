// Package metrics holds the Prometheus collectors of the engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ingests          *prometheus.CounterVec
	facts            *prometheus.CounterVec
	staleDeactivated prometheus.Counter
	ingestDuration   prometheus.Histogram
	ingestRetries    prometheus.Counter
	rebuilds         *prometheus.CounterVec
	inferred         prometheus.Gauge
	fetches          *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ingests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factgraph_ingest_total",
			Help: "Ingestion transactions by outcome",
		}, []string{"status"}),
		facts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factgraph_facts_total",
			Help: "Submitted facts by corroboration outcome",
		}, []string{"outcome"}),
		staleDeactivated: f.NewCounter(prometheus.CounterOpts{
			Name: "factgraph_stale_edges_deactivated_total",
			Help: "Provenance edges deactivated by staleness reconciliation",
		}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "factgraph_ingest_duration_seconds",
			Help:    "Time to run one ingestion transaction including retries",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		ingestRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "factgraph_ingest_retries_total",
			Help: "Ingestion transactions retried after a serialization failure",
		}),
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factgraph_inference_rebuild_total",
			Help: "Inference rebuilds by outcome",
		}, []string{"status"}),
		inferred: f.NewGauge(prometheus.GaugeOpts{
			Name: "factgraph_inferred_relationships",
			Help: "Inferred relationships written by the last successful rebuild",
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factgraph_fetch_total",
			Help: "Crawler fetches by outcome",
		}, []string{"status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factgraph_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "factgraph_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) IngestDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) Facts(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.facts.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) StaleDeactivated(n int) {
	if m == nil || n == 0 {
		return
	}
	m.staleDeactivated.Add(float64(n))
}

func (m *Metrics) IngestRetry() {
	if m == nil {
		return
	}
	m.ingestRetries.Inc()
}

func (m *Metrics) RebuildDone(status string, relationships int) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(status).Inc()
	if status == "ok" {
		m.inferred.Set(float64(relationships))
	}
}

func (m *Metrics) Fetch(status string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(status).Inc()
}

func (m *Metrics) HTTPRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusText(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
