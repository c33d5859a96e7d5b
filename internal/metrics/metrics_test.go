package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IngestDone("committed", 20*time.Millisecond)
	m.Facts("activated", 3)
	m.Facts("shadowed", 0)
	m.StaleDeactivated(2)
	m.RebuildDone("ok", 7)
	m.HTTPRequest("GET", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingests.WithLabelValues("committed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.facts.WithLabelValues("activated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.staleDeactivated))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.inferred))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "4xx")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IngestDone("failed", time.Second)
		m.Facts("activated", 1)
		m.RebuildDone("failed", 0)
		m.Fetch("ok")
	})
}
