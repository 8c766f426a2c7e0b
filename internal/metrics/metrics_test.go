package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/docgraph/internal/metrics"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.IncPagesCommitted("ok")
		m.ObserveFetch("ok", time.Second)
		m.IncScopeRejected("host")
		m.ObserveQuery("graph", time.Millisecond)
		m.IncCacheLookup(true)
		m.IncGraphFallback("error")
	})
}

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.IncScopeRejected("link_text")
	m.IncScopeRejected("link_text")
	m.IncPagesCommitted("error")
	m.ObserveQuery("lexical", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScopeRejected.WithLabelValues("link_text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesCommitted.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("lexical")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := metrics.New()
	m.IncBrowserRenders()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "docgraph_browser_renders_total 1")
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}
