package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the crawl and query paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PagesCommitted   *prometheus.CounterVec
	FetchAttempts    *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	BrowserRenders   prometheus.Counter
	ScopeRejected    *prometheus.CounterVec
	FrontierSize     prometheus.Gauge
	Queries          *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	GraphFallbacks   *prometheus.CounterVec
	GenerationErrors prometheus.Counter
	CacheLookups     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PagesCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_pages_committed_total",
			Help: "Pages committed to the store, by page status.",
		}, []string{"status"}), // ok, empty, error
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_fetch_attempts_total",
			Help: "Render attempts, by outcome.",
		}, []string{"outcome"}), // ok, retry, failed
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgraph_fetch_duration_seconds",
			Help:    "Duration of a single render attempt.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BrowserRenders: factory.NewCounter(prometheus.CounterOpts{
			Name: "docgraph_browser_renders_total",
			Help: "Pages that needed the headless browser.",
		}),
		ScopeRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_scope_rejected_total",
			Help: "Discovered links rejected by the scope filter, by reason.",
		}, []string{"reason"}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docgraph_frontier_size",
			Help: "Locations waiting in the crawl frontier.",
		}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_queries_total",
			Help: "Answered questions, by resolution path.",
		}, []string{"path"}), // graph, lexical
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docgraph_query_duration_seconds",
			Help:    "Time to resolve a question, by resolution path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		GraphFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_graph_fallbacks_total",
			Help: "Structural questions answered by lexical retrieval instead, by reason.",
		}, []string{"reason"}), // no_match, error
		GenerationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "docgraph_generation_errors_total",
			Help: "Failed calls to the generation service.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_search_cache_lookups_total",
			Help: "Search cache lookups, by result.",
		}, []string{"result"}), // hit, miss
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgraph_http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: gatherer,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncPagesCommitted(status string) {
	if m == nil {
		return
	}
	m.PagesCommitted.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncBrowserRenders() {
	if m == nil {
		return
	}
	m.BrowserRenders.Inc()
}

func (m *Metrics) IncScopeRejected(reason string) {
	if m == nil {
		return
	}
	m.ScopeRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetFrontierSize(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

func (m *Metrics) ObserveQuery(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(path).Inc()
	m.QueryDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *Metrics) IncGraphFallback(reason string) {
	if m == nil {
		return
	}
	m.GraphFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncGenerationErrors() {
	if m == nil {
		return
	}
	m.GenerationErrors.Inc()
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
