// Package metrics defines the Prometheus collectors of the indexer and the
// searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchStageDuration  *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	ColumnCommitsTotal   *prometheus.CounterVec
	CommitDuration       prometheus.Histogram
	PagesWrittenTotal    prometheus.Counter
	PageDepth            prometheus.Histogram
	IngestQueueDepth     *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer exposes them on Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_stage_duration_seconds",
				Help:    "Time spent in each stage of an uncached search.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stage"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching documents per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		ColumnCommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "column_commits_total",
				Help: "Total column commits by status (written, empty, error).",
			},
			[]string{"status"},
		),
		CommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_commit_duration_seconds",
				Help:    "Duration of an index session commit across all columns.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
			},
		),
		PagesWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pages_written_total",
				Help: "Total column pages appended.",
			},
		),
		PageDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "page_tree_depth",
				Help:    "Depth of the tree serialized into each page.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		IngestQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_queue_depth",
				Help: "Items buffered between ingest pipeline stages.",
			},
			[]string{"stage"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchStageDuration,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.ColumnCommitsTotal,
		m.CommitDuration,
		m.PagesWrittenTotal,
		m.PageDepth,
		m.IngestQueueDepth,
		m.CircuitBreakerState,
	)

	return m
}

// ObservePage records one column commit. depth is zero for a column that had
// nothing to write.
func (m *Metrics) ObservePage(depth int, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.ColumnCommitsTotal.WithLabelValues("error").Inc()
	case depth == 0:
		m.ColumnCommitsTotal.WithLabelValues("empty").Inc()
	default:
		m.ColumnCommitsTotal.WithLabelValues("written").Inc()
		m.PagesWrittenTotal.Inc()
		m.PageDepth.Observe(float64(depth))
	}
}

// ObserveCommit records the duration of a whole session commit.
func (m *Metrics) ObserveCommit(d time.Duration) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(d.Seconds())
}

func (m *Metrics) DocsIndexed(n int) {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Add(float64(n))
}

// ObserveSearch records one search by outcome.
func (m *Metrics) ObserveSearch(cacheStatus string, total int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	switch {
	case err != nil:
		m.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case total == 0:
		m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	m.SearchResultsCount.Observe(float64(total))
}

// ObserveStages records the per-stage timings of one search.
func (m *Metrics) ObserveStages(stages map[string]time.Duration) {
	if m == nil {
		return
	}
	for name, d := range stages {
		m.SearchStageDuration.WithLabelValues(name).Observe(d.Seconds())
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

// SetQueueDepth reports the buffered items of one ingest stage.
func (m *Metrics) SetQueueDepth(stage string, n int) {
	if m != nil {
		m.IngestQueueDepth.WithLabelValues(stage).Set(float64(n))
	}
}

// SetBreakerState mirrors a circuit breaker state into the gauge.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// Handler returns the Prometheus scrape HTTP handler for the default
// gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
