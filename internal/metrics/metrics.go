// Package metrics holds the Prometheus collectors for ingestion and queries.
//
// A nil *Metrics is valid and records nothing, so components can be used
// without a registry in tests and one-off tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aisdb"

// Metrics groups every collector the pipeline records to.
type Metrics struct {
	registry *prometheus.Registry

	// Decoding
	lines *prometheus.CounterVec

	// Writing
	rows    *prometheus.CounterVec
	batches *prometheus.CounterVec

	// Ingestion runs
	ingestDuration prometheus.Histogram
	workers        prometheus.Gauge

	// Queries
	queryDuration *prometheus.HistogramVec
	queryErrors   prometheus.Counter
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheEntries  prometheus.Gauge
}

// New creates the collectors and registers them with registry. If registry
// is nil a fresh one is created.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decoder_lines_total",
				Help:      "Input lines seen by the decoder, by outcome",
			},
			[]string{"result"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Rows written, by table",
			},
			[]string{"table"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Ingested batches, by status",
			},
			[]string{"status"},
		),
		ingestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Wall time of complete ingestion runs",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		),
		workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ingest_workers",
				Help:      "Worker count chosen for the current ingestion run",
			},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query latency, by cache outcome",
				Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2, 10},
			},
			[]string{"cache"},
		),
		queryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_errors_total",
				Help:      "Queries that failed in the store",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_hits_total",
				Help:      "Result cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_misses_total",
				Help:      "Result cache misses",
			},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "query_cache_entries",
				Help:      "Result sets currently cached",
			},
		),
	}

	registry.MustRegister(
		m.lines,
		m.rows,
		m.batches,
		m.ingestDuration,
		m.workers,
		m.queryDuration,
		m.queryErrors,
		m.cacheHits,
		m.cacheMisses,
		m.cacheEntries,
	)

	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registered collectors in the Prometheus exposition
// format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Line outcomes.
const (
	LineDecoded = "decoded"
	LineFailed  = "failed"
	LineDropped = "dropped"
)

// RecordLine counts one input line with the given outcome.
func (m *Metrics) RecordLine(result string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(result).Inc()
}

// RecordRows counts n rows written to table.
func (m *Metrics) RecordRows(table string, n int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(table).Add(float64(n))
}

// RecordBatch counts one finished batch.
func (m *Metrics) RecordBatch(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.batches.WithLabelValues(status).Inc()
}

// RecordIngest records a finished ingestion run.
func (m *Metrics) RecordIngest(workers int, d time.Duration) {
	if m == nil {
		return
	}
	m.workers.Set(float64(workers))
	m.ingestDuration.Observe(d.Seconds())
}

// RecordQuery records one query. hit reports whether the result cache
// served it.
func (m *Metrics) RecordQuery(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
	m.queryDuration.WithLabelValues(label).Observe(d.Seconds())
}

// RecordQueryError counts a query that failed in the store.
func (m *Metrics) RecordQueryError() {
	if m == nil {
		return
	}
	m.queryErrors.Inc()
}

// SetCacheEntries reports the current result cache size.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}
