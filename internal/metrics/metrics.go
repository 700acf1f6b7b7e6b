// Package metrics holds the Prometheus collectors of the inspection core
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcome labels
const (
	StatusOK        = "ok"
	StatusCached    = "cached"
	StatusBusy      = "busy"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// Cache metrics
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec
	CachePutsTotal        *prometheus.CounterVec
	CacheStaleWritesTotal *prometheus.CounterVec
	CacheEvictionsTotal   *prometheus.CounterVec
	CacheEntries          *prometheus.GaugeVec

	// Analysis metrics
	AnalysisTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	// Batch metrics
	BatchFilesTotal *prometheus.CounterVec
	BatchesRunning  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_cache_hits_total",
				Help: "Total number of violation cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_cache_misses_total",
				Help: "Total number of violation cache misses",
			},
			[]string{"tier"},
		),
		CachePutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_cache_puts_total",
				Help: "Total number of violation cache writes",
			},
			[]string{"tier"},
		),
		CacheStaleWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_cache_stale_writes_total",
				Help: "Total number of cache writes rejected for an outdated content version",
			},
			[]string{"tier"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_cache_evictions_total",
				Help: "Total number of cache entries evicted or invalidated",
			},
			[]string{"tier", "reason"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsinspect_cache_entries",
				Help: "Current number of cached analysis results",
			},
			[]string{"tier"},
		),
		AnalysisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_analysis_total",
				Help: "Total number of analysis requests by outcome",
			},
			[]string{"mode", "status"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsinspect_analysis_duration_seconds",
				Help:    "Analyzer invocation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"mode"},
		),
		BatchFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsinspect_batch_files_total",
				Help: "Total number of files processed by batch runs",
			},
			[]string{"status"},
		),
		BatchesRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsinspect_batches_running",
				Help: "Number of batch runs in flight",
			},
		),
	}

	registry.MustRegister(
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CachePutsTotal,
		m.CacheStaleWritesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.AnalysisTotal,
		m.AnalysisDuration,
		m.BatchFilesTotal,
		m.BatchesRunning,
	)

	return m
}

// CacheHit records a cache hit
func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(tier).Inc()
}

// CacheMiss records a cache miss
func (m *Metrics) CacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(tier).Inc()
}

// CachePut records an accepted cache write and the resulting size
func (m *Metrics) CachePut(tier string, entries int) {
	if m == nil {
		return
	}
	m.CachePutsTotal.WithLabelValues(tier).Inc()
	m.CacheEntries.WithLabelValues(tier).Set(float64(entries))
}

// CacheStaleWrite records a rejected cache write
func (m *Metrics) CacheStaleWrite(tier string) {
	if m == nil {
		return
	}
	m.CacheStaleWritesTotal.WithLabelValues(tier).Inc()
}

// CacheEvicted records n removed entries and the resulting size
func (m *Metrics) CacheEvicted(tier, reason string, n, entries int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.CacheEvictionsTotal.WithLabelValues(tier, reason).Add(float64(n))
	}
	m.CacheEntries.WithLabelValues(tier).Set(float64(entries))
}

// Analysis records the outcome of an analysis request
func (m *Metrics) Analysis(mode, status string) {
	if m == nil {
		return
	}
	m.AnalysisTotal.WithLabelValues(mode, status).Inc()
}

// AnalyzerDuration records how long an analyzer invocation took
func (m *Metrics) AnalyzerDuration(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// BatchFile records a file processed by a batch run
func (m *Metrics) BatchFile(status string) {
	if m == nil {
		return
	}
	m.BatchFilesTotal.WithLabelValues(status).Inc()
}

// BatchStarted increments the in-flight batch gauge and returns its decrement
func (m *Metrics) BatchStarted() func() {
	if m == nil {
		return func() {}
	}
	m.BatchesRunning.Inc()
	return m.BatchesRunning.Dec
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
