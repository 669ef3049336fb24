package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extraction engine.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesFetched     *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	RecordsExtracted prometheus.Counter
	RowsSkipped      prometheus.Counter
	DetailFailures   prometheus.Counter
	Retries          prometheus.Counter
	BackendFallbacks prometheus.Counter
	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_pages_fetched_total",
			Help: "Listing and detail pages fetched, by backend.",
		},
		[]string{"backend"},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_fetch_errors_total",
			Help: "Failed fetches by error kind.",
		},
		[]string{"kind"},
	)
	recordsExtracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_records_total",
			Help: "Order records yielded by listing walks.",
		},
	)
	rowsSkipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_rows_skipped_total",
			Help: "Listing rows skipped because no id could be parsed.",
		},
	)
	detailFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_detail_failures_total",
			Help: "Detail fetches or parses that soft-failed to empty fields.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_retries_total",
			Help: "Retry attempts scheduled for transient fetch failures.",
		},
	)
	backendFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extract_backend_fallbacks_total",
			Help: "Runs demoted to the secondary fetch backend.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_runs_total",
			Help: "Extraction runs by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extract_run_duration_seconds",
			Help:    "Wall-clock duration of extraction runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	registry.MustRegister(pagesFetched, fetchErrors, recordsExtracted, rowsSkipped,
		detailFailures, retries, backendFallbacks, runs, runDuration)

	return &Metrics{
		Registry:         registry,
		PagesFetched:     pagesFetched,
		FetchErrors:      fetchErrors,
		RecordsExtracted: recordsExtracted,
		RowsSkipped:      rowsSkipped,
		DetailFailures:   detailFailures,
		Retries:          retries,
		BackendFallbacks: backendFallbacks,
		Runs:             runs,
		RunDuration:      runDuration,
	}
}

// IncPage counts one fetched page for a backend.
func (m *Metrics) IncPage(backend string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(backend).Inc()
}

// IncFetchError counts a failed fetch by kind.
func (m *Metrics) IncFetchError(kind string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(kind).Inc()
}

// AddRecords counts records yielded by a walk.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.Add(float64(n))
}

// AddSkippedRows counts rows dropped for a missing id.
func (m *Metrics) AddSkippedRows(n int) {
	if m == nil {
		return
	}
	m.RowsSkipped.Add(float64(n))
}

// IncDetailFailure counts a soft-failed detail enrichment.
func (m *Metrics) IncDetailFailure() {
	if m == nil {
		return
	}
	m.DetailFailures.Inc()
}

// IncRetry counts a scheduled retry.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// IncFallback counts a backend demotion.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.BackendFallbacks.Inc()
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}
