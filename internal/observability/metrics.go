// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Index metrics
	IndexLoads        *prometheus.CounterVec
	IndexLoadDuration prometheus.Histogram
	IndexCandles      *prometheus.GaugeVec
	IndexLockWait     prometheus.Histogram

	// Analysis metrics
	AnalysisDuration     *prometheus.HistogramVec
	AnalysisErrors       *prometheus.CounterVec
	OccurrencesSkipped   *prometheus.CounterVec
	ProfileCacheRequests *prometheus.CounterVec

	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	TradesSimulated   *prometheus.CounterVec

	// Ingestion metrics
	CandlesImported prometheus.Counter
	EventsImported  prometheus.Counter
	ImportErrors    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "event_impact_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Index metrics
		IndexLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "loads_total",
			Help:      "Total number of symbol loads by status",
		}, []string{"status"}),
		IndexLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "load_duration_seconds",
			Help:      "Time spent fetching and sorting a symbol's candles",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		IndexCandles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "candles",
			Help:      "Number of candles held in the index per symbol",
		}, []string{"symbol"}),
		IndexLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire the index guard",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		// Analysis metrics
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analysis operation duration by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		AnalysisErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "errors_total",
			Help:      "Analysis failures by operation and error kind",
		}, []string{"operation", "kind"}),
		OccurrencesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "occurrences_skipped_total",
			Help:      "Event occurrences skipped for insufficient candle coverage",
		}, []string{"symbol"}),
		ProfileCacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "profile_cache_requests_total",
			Help:      "Impact profile cache lookups by result",
		}, []string{"result"}),

		// Backtest metrics
		BacktestRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by mode",
		}, []string{"mode"}),
		TradesSimulated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Simulated trades by outcome",
		}, []string{"outcome"}),

		// Ingestion metrics
		CandlesImported: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_imported_total",
			Help:      "Total number of candles upserted",
		}),
		EventsImported: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_imported_total",
			Help:      "Total number of calendar events upserted",
		}),
		ImportErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "import_errors_total",
			Help:      "Import failures by kind",
		}, []string{"kind"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordIndexLoad records a symbol load into the candle index.
func RecordIndexLoad(symbol string, candles int, seconds float64, err error) {
	if err != nil {
		DefaultMetrics.IndexLoads.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.IndexLoads.WithLabelValues("ok").Inc()
	DefaultMetrics.IndexLoadDuration.Observe(seconds)
	DefaultMetrics.IndexCandles.WithLabelValues(symbol).Set(float64(candles))
}

// RecordIndexEvicted clears the candle gauge of an invalidated symbol.
func RecordIndexEvicted(symbol string) {
	DefaultMetrics.IndexCandles.DeleteLabelValues(symbol)
}

// RecordLockWait records how long a caller waited for the index guard.
func RecordLockWait(seconds float64) {
	DefaultMetrics.IndexLockWait.Observe(seconds)
}

// RecordAnalysis records an analysis operation outcome.
func RecordAnalysis(operation, errKind string, seconds float64) {
	DefaultMetrics.AnalysisDuration.WithLabelValues(operation).Observe(seconds)
	if errKind != "" {
		DefaultMetrics.AnalysisErrors.WithLabelValues(operation, errKind).Inc()
	}
}

// RecordSkippedOccurrences adds to the skipped-occurrence counter.
func RecordSkippedOccurrences(symbol string, n int) {
	if n > 0 {
		DefaultMetrics.OccurrencesSkipped.WithLabelValues(symbol).Add(float64(n))
	}
}

// RecordProfileCache records a cache hit or miss.
func RecordProfileCache(hit bool) {
	if hit {
		DefaultMetrics.ProfileCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.ProfileCacheRequests.WithLabelValues("miss").Inc()
}

// RecordBacktest records a backtest run and the outcome of every trade.
func RecordBacktest(mode string, outcomes map[string]int) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(mode).Inc()
	for outcome, n := range outcomes {
		DefaultMetrics.TradesSimulated.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordImport records upserted rows.
func RecordImport(candles, events int) {
	DefaultMetrics.CandlesImported.Add(float64(candles))
	DefaultMetrics.EventsImported.Add(float64(events))
}

// RecordImportError records a failed file or batch.
func RecordImportError(kind string) {
	DefaultMetrics.ImportErrors.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}
