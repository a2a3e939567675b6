package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Factory metrics
	DatabasesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "idbstore_databases_total",
			Help: "Total number of databases in the catalog",
		},
	)

	StorageFileBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idbstore_storage_file_bytes",
			Help: "Size in bytes of a database's storage file",
		},
		[]string{"database"},
	)

	ObjectStoresTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idbstore_object_stores_total",
			Help: "Total number of object stores by database",
		},
		[]string{"database"},
	)

	// Transaction metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idbstore_transactions_total",
			Help: "Total number of transactions by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idbstore_transaction_duration_seconds",
			Help:    "Transaction lifetime in seconds, from begin to commit or abort",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idbstore_requests_total",
			Help: "Total number of requests by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idbstore_request_duration_seconds",
			Help:    "Time from a request's submission to its settled result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Cursor metrics
	CursorsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idbstore_cursors_opened_total",
			Help: "Total number of cursors opened by source (object store or index)",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(DatabasesTotal)
	prometheus.MustRegister(StorageFileBytes)
	prometheus.MustRegister(ObjectStoresTotal)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionDuration)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CursorsOpenedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
