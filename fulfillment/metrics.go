package fulfillment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fulfillment service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	BooksTotal      *prometheus.CounterVec
	DownloadsTotal  *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
}

// NewMetrics builds the collectors and registers them on registerer when it
// is not nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_requests_total",
			Help: "Total HTTP requests issued, by kind (search, links, file).",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulfillment_request_duration_seconds",
			Help:    "HTTP request latency for fulfillment requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_errors_total",
			Help: "Total number of request errors by type.",
		},
		[]string{"error_type"},
	)
	books := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_books_total",
			Help: "Books resolved, by outcome status.",
		},
		[]string{"status"},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_downloads_total",
			Help: "Book downloads, by outcome (ok, failed).",
		},
		[]string{"outcome"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_search_cache_hits_total",
			Help: "Searches answered from the in-memory cache.",
		},
	)

	if registerer != nil {
		registerer.MustRegister(requests, requestDuration, retries, errorsTotal, books, downloads, cacheHits)
	}

	return &Metrics{
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		BooksTotal:      books,
		DownloadsTotal:  downloads,
		CacheHitsTotal:  cacheHits,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncBook counts one resolved book.
func (m *Metrics) IncBook(status string) {
	if m == nil {
		return
	}
	m.BooksTotal.WithLabelValues(status).Inc()
}

// IncDownload counts one download outcome.
func (m *Metrics) IncDownload(outcome string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHit counts a search served from cache.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
