package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for submissions.
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	InFlight           prometheus.Gauge
	ResultsTotal       *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on registerer when it
// is not nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	submissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookbatch_submissions_total",
			Help: "Submissions by outcome (ok, failed, rejected, empty).",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookbatch_submission_duration_seconds",
			Help:    "Latency of the processing call for one submission.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookbatch_submission_in_flight",
			Help: "1 while a submission is waiting on the processing service.",
		},
	)
	results := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookbatch_reconciled_results_total",
			Help: "Remote results merged into the collection, by match.",
		},
		[]string{"match"},
	)

	if registerer != nil {
		registerer.MustRegister(submissions, duration, inFlight, results)
	}

	return &Metrics{
		SubmissionsTotal:   submissions,
		SubmissionDuration: duration,
		InFlight:           inFlight,
		ResultsTotal:       results,
	}
}

// IncSubmission counts one submission attempt.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a processing call latency.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.SubmissionDuration.Observe(d.Seconds())
}

// SetInFlight flips the in-flight gauge.
func (m *Metrics) SetInFlight(active bool) {
	if m == nil {
		return
	}
	if active {
		m.InFlight.Set(1)
		return
	}
	m.InFlight.Set(0)
}

// AddReconciled counts matched and dropped results.
func (m *Metrics) AddReconciled(matched, unmatched int) {
	if m == nil {
		return
	}
	m.ResultsTotal.WithLabelValues("matched").Add(float64(matched))
	m.ResultsTotal.WithLabelValues("unmatched").Add(float64(unmatched))
}
