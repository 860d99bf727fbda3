// Package dispatcher submits a collection to the processing service and
// merges the outcome back.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/aluiziolira/go-ebook-batch/reconciler"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while another
	// submission has not finished. Nothing is changed.
	ErrSubmissionInFlight = errors.New("dispatcher: submission already in flight")
	// ErrEmptyCollection is returned when there is nothing to submit.
	ErrEmptyCollection = errors.New("dispatcher: collection is empty")
)

// Processor is the remote collaborator that resolves a batch of books.
type Processor interface {
	Process(ctx context.Context, books []models.BookInput) (*models.ProcessingResult, error)
}

// Collection is the part of collection.Store the dispatcher drives.
type Collection interface {
	Len() int
	BeginSubmission() []models.BookInput
	ApplyResult(result models.BookResult) bool
}

// Outcome is what a successful submission hands back to the caller.
type Outcome struct {
	Result    *models.ProcessingResult
	Reconcile reconciler.Report
}

// Dispatcher allows at most one outstanding Process call.
type Dispatcher struct {
	processor Processor
	Metrics   *Metrics

	busy atomic.Bool
}

// New returns a dispatcher calling processor.
func New(processor Processor, metrics *Metrics) *Dispatcher {
	return &Dispatcher{processor: processor, Metrics: metrics}
}

// Busy reports whether a submission is in flight.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Submit marks every entry Searching, calls the processor once with the
// whole collection and reconciles the results. A failed call leaves entries
// in Searching and is returned wrapped. The busy flag is cleared on every
// path.
func (d *Dispatcher) Submit(ctx context.Context, store Collection) (*Outcome, error) {
	if !d.busy.CompareAndSwap(false, true) {
		d.Metrics.IncSubmission("rejected")
		return nil, ErrSubmissionInFlight
	}
	defer d.busy.Store(false)

	if store.Len() == 0 {
		d.Metrics.IncSubmission("empty")
		return nil, ErrEmptyCollection
	}

	d.Metrics.SetInFlight(true)
	defer d.Metrics.SetInFlight(false)

	payload := store.BeginSubmission()
	slog.Info("submitting collection", slog.Int("books", len(payload)))

	start := time.Now()
	result, err := d.processor.Process(ctx, payload)
	d.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		d.Metrics.IncSubmission("failed")
		slog.Error("processing call failed", slog.Int("books", len(payload)), slog.Any("error", err))
		return nil, fmt.Errorf("process books: %w", err)
	}
	if result == nil {
		d.Metrics.IncSubmission("failed")
		return nil, fmt.Errorf("process books: empty response")
	}

	report := reconciler.Reconcile(store, result.Results)
	d.Metrics.AddReconciled(report.Matched, report.Unmatched)
	d.Metrics.IncSubmission("ok")

	slog.Info("submission reconciled",
		slog.Int("results", len(result.Results)),
		slog.Int("matched", report.Matched),
		slog.Int("unmatched", report.Unmatched),
	)
	return &Outcome{Result: result, Reconcile: report}, nil
}
