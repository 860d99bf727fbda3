// Package reconciler merges remote outcomes back onto a collection.
package reconciler

import (
	"log/slog"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// ResultApplier is implemented by collection.Store.
type ResultApplier interface {
	ApplyResult(result models.BookResult) bool
}

// Report counts how the results of one call were merged.
type Report struct {
	Matched   int
	Unmatched int
}

// Reconcile applies every result to store by composite key. Results with no
// matching entry, typically for entries removed while the call was in flight,
// are dropped. Entries that receive no result keep their current status.
func Reconcile(store ResultApplier, results []models.BookResult) Report {
	var report Report
	for _, result := range results {
		if store.ApplyResult(result) {
			report.Matched++
			continue
		}
		report.Unmatched++
		slog.Debug("dropping unmatched result",
			slog.String("title", result.Title),
			slog.String("author", result.Author),
			slog.String("year", result.Year),
			slog.String("status", result.Status),
		)
	}
	return report
}
