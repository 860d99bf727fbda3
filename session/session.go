// Package session ties the parser, the collection and the dispatcher
// together behind the operations a user interface needs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-ebook-batch/collection"
	"github.com/aluiziolira/go-ebook-batch/dispatcher"
	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/aluiziolira/go-ebook-batch/parser"
)

var (
	// ErrNoInput is returned by AddText when the text has no non-blank line.
	ErrNoInput = errors.New("please enter at least one book")
	// ErrUnknownEntry is returned when an id or prefix matches no entry.
	ErrUnknownEntry = errors.New("no entry with that id")
	// ErrAmbiguousID is returned when an id prefix matches several entries.
	ErrAmbiguousID = errors.New("id prefix matches more than one entry")
)

// Session is one user's working collection.
type Session struct {
	store      *collection.Store
	dispatcher *dispatcher.Dispatcher
}

// New returns a session over store that submits through d.
func New(store *collection.Store, d *dispatcher.Dispatcher) *Session {
	return &Session{store: store, dispatcher: d}
}

// AddText parses raw and admits the parsed books. When any line is
// malformed nothing is admitted and the joined line errors are returned.
// The returned entries are the ones actually admitted; known books are
// skipped silently.
func (s *Session) AddText(raw string) ([]models.Entry, error) {
	result := parser.Parse(raw)
	if err := result.Err(); err != nil {
		slog.Debug("rejected input", slog.Int("malformed_lines", len(result.Errors)))
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, ErrNoInput
	}

	admitted := s.store.Add(result.Entries)
	slog.Debug("added books",
		slog.Int("parsed", len(result.Entries)),
		slog.Int("admitted", len(admitted)),
	)
	return admitted, nil
}

// Remove deletes the entry with id.
func (s *Session) Remove(id string) bool {
	return s.store.Remove(id)
}

// Resolve finds the single entry whose id is ref or starts with ref.
func (s *Session) Resolve(ref string) (models.Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Entry{}, ErrUnknownEntry
	}
	if entry, ok := s.store.Get(ref); ok {
		return entry, nil
	}

	var matches []models.Entry
	for _, entry := range s.store.Snapshot() {
		if strings.HasPrefix(entry.ID, ref) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return models.Entry{}, fmt.Errorf("%w: %s", ErrUnknownEntry, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Entry{}, fmt.Errorf("%w: %s", ErrAmbiguousID, ref)
	}
}

// Entries returns the collection in insertion order.
func (s *Session) Entries() []models.Entry {
	return s.store.Snapshot()
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	return s.dispatcher.Busy()
}

// Submit sends the whole collection for processing and merges the results.
func (s *Session) Submit(ctx context.Context) (*dispatcher.Outcome, error) {
	return s.dispatcher.Submit(ctx, s.store)
}
