// Package collection holds the working list of books for one session.
package collection

import (
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/google/uuid"
)

// Store is the ordered, deduplicated set of entries. All methods are safe for
// concurrent use; the dispatcher's continuation and user actions may touch it
// from different goroutines.
type Store struct {
	mu      sync.Mutex
	entries []models.Entry
	newID   func() string
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid-based id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add admits every candidate whose composite key is not already held by the
// store as it was before the call. Duplicates inside candidates are compared
// only against that prior state, so a batch repeating the same book admits
// each copy. Invalid candidates are skipped. Returns the admitted entries.
func (s *Store) Add(candidates []models.Candidate) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.entries))
	for _, entry := range s.entries {
		existing[entry.Key()] = struct{}{}
	}

	var admitted []models.Entry
	for _, candidate := range candidates {
		if candidate.Validate() != nil {
			continue
		}
		if _, ok := existing[candidate.Key()]; ok {
			continue
		}
		entry := models.Entry{
			ID:     s.newID(),
			Title:  strings.TrimSpace(candidate.Title),
			Author: strings.TrimSpace(candidate.Author),
			Year:   strings.TrimSpace(candidate.Year),
			Status: models.StatusPending,
		}
		admitted = append(admitted, entry)
	}

	s.entries = append(s.entries, admitted...)
	return admitted
}

// Remove deletes the entry with id, keeping the order of the rest. Unknown
// ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// BeginSubmission moves every entry to Searching and returns the ordered
// payload for the remote call in one step.
func (s *Store) BeginSubmission() []models.BookInput {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := make([]models.BookInput, 0, len(s.entries))
	for i := range s.entries {
		s.entries[i].Status = models.StatusSearching
		s.entries[i].DownloadURL = ""
		s.entries[i].ErrorMessage = ""
		payload = append(payload, s.entries[i].Input())
	}
	return payload
}

// ApplyResult copies a remote outcome onto the entry sharing its composite
// key. It reports false, leaving the store untouched, when no entry matches.
func (s *Store) ApplyResult(result models.BookResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := result.Key()
	for i := range s.entries {
		if s.entries[i].Key() != key {
			continue
		}
		applyResult(&s.entries[i], result)
		return true
	}
	return false
}

func applyResult(entry *models.Entry, result models.BookResult) {
	status, known := models.ResolveStatus(result.Status)
	entry.Status = status
	entry.DownloadURL = ""
	entry.ErrorMessage = ""

	switch status {
	case models.StatusFound:
		entry.DownloadURL = result.DownloadURL
	case models.StatusError:
		entry.ErrorMessage = result.ErrorMessage
		if entry.ErrorMessage == "" && !known {
			entry.ErrorMessage = "unrecognized status " + strconv.Quote(result.Status)
		}
		if entry.ErrorMessage == "" {
			entry.ErrorMessage = "processing failed"
		}
	}
}

// Snapshot returns a copy of the entries in insertion order.
func (s *Store) Snapshot() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the entry with id.
func (s *Store) Get(id string) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return models.Entry{}, false
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
