package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aluiziolira/go-ebook-batch/collection"
	"github.com/aluiziolira/go-ebook-batch/dispatcher"
	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/aluiziolira/go-ebook-batch/parser"
)

type fixedProcessor struct {
	statuses map[string]string
	calls    int
}

func (p *fixedProcessor) Process(_ context.Context, books []models.BookInput) (*models.ProcessingResult, error) {
	p.calls++
	result := &models.ProcessingResult{Summary: "processed"}
	for _, book := range books {
		result.Results = append(result.Results, models.BookResult{
			Title:  strings.ToUpper(book.Title),
			Author: book.Author,
			Year:   book.Year,
			Status: p.statuses[book.Title],
		})
	}
	return result, nil
}

func newSession(processor dispatcher.Processor) *Session {
	n := 0
	store := collection.NewStore(collection.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	return New(store, dispatcher.New(processor, nil))
}

func TestAddText(t *testing.T) {
	s := newSession(&fixedProcessor{})

	admitted, err := s.AddText("Dune, Frank Herbert, 1965\n\n  Emma , Jane Austen ,1815\n")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(admitted) != 2 {
		t.Fatalf("admitted = %d, want 2", len(admitted))
	}
	if admitted[1].Title != "Emma" || admitted[1].Author != "Jane Austen" || admitted[1].Status != models.StatusPending {
		t.Fatalf("entry = %+v", admitted[1])
	}

	again, err := s.AddText("dune,  FRANK HERBERT , 1965")
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(again) != 0 || len(s.Entries()) != 2 {
		t.Fatalf("duplicate admitted: %+v", s.Entries())
	}
}

func TestAddTextRejectsWholeBlock(t *testing.T) {
	s := newSession(&fixedProcessor{})

	_, err := s.AddText("Dune, Frank Herbert, 1965\nnot a book\n\nEmma\n")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var lineErr parser.LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 2 {
		t.Fatalf("err = %v, want first error on line 2", err)
	}
	if !strings.Contains(err.Error(), "Line 3 is malformed") {
		t.Fatalf("err = %q, want every malformed line", err)
	}
	if len(s.Entries()) != 0 {
		t.Fatalf("entries admitted despite errors: %+v", s.Entries())
	}
}

func TestAddTextNoInput(t *testing.T) {
	s := newSession(&fixedProcessor{})
	for _, raw := range []string{"", "   ", "\n\n \t\n"} {
		if _, err := s.AddText(raw); !errors.Is(err, ErrNoInput) {
			t.Fatalf("AddText(%q) err = %v, want ErrNoInput", raw, err)
		}
	}
}

func TestResolveAndRemove(t *testing.T) {
	s := newSession(&fixedProcessor{})
	for i := 0; i < 11; i++ {
		if _, err := s.AddText(fmt.Sprintf("Book %d, Author, 2000", i)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	entry, err := s.Resolve("id-11")
	if err != nil || entry.Title != "Book 10" {
		t.Fatalf("resolve exact = %+v, %v", entry, err)
	}
	if _, err := s.Resolve("id-1"); err != nil {
		t.Fatalf("exact id should win over prefix: %v", err)
	}
	if _, err := s.Resolve("id-"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("err = %v, want ErrAmbiguousID", err)
	}
	if _, err := s.Resolve("nope"); !errors.Is(err, ErrUnknownEntry) {
		t.Fatalf("err = %v, want ErrUnknownEntry", err)
	}

	if !s.Remove("id-3") {
		t.Fatalf("remove should succeed")
	}
	if s.Remove("id-3") {
		t.Fatalf("second remove should report nothing removed")
	}
	if got := len(s.Entries()); got != 10 {
		t.Fatalf("entries = %d, want 10", got)
	}
}

func TestSubmit(t *testing.T) {
	processor := &fixedProcessor{statuses: map[string]string{"Dune": "Found", "Emma": "Not Found"}}
	s := newSession(processor)

	if _, err := s.Submit(context.Background()); !errors.Is(err, dispatcher.ErrEmptyCollection) {
		t.Fatalf("err = %v, want ErrEmptyCollection", err)
	}

	if _, err := s.AddText("Dune, Frank Herbert, 1965\nEmma, Jane Austen, 1815"); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcome, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Reconcile.Matched != 2 || outcome.Result.Summary != "processed" {
		t.Fatalf("outcome = %+v", outcome)
	}

	entries := s.Entries()
	if entries[0].Status != models.StatusFound || entries[1].Status != models.StatusNotFound {
		t.Fatalf("entries = %+v", entries)
	}
	if s.Busy() {
		t.Fatalf("session should not be busy after submit")
	}
	if processor.calls != 1 {
		t.Fatalf("calls = %d, want 1", processor.calls)
	}
}
