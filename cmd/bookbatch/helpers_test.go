package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-ebook-batch/collection"
	"github.com/aluiziolira/go-ebook-batch/dispatcher"
	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/aluiziolira/go-ebook-batch/session"
)

// stubProcessor answers every book with the status registered for its title
// and Not Found otherwise. When gate is set, Process blocks until it closes.
type stubProcessor struct {
	statuses map[string]string
	err      error
	gate     chan struct{}

	mu    sync.Mutex
	calls int
}

func (p *stubProcessor) Process(_ context.Context, books []models.BookInput) (*models.ProcessingResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return nil, p.err
	}

	result := &models.ProcessingResult{Summary: fmt.Sprintf("processed %d books", len(books))}
	for _, book := range books {
		status, ok := p.statuses[book.Title]
		if !ok {
			status = "Not Found"
		}
		res := models.BookResult{Title: book.Title, Author: book.Author, Year: book.Year, Status: status}
		if status == "Found" {
			res.DownloadURL = "http://api.test/download?md5=" + book.Title
		}
		result.Results = append(result.Results, res)
	}
	return result, nil
}

func (p *stubProcessor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestSession(processor dispatcher.Processor) *session.Session {
	n := 0
	store := collection.NewStore(collection.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("entry-%04d-id", n)
	}))
	return session.New(store, dispatcher.New(processor, nil))
}
