// Package report exports collection snapshots as CSV or JSON lines.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// ErrInvalidReport is wrapped by Validate when the file on disk does not hold
// what was written.
var ErrInvalidReport = errors.New("report: output does not match written entries")

// OutputWriter defines the interface for report output. Validate checks the
// file after Close.
type OutputWriter interface {
	Write(entries []models.Entry) error
	Close() error
	Validate() error
}

// NewWriter returns the writer for format. Dual output derives the CSV and
// JSONL file names from path by replacing its extension.
func NewWriter(format, path string) (OutputWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVWriter(path)
	case "json", "jsonl":
		return NewJSONWriter(path)
	case "dual":
		base := strings.TrimSuffix(path, filepath.Ext(path))
		return NewDualWriter(base+".csv", base+".jsonl")
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// Export writes entries to path, closes the file and validates it.
func Export(format, path string, entries []models.Entry) error {
	writer, err := NewWriter(format, path)
	if err != nil {
		return err
	}
	if err := writer.Write(entries); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return writer.Validate()
}

// sink is the buffered file both writers append to. rows counts the
// records written so far.
type sink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	rows   int
	closed bool
}

func openSink(path string) (*sink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report %s: %w", path, err)
	}
	return &sink{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// append runs encode for each entry and flushes the buffer once.
func (s *sink) append(entries []models.Entry, encode func(models.Entry) error, flush func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("write %s: writer closed", s.path)
	}

	for _, entry := range entries {
		if err := encode(entry); err != nil {
			return fmt.Errorf("write %s: %w", s.path, err)
		}
		s.rows++
	}
	if err := flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}

func (s *sink) close(flush func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", s.path, closeErr)
	}
	return nil
}

func (s *sink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// check compares the record count found on disk with the count written.
func (s *sink) check(found int) error {
	if want := s.written(); found != want {
		return fmt.Errorf("%w: %s holds %d records, wrote %d", ErrInvalidReport, s.path, found, want)
	}
	return nil
}
