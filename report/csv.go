package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"

	"github.com/aluiziolira/go-ebook-batch/models"
)

var csvHeader = []string{"id", "title", "author", "year", "status", "download_url", "error_message"}

func csvRecord(entry models.Entry) []string {
	return []string{
		entry.ID,
		entry.Title,
		entry.Author,
		entry.Year,
		string(entry.Status),
		entry.DownloadURL,
		entry.ErrorMessage,
	}
}

// CSVWriter writes one row per entry under a fixed header.
type CSVWriter struct {
	*sink
	w *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	s, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{sink: s, w: csv.NewWriter(s.buf)}
	if err := cw.w.Write(csvHeader); err != nil {
		s.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends entries.
func (cw *CSVWriter) Write(entries []models.Entry) error {
	return cw.append(entries, func(entry models.Entry) error {
		return cw.w.Write(csvRecord(entry))
	}, cw.flush)
}

func (cw *CSVWriter) flush() error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return err
	}
	return cw.buf.Flush()
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	return cw.close(cw.flush)
}

// Validate re-reads the file and checks the header and the row count.
func (cw *CSVWriter) Validate() error {
	f, err := os.Open(cw.path)
	if err != nil {
		return fmt.Errorf("validate csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidReport, cw.path, err)
	}
	if len(records) == 0 || !slices.Equal(records[0], csvHeader) {
		return fmt.Errorf("%w: %s is missing its header", ErrInvalidReport, cw.path)
	}
	return cw.check(len(records) - 1)
}
