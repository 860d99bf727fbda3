package report

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// DualWriter fans entries out to a CSV and a JSONL file.
type DualWriter struct {
	writers []OutputWriter
}

// NewDualWriter creates both files.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, err
	}
	return &DualWriter{writers: []OutputWriter{csvWriter, jsonWriter}}, nil
}

// Write stops at the first failing output.
func (dw *DualWriter) Write(entries []models.Entry) error {
	for _, w := range dw.writers {
		if err := w.Write(entries); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every output and joins the errors.
func (dw *DualWriter) Close() error {
	return dw.each(OutputWriter.Close)
}

// Validate validates every output and joins the errors.
func (dw *DualWriter) Validate() error {
	return dw.each(OutputWriter.Validate)
}

func (dw *DualWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for i, w := range dw.writers {
		if err := fn(w); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}
