// Package parser turns pasted book lists into candidate entries.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// Delimiter separates the title, author and year fields of a line.
const Delimiter = ","

// LineError reports a malformed line. Line numbers count non-blank lines only.
type LineError struct {
	Line    int
	Message string
}

func (e LineError) Error() string {
	return e.Message
}

// Result holds the outcome of parsing one block of text. Entries is empty
// whenever Errors is not.
type Result struct {
	Entries []models.Candidate
	Errors  []LineError
}

// Err joins the line errors, or returns nil when every line parsed.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, lineErr := range r.Errors {
		errs = append(errs, lineErr)
	}
	return errors.Join(errs...)
}

// Parse splits raw into lines of "Title, Author, Year". Blank lines are
// skipped. A single malformed line rejects the whole block, but every
// malformed line is still reported.
func Parse(raw string) Result {
	var (
		candidates []models.Candidate
		lineErrs   []LineError
		line       int
	)

	for _, text := range strings.Split(raw, "\n") {
		if strings.TrimSpace(text) == "" {
			continue
		}
		line++

		candidate, ok := parseLine(text)
		if !ok {
			lineErrs = append(lineErrs, LineError{
				Line:    line,
				Message: fmt.Sprintf("Line %d is malformed. Expected format: Title, Author, Year.", line),
			})
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(lineErrs) > 0 {
		return Result{Errors: lineErrs}
	}
	return Result{Entries: candidates}
}

// parseLine reads up to three fields; anything after the third delimiter is
// ignored.
func parseLine(text string) (models.Candidate, bool) {
	parts := strings.Split(text, Delimiter)
	for i := range parts {
		parts[i] = NormalizeField(parts[i])
	}
	if len(parts) < 2 {
		return models.Candidate{}, false
	}

	candidate := models.Candidate{
		Title:  parts[0],
		Author: parts[1],
	}
	if len(parts) > 2 {
		candidate.Year = parts[2]
	}
	if err := candidate.Validate(); err != nil {
		return models.Candidate{}, false
	}
	return candidate, true
}

// NormalizeField trims surrounding whitespace, including a trailing carriage
// return from CRLF input.
func NormalizeField(field string) string {
	return strings.TrimSpace(field)
}
