// Package models defines the data structures shared by the collection,
// the dispatcher and the fulfillment service.
package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a collection entry.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSearching Status = "Searching"
	StatusFound     Status = "Found"
	StatusNotFound  Status = "Not Found"
	StatusError     Status = "Error"
)

// Terminal reports whether s is a state a remote result can leave an entry in.
func (s Status) Terminal() bool {
	switch s {
	case StatusFound, StatusNotFound, StatusError:
		return true
	default:
		return false
	}
}

// Candidate is a parsed, not yet admitted entry.
type Candidate struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   string `json:"year"`
}

// Validate ensures the candidate carries the required fields.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("candidate missing title")
	}
	if strings.TrimSpace(c.Author) == "" {
		return fmt.Errorf("candidate missing author for %s", c.Title)
	}
	return nil
}

// Key returns the composite identity key of the candidate.
func (c Candidate) Key() string {
	return Key(c.Title, c.Author, c.Year)
}

// Entry is one book in the working collection.
type Entry struct {
	ID           string `csv:"id" json:"id"`
	Title        string `csv:"title" json:"title"`
	Author       string `csv:"author" json:"author"`
	Year         string `csv:"year" json:"year"`
	Status       Status `csv:"status" json:"status"`
	DownloadURL  string `csv:"download_url" json:"download_url,omitempty"`
	ErrorMessage string `csv:"error_message" json:"error_message,omitempty"`
}

// Key returns the composite identity key of the entry.
func (e Entry) Key() string {
	return Key(e.Title, e.Author, e.Year)
}

// Input returns the remote payload form of the entry.
func (e Entry) Input() BookInput {
	return BookInput{Title: e.Title, Author: e.Author, Year: e.Year}
}

// BookInput is a single book in a processing request. Entry ids and statuses
// never cross the remote boundary.
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   string `json:"year"`
}

// BookResult is the outcome the remote collaborator reports for one book.
type BookResult struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Key returns the composite identity key of the result.
func (r BookResult) Key() string {
	return Key(r.Title, r.Author, r.Year)
}

// ProcessingResult is the combined response of one processing call.
type ProcessingResult struct {
	Results []BookResult `json:"results"`
	ZipPath string       `json:"zip_path,omitempty"`
	Summary string       `json:"summary"`
}

// keySeparator keeps "ab"+"c" and "a"+"bc" apart.
const keySeparator = "\x1f"

// Key builds the composite identity key: lowercased trimmed title and author
// plus the trimmed year.
func Key(title, author, year string) string {
	return strings.ToLower(strings.TrimSpace(title)) + keySeparator +
		strings.ToLower(strings.TrimSpace(author)) + keySeparator +
		strings.TrimSpace(year)
}

// ResolveStatus maps a remote status string onto the local state machine.
// Unknown strings resolve to StatusError with ok=false.
func ResolveStatus(remote string) (status Status, ok bool) {
	switch Status(strings.TrimSpace(remote)) {
	case StatusFound:
		return StatusFound, true
	case StatusNotFound:
		return StatusNotFound, true
	case StatusError:
		return StatusError, true
	default:
		return StatusError, false
	}
}
