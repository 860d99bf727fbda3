package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// shortIDLength is how much of an entry id the tables show.
const shortIDLength = 8

var entryHeader = table.Row{"ID", "Title", "Author", "Year", "Status", "Details"}

// renderEntries draws one row per entry with the year right-aligned.
func renderEntries(entries []models.Entry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(entryHeader)
	for _, entry := range entries {
		tw.AppendRow(table.Row{
			shortID(entry.ID),
			entry.Title,
			entry.Author,
			entry.Year,
			string(entry.Status),
			entryDetail(entry),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Year", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// entryDetail is the download URL of a found entry or the message of a
// failed one.
func entryDetail(entry models.Entry) string {
	switch entry.Status {
	case models.StatusFound:
		return entry.DownloadURL
	case models.StatusError:
		return entry.ErrorMessage
	default:
		return ""
	}
}

func printEntries(w io.Writer, entries []models.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No books in the list.")
		return
	}

	out := renderEntries(entries)
	fmt.Fprintln(w, out)
	fmt.Fprintln(w, statusCounts(entries))
}

func statusCounts(entries []models.Entry) string {
	order := []models.Status{
		models.StatusPending,
		models.StatusSearching,
		models.StatusFound,
		models.StatusNotFound,
		models.StatusError,
	}
	counts := make(map[models.Status]int, len(order))
	for _, entry := range entries {
		counts[entry.Status]++
	}
	parts := make([]string, 0, len(order))
	for _, status := range order {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", status, counts[status]))
		}
	}
	return fmt.Sprintf("%d books (%s)", len(entries), strings.Join(parts, ", "))
}
