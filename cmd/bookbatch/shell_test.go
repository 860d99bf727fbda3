package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShellSession(t *testing.T) {
	processor := &stubProcessor{statuses: map[string]string{"Dune": "Found"}}
	sess := newTestSession(processor)
	reportPath := filepath.Join(t.TempDir(), "list.jsonl")

	script := strings.Join([]string{
		"add Dune, Frank Herbert, 1965",
		"add dune, frank herbert, 1965",
		"paste",
		"Emma, Jane Austen, 1815",
		"",
		"Ulysses, James Joyce, 1922",
		".",
		"add broken",
		"rm entry-0003",
		"list",
		"submit",
		"wait",
		"list",
		"report " + reportPath,
		"bogus",
		"quit",
		"add never, reached",
	}, "\n")

	var out bytes.Buffer
	sh := newShell(context.Background(), sess, &out, "json")
	if err := sh.run(strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}
	sh.wait()

	output := out.String()
	for _, want := range []string{
		"Added Dune (entry-00).",
		"Already in the list.",
		"Added 2 books.",
		"Line 1 is malformed",
		"Removed Ulysses.",
		"Searching 2 books...",
		"Submission finished.",
		"processed 2 books",
		"2 books (Found: 1, Not Found: 1)",
		"Report written to " + reportPath,
		`unknown command "bogus"`,
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "never") {
		t.Fatalf("commands after quit should not run")
	}
	if len(sess.Entries()) != 2 {
		t.Fatalf("entries = %d, want 2", len(sess.Entries()))
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Fatalf("report lines = %d, want 2", lines)
	}
}

func TestShellRejectsSecondSubmit(t *testing.T) {
	processor := &stubProcessor{gate: make(chan struct{})}
	sess := newTestSession(processor)

	var out bytes.Buffer
	sh := newShell(context.Background(), sess, &out, "csv")
	if err := sh.run(strings.NewReader("add Dune, Frank Herbert, 1965\nsubmit\nsubmit\nsubmit\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	close(processor.gate)
	sh.wait()

	output := out.String()
	if got := strings.Count(output, "A submission is already running."); got != 2 {
		t.Fatalf("rejections = %d, want 2:\n%s", got, output)
	}
	if processor.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", processor.Calls())
	}
}

func TestShellSubmitEmpty(t *testing.T) {
	sess := newTestSession(&stubProcessor{})

	var out bytes.Buffer
	sh := newShell(context.Background(), sess, &out, "csv")
	if err := sh.run(strings.NewReader("submit\nsubmit\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	sh.wait()
	if got := strings.Count(out.String(), "Nothing to submit."); got != 2 {
		t.Fatalf("output:\n%s", out.String())
	}
}
