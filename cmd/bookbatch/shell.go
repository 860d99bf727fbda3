package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/go-ebook-batch/dispatcher"
	"github.com/aluiziolira/go-ebook-batch/report"
	"github.com/aluiziolira/go-ebook-batch/session"
	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  add <title, author, year>   add one book
  paste                       add several books, end with a line holding "."
  list                        show the list
  rm <id>                     remove a book (an id prefix is enough)
  submit                      search and download every book in the background
  wait                        block until the running submission finishes
  report <path>               export the list
  help                        show this help
  quit                        leave the shell`

func newShellCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Build a book list interactively and submit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sess, err := ctx.newSession(cfg)
			if err != nil {
				return err
			}
			stopMetrics := ctx.startMetricsServer(cfg)
			defer stopMetrics()

			sh := newShell(cmd.Context(), sess, cmd.OutOrStdout(), cfg.ReportFormat)
			err = sh.run(cmd.InOrStdin())
			sh.wait()
			return err
		},
	}
}

// lockedWriter serialises writes from the prompt loop and from background
// submissions.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

type shell struct {
	ctx          context.Context
	sess         *session.Session
	out          io.Writer
	reportFormat string

	running atomic.Bool
	wg      sync.WaitGroup
}

func newShell(ctx context.Context, sess *session.Session, out io.Writer, reportFormat string) *shell {
	return &shell{
		ctx:          ctx,
		sess:         sess,
		out:          &lockedWriter{w: out},
		reportFormat: reportFormat,
	}
}

// run reads commands until quit or end of input. A submission still in
// flight is left running; call wait to block on it.
func (s *shell) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(s.out, `bookbatch shell. Type "help" for commands.`)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if s.exec(scanner, strings.TrimSpace(scanner.Text())) {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(scanner *bufio.Scanner, line string) bool {
	if line == "" {
		return false
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "add":
		s.add(arg)
	case "paste":
		s.add(readBlock(scanner))
	case "list", "ls":
		printEntries(s.out, s.sess.Entries())
	case "rm", "remove":
		s.remove(arg)
	case "submit":
		s.submit()
	case "wait":
		s.wait()
	case "report":
		s.report(arg)
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q; type \"help\"\n", name)
	}
	return false
}

func readBlock(scanner *bufio.Scanner) string {
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s *shell) add(raw string) {
	admitted, err := s.sess.AddText(raw)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	switch len(admitted) {
	case 0:
		fmt.Fprintln(s.out, "Already in the list.")
	case 1:
		fmt.Fprintf(s.out, "Added %s (%s).\n", admitted[0].Title, shortID(admitted[0].ID))
	default:
		fmt.Fprintf(s.out, "Added %d books.\n", len(admitted))
	}
}

func (s *shell) remove(ref string) {
	entry, err := s.sess.Resolve(ref)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if s.sess.Remove(entry.ID) {
		fmt.Fprintf(s.out, "Removed %s.\n", entry.Title)
	}
}

func (s *shell) submit() {
	if !s.running.CompareAndSwap(false, true) {
		fmt.Fprintln(s.out, "A submission is already running.")
		return
	}
	if len(s.sess.Entries()) == 0 {
		s.running.Store(false)
		fmt.Fprintln(s.out, "Nothing to submit.")
		return
	}

	fmt.Fprintf(s.out, "Searching %d books...\n", len(s.sess.Entries()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		outcome, err := s.sess.Submit(s.ctx)
		switch {
		case errors.Is(err, dispatcher.ErrSubmissionInFlight):
			fmt.Fprintln(s.out, "A submission is already running.")
		case err != nil:
			fmt.Fprintf(s.out, "\nSubmission failed: %v\n", err)
		default:
			fmt.Fprintln(s.out, "\nSubmission finished.")
			if outcome.Result.Summary != "" {
				fmt.Fprintln(s.out, outcome.Result.Summary)
			}
		}
	}()
}

func (s *shell) wait() {
	s.wg.Wait()
}

func (s *shell) report(path string) {
	if path == "" {
		fmt.Fprintln(s.out, "usage: report <path>")
		return
	}
	if err := report.Export(s.reportFormat, path, s.sess.Entries()); err != nil {
		fmt.Fprintf(s.out, "write report: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Report written to %s.\n", path)
}
