package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aluiziolira/go-ebook-batch/report"
	"github.com/aluiziolira/go-ebook-batch/session"
	"github.com/spf13/cobra"
)

type runOptions struct {
	archive      string
	reportPath   string
	reportFormat string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Submit book lists once and print the outcome",
		Long: `Read "Title, Author, Year" lines from the given files (or stdin when
none are given), submit them as one batch and print the results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("archive") {
				cfg.ArchivePath = opts.archive
			}
			if opts.reportPath == "" {
				opts.reportPath = cfg.ReportFile
			}
			if opts.reportFormat == "" {
				opts.reportFormat = cfg.ReportFormat
			}

			input, err := readInputs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			sess, err := ctx.newSession(cfg)
			if err != nil {
				return err
			}
			stopMetrics := ctx.startMetricsServer(cfg)
			defer stopMetrics()

			return runBatch(cmd.Context(), sess, input, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.archive, "archive", "", "Path of the zip archive to write (empty disables downloads)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write the final list to this file")
	cmd.Flags().StringVar(&opts.reportFormat, "format", "", "Report format: csv, json, or dual")
	return cmd
}

func readInputs(paths []string, stdin io.Reader) (string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	var b strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// runBatch adds input to sess, submits once and prints the entries and the
// service summary. Parse and submission failures are returned.
func runBatch(ctx context.Context, sess *session.Session, input string, out io.Writer, opts *runOptions) error {
	admitted, err := sess.AddText(input)
	if err != nil {
		return fmt.Errorf("invalid book list:\n%w", err)
	}
	slog.Info("books queued", slog.Int("admitted", len(admitted)), slog.Int("total", len(sess.Entries())))

	outcome, submitErr := sess.Submit(ctx)

	printEntries(out, sess.Entries())
	if submitErr == nil && outcome.Result.Summary != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, outcome.Result.Summary)
	}

	if opts.reportPath != "" {
		if err := report.Export(opts.reportFormat, opts.reportPath, sess.Entries()); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		slog.Info("report written", slog.String("path", opts.reportPath), slog.String("format", opts.reportFormat))
	}

	if submitErr != nil {
		return fmt.Errorf("submission failed: %w", submitErr)
	}
	return nil
}
