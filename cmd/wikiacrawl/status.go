package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/wikiacrawl/internal/database"
	"github.com/nao1215/wikiacrawl/internal/report"
	"github.com/nao1215/wikiacrawl/internal/store"
)

const (
	// recentPagesLimit is the number of recently fetched pages shown.
	recentPagesLimit = 10
	// runsLimit is the number of past runs shown.
	runsLimit = 10
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <project>",
		Short: "Show the progress of a crawl project",
		Long: `Status reports the saved state of a project: counters, queued and
visited URLs, failed pages and the history of crawl runs.

Examples:
  wikiacrawl status avatar
  wikiacrawl status avatar --markdown -o avatar-status.md
  wikiacrawl status avatar --json`,
		Args: cobra.ExactArgs(1),
		RunE: runStatusCmd,
	}

	addConfigFlags(cmd)
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, args []string) error {
	project := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := store.FindProject(cfg.DataDir, project)
	if err != nil {
		return err
	}

	status, err := buildStatus(cmd.Context(), p)
	if err != nil {
		return err
	}
	return writeStatus(cmd, status)
}

// buildStatus assembles the status of project p from its checkpoint, its
// page index and the stored artifacts of recent pages.
func buildStatus(ctx context.Context, p *store.Project) (*report.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := p.StateStore().Load()
	switch {
	case errors.Is(err, store.ErrNoState):
		state = nil
	case err != nil:
		return nil, err
	}
	status := report.NewStatus(p.Name, state)

	db, err := database.Open(p.Root, database.DefaultOptions())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if status.IndexedPages, err = db.CountPages(ctx, p.Name); err != nil {
		return nil, err
	}
	recent, err := db.RecentPages(ctx, p.Name, recentPagesLimit)
	if err != nil {
		return nil, err
	}
	artifacts := p.ArtifactStore()
	for _, rec := range recent {
		summary := report.PageSummary{
			URL:       rec.URL,
			Title:     rec.Title,
			FetchedAt: rec.FetchedAt,
		}
		// A missing artifact only costs the categories.
		if a, err := artifacts.Read(rec.ArtifactPath); err == nil {
			summary.Categories = a.Categories
		}
		status.RecentPages = append(status.RecentPages, summary)
	}
	runs, err := db.ListRuns(ctx, p.Name, runsLimit)
	if err != nil {
		return nil, err
	}
	status.Runs = runs
	return status, nil
}

// writeStatus renders status in the format selected by the flags.
func writeStatus(cmd *cobra.Command, status *report.Status) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	var output io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(outputPath) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(output, report.WithPrettyPrint())
	case asMarkdown:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(getVerboseFlag(cmd)))
	}
	if outputPath != "" {
		// The terminal still gets the text report when a file is written.
		w = report.NewMultiWriter(w,
			report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(getVerboseFlag(cmd))))
	}
	if _, err := w.Write(status); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if outputPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath)
	}
	return nil
}
