package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/wikiacrawl/internal/crawler"
	"github.com/nao1215/wikiacrawl/internal/model"
	"github.com/nao1215/wikiacrawl/internal/store"
)

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <project>",
		Short: "Continue a saved crawl",
		Long: `Resume continues the crawl saved in the project's checkpoint.

Pages already visited are never fetched again, and the counters carry on
from the saved values. --max-pages limits the pages of this session.

Examples:
  wikiacrawl resume avatar
  wikiacrawl resume avatar -p 500`,
		Args: cobra.ExactArgs(1),
		RunE: runResumeCmd,
	}

	addCrawlFlags(cmd)

	return cmd
}

// runResumeCmd executes the resume command.
func runResumeCmd(cmd *cobra.Command, args []string) error {
	project := args[0]

	err := runCrawler(cmd, project, nil,
		func(ctx context.Context, c *crawler.WikiaCrawler, maxPages int) (*model.CrawlStats, error) {
			return c.Resume(ctx, maxPages)
		})
	switch {
	case errors.Is(err, store.ErrNoState):
		return fmt.Errorf("%w\nstart one with \"wikiacrawl crawl %s <seed-url>\"", err, project)
	case errors.Is(err, crawler.ErrInterrupted):
		return fmt.Errorf("%w\nrun \"wikiacrawl resume %s\" to continue", err, project)
	default:
		return err
	}
}
