package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/wikiacrawl/internal/crawler"
	"github.com/nao1215/wikiacrawl/internal/model"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <project> <seed-url>...",
		Short: "Start a new crawl of a wiki",
		Long: `Crawl starts a new crawl from one or more seed URLs.

Only links on the seed hosts that fall inside the configured namespaces
are followed. Progress is checkpointed every save_state_every_n_pages
pages; press Ctrl+C to stop and continue later with "wikiacrawl resume".

Examples:
  # Crawl the articles of a Fandom wiki
  wikiacrawl crawl avatar https://avatar.fandom.com/wiki/Avatar_Wiki

  # Fetch at most 100 pages
  wikiacrawl crawl avatar https://avatar.fandom.com/wiki/Aang -p 100

  # Throw away an existing checkpoint and start over
  wikiacrawl crawl avatar https://avatar.fandom.com/wiki/Aang --fresh`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().Bool("fresh", false,
		"Discard the saved crawl state of the project and start over")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	project, seeds := args[0], args[1:]

	fresh, err := cmd.Flags().GetBool("fresh")
	if err != nil {
		return err
	}
	var opts []crawler.Option
	if fresh {
		opts = append(opts, crawler.WithFreshStart())
	}

	err = runCrawler(cmd, project, opts,
		func(ctx context.Context, c *crawler.WikiaCrawler, maxPages int) (*model.CrawlStats, error) {
			return c.Crawl(ctx, seeds, maxPages)
		})
	switch {
	case errors.Is(err, crawler.ErrStateExists):
		return fmt.Errorf("%w\nrun \"wikiacrawl resume %s\" or pass --fresh", err, project)
	case errors.Is(err, crawler.ErrInterrupted):
		return fmt.Errorf("%w\nrun \"wikiacrawl resume %s\" to continue", err, project)
	default:
		return err
	}
}
