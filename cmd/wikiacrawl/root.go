package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/wikiacrawl/internal/crawler"
)

// exitInterrupted is the exit status after SIGINT/SIGTERM, as with shells.
const exitInterrupted = 130

// NewRootCmd creates the root command for wikiacrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikiacrawl",
		Short: "Polite, resumable crawler for MediaWiki and Fandom wikis",
		Long: `wikiacrawl downloads the articles of a wiki for offline analysis.

It honors robots.txt, spaces requests to each host, retries transient
failures with exponential backoff and checkpoints its progress so an
interrupted crawl can be resumed exactly where it stopped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, crawler.ErrInterrupted) {
			os.Exit(exitInterrupted)
		}
		os.Exit(1)
	}
}
