package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/wikiacrawl/internal/config"
	"github.com/nao1215/wikiacrawl/internal/crawler"
	applog "github.com/nao1215/wikiacrawl/internal/log"
	"github.com/nao1215/wikiacrawl/internal/model"
	"github.com/nao1215/wikiacrawl/internal/report"
	"github.com/nao1215/wikiacrawl/internal/store"
)

// addConfigFlags registers the flags shared by commands that read the
// configuration file.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: wikiacrawl.yaml, config/crawler_config.yaml or the XDG config dir)")
	cmd.Flags().String("data-dir", "",
		"Root directory of the project storage (overrides data_dir)")
}

// addCrawlFlags registers the flags shared by crawl and resume.
func addCrawlFlags(cmd *cobra.Command) {
	addConfigFlags(cmd)
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages to fetch in this session (0 means no limit)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched in parallel")
	cmd.Flags().BoolP("json", "j", false,
		"Print the run summary as JSON")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the crawl configuration from the configuration file
// and the command flags.
// If the user names a config file that does not exist, that is an error;
// otherwise a missing file means defaults.
func loadConfig(cmd *cobra.Command) (*config.CrawlConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	path := config.FindConfigFile(configPath)
	if path == "" && configPath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg := config.NewCrawlConfig()
	if path != "" {
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := f.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if cmd.Flags().Changed("data-dir") {
		if cfg.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Lookup("concurrency") != nil && cmd.Flags().Changed("concurrency") {
		if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, saving crawl state...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// crawlFunc is the part of a crawl or resume that differs between the two.
type crawlFunc func(ctx context.Context, c *crawler.WikiaCrawler, maxPages int) (*model.CrawlStats, error)

// runCrawler sets up logging, signal handling and the crawler for project,
// runs fn and prints the run summary.
func runCrawler(cmd *cobra.Command, project string, opts []crawler.Option, fn crawlFunc) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	maxPages, err := cmd.Flags().GetInt("max-pages")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	p, err := store.OpenProject(cfg.DataDir, project)
	if err != nil {
		return err
	}
	logger, logFile, err := applog.NewTeeLogger(cmd.ErrOrStderr(), p.Dir(store.LogsDir), cfg.Verbose)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	c, err := crawler.NewWikiaCrawler(project, cfg, append([]crawler.Option{crawler.WithLogger(logger)}, opts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close crawler", "error", err)
		}
	}()

	stats, runErr := fn(ctx, c, maxPages)
	if stats != nil {
		if _, err := summaryWriter(cmd.OutOrStdout(), asJSON).WriteStats(project, stats); err != nil {
			logger.Warn("failed to write summary", "error", err)
		}
	}
	return runErr
}

func summaryWriter(w io.Writer, asJSON bool) report.Writer {
	if asJSON {
		return report.NewJSONWriter(w)
	}
	return report.NewSimpleWriter(w)
}
