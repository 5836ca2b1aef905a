package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/wikiacrawl/internal/config"
	"github.com/nao1215/wikiacrawl/internal/database"
	"github.com/nao1215/wikiacrawl/internal/fetcher"
	"github.com/nao1215/wikiacrawl/internal/frontier"
	"github.com/nao1215/wikiacrawl/internal/model"
	"github.com/nao1215/wikiacrawl/internal/politeness"
	"github.com/nao1215/wikiacrawl/internal/store"
)

var (
	// ErrPersistence is returned when a checkpoint, artifact or index
	// write fails. The last good checkpoint stays usable for Resume.
	ErrPersistence = errors.New("persistence failure")

	// ErrInterrupted is returned when the context is cancelled during a
	// crawl. It wraps context.Canceled or context.DeadlineExceeded.
	ErrInterrupted = errors.New("crawl interrupted")

	// ErrNotIdle is returned when Crawl or Resume is called on a crawler
	// that already ran.
	ErrNotIdle = errors.New("crawler already used")

	// ErrStateExists is returned by Crawl when the project already has a
	// checkpoint and the crawler was not created WithFreshStart.
	ErrStateExists = errors.New("crawl state already exists; resume it or start fresh")

	// ErrNoSeeds is returned when no seed URL is valid and in scope.
	ErrNoSeeds = fmt.Errorf("%w: no usable seed URL", config.ErrConfiguration)

	// ErrInvalidMaxPages is returned for a negative page limit.
	ErrInvalidMaxPages = fmt.Errorf("%w: max pages must not be negative", config.ErrConfiguration)
)

// WikiaCrawler crawls one wiki project. It runs exactly one crawl or
// resume; Close releases the HTTP session and the project database.
type WikiaCrawler struct {
	cfg     *config.CrawlConfig
	project *store.Project
	logger  *slog.Logger

	fetcher   *fetcher.Fetcher
	governor  *politeness.Governor
	backoff   fetcher.Backoff
	states    *store.StateStore
	artifacts *store.ArtifactStore
	db        *database.CrawlDB

	freshStart bool

	mu      sync.Mutex
	outcome model.RunOutcome

	// Owned by the crawl loop.
	frontier  *frontier.Frontier
	filter    *LinkFilter
	extractor *LinkExtractor
	state     *model.CrawlState
	session   int
}

// Option configures a WikiaCrawler.
type Option func(*WikiaCrawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *WikiaCrawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFreshStart makes Crawl discard an existing checkpoint instead of
// returning ErrStateExists.
func WithFreshStart() Option {
	return func(c *WikiaCrawler) {
		c.freshStart = true
	}
}

// NewWikiaCrawler validates cfg, creates the project tree and acquires
// the HTTP session and database of the project.
func NewWikiaCrawler(project string, cfg *config.CrawlConfig, opts ...Option) (*WikiaCrawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", config.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &WikiaCrawler{
		cfg:     cfg,
		logger:  slog.Default(),
		outcome: model.OutcomeIdle,
		backoff: fetcher.NewBackoff(cfg.DefaultDelay, cfg.MaxBackoff),
	}
	for _, opt := range opts {
		opt(c)
	}

	p, err := store.OpenProject(cfg.DataDir, project)
	if err != nil {
		return nil, err
	}
	c.project = p
	c.states = p.StateStore()
	c.artifacts = p.ArtifactStore()

	f, err := fetcher.New(cfg, fetcher.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.fetcher = f

	govOpts := []politeness.GovernorOption{politeness.WithGovernorLogger(c.logger)}
	if cfg.RespectRobotsTxt {
		agent := politeness.NewRobotsAgent(f.Client(), cfg.UserAgent,
			politeness.WithCacheTTL(cfg.RobotsCacheTTL),
			politeness.WithCacheDir(p.RobotsCacheDir()),
			politeness.WithRobotsLogger(c.logger))
		govOpts = append(govOpts, politeness.WithRobots(agent))
	}
	c.governor = politeness.NewGovernor(cfg.DefaultDelay, cfg.MaxRequestsPerMinute, govOpts...)

	db, err := database.Open(p.Root, database.DefaultOptions())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	c.db = db

	c.logger.Debug("crawler ready",
		"project", p.Name,
		"root", p.Root,
		"namespaces", cfg.TargetNamespaces,
		"headers", cfg.Headers,
		"cookie", cfg.Cookie)
	return c, nil
}

// Project returns the project the crawler writes to.
func (c *WikiaCrawler) Project() *store.Project {
	return c.project
}

// Outcome returns the lifecycle state of the crawler.
func (c *WikiaCrawler) Outcome() model.RunOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Close releases the HTTP session and the database. It is safe to call
// more than once.
func (c *WikiaCrawler) Close() error {
	if c.fetcher != nil {
		c.fetcher.Close()
		c.fetcher = nil
	}
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

// begin moves the crawler from Idle to Running.
func (c *WikiaCrawler) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome != model.OutcomeIdle || c.fetcher == nil {
		return ErrNotIdle
	}
	c.outcome = model.OutcomeRunning
	return nil
}

func (c *WikiaCrawler) finish(o model.RunOutcome) {
	c.mu.Lock()
	c.outcome = o
	c.mu.Unlock()
}

// Crawl starts a new crawl of the project from seeds and runs until the
// frontier is exhausted, maxPages pages were fetched (0 means no limit),
// ctx is cancelled or a persistence failure occurs.
func (c *WikiaCrawler) Crawl(ctx context.Context, seeds []string, maxPages int) (*model.CrawlStats, error) {
	if maxPages < 0 {
		return nil, ErrInvalidMaxPages
	}
	if err := c.begin(); err != nil {
		return nil, err
	}

	if c.states.Exists() {
		if !c.freshStart {
			c.finish(model.OutcomeFailed)
			return nil, fmt.Errorf("%w: %s", ErrStateExists, c.states.Path())
		}
		if err := c.states.Clear(); err != nil {
			c.finish(model.OutcomeFailed)
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		c.logger.Info("discarded previous crawl state", "project", c.project.Name)
	}

	normalized, hosts := c.normalizeSeeds(seeds)
	filter, err := NewLinkFilter(c.cfg, hosts)
	if err != nil {
		c.finish(model.OutcomeFailed)
		return nil, err
	}

	now := time.Now()
	c.frontier = frontier.New()
	c.state = &model.CrawlState{
		Version:      model.CrawlStateVersion,
		Project:      c.project.Name,
		AllowedHosts: hosts,
		StartedAt:    now,
	}
	for _, seed := range normalized {
		if !filter.Allow(seed) {
			c.logger.Warn("seed outside target namespaces or excluded", "seed", seed)
			continue
		}
		if c.frontier.Enqueue(model.FrontierEntry{URL: seed, DiscoveredAt: now}) {
			c.state.Seeds = append(c.state.Seeds, seed)
		}
	}
	if len(c.state.Seeds) == 0 {
		c.finish(model.OutcomeFailed)
		return nil, ErrNoSeeds
	}
	c.filter = filter
	c.extractor = NewLinkExtractor(filter)

	// Save the seeded frontier so a crawl stopped before its first
	// checkpoint can still be resumed.
	if err := c.checkpoint(); err != nil {
		c.finish(model.OutcomeFailed)
		return nil, err
	}

	c.logger.Info("starting crawl",
		"project", c.project.Name,
		"seeds", len(c.state.Seeds),
		"max_pages", maxPages)
	return c.run(ctx, model.ModeCrawl, maxPages)
}

// Resume continues the crawl saved in the project checkpoint. maxPages
// bounds the pages fetched by this session (0 means no limit).
func (c *WikiaCrawler) Resume(ctx context.Context, maxPages int) (*model.CrawlStats, error) {
	if maxPages < 0 {
		return nil, ErrInvalidMaxPages
	}
	if err := c.begin(); err != nil {
		return nil, err
	}

	state, err := c.states.Load()
	if err != nil {
		c.finish(model.OutcomeFailed)
		return nil, err
	}
	f, err := frontier.Restore(state.Frontier, state.Visited)
	if err != nil {
		c.finish(model.OutcomeFailed)
		return nil, fmt.Errorf("%w: %w", store.ErrCorruptState, err)
	}
	filter, err := NewLinkFilter(c.cfg, state.AllowedHosts)
	if err != nil {
		c.finish(model.OutcomeFailed)
		return nil, err
	}

	c.state = state
	c.frontier = f
	c.filter = filter
	c.extractor = NewLinkExtractor(filter)

	c.logger.Info("resuming crawl",
		"project", c.project.Name,
		"pages_crawled", state.Counters.PagesCrawled,
		"queued", f.Size(),
		"visited", f.VisitedCount(),
		"max_pages", maxPages)
	return c.run(ctx, model.ModeResume, maxPages)
}

// normalizeSeeds normalizes seeds, dropping invalid and duplicate ones,
// and returns them with their distinct hosts in first-seen order.
func (c *WikiaCrawler) normalizeSeeds(seeds []string) ([]string, []string) {
	var out, hosts []string
	for _, raw := range seeds {
		n, err := frontier.NormalizeURL(raw)
		if err != nil {
			c.logger.Warn("ignoring invalid seed", "seed", raw, "error", err)
			continue
		}
		if slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
		if h := frontier.Host(n); !slices.Contains(hosts, h) {
			hosts = append(hosts, h)
		}
	}
	return out, hosts
}

// run is the Running state of the crawler.
func (c *WikiaCrawler) run(ctx context.Context, mode model.RunMode, maxPages int) (*model.CrawlStats, error) {
	started := time.Now()
	c.session = 0
	run := &model.CrawlRun{
		ID:        uuid.NewString(),
		Project:   c.project.Name,
		Mode:      mode,
		Outcome:   model.OutcomeRunning,
		StartedAt: started,
	}
	if err := c.db.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		c.finish(model.OutcomeFailed)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err := c.loop(ctx, maxPages)

	stats := c.stats(started)
	outcome := model.OutcomeCompleted
	switch {
	case err == nil:
		if cpErr := c.checkpoint(); cpErr != nil {
			outcome, err = model.OutcomeFailed, cpErr
		}
	case errors.Is(err, ErrInterrupted):
		outcome = model.OutcomeInterrupted
		if cpErr := c.checkpoint(); cpErr != nil {
			c.logger.Error("failed to save crawl state after interruption", "error", cpErr)
			err = errors.Join(err, cpErr)
		}
	default:
		outcome = model.OutcomeFailed
	}

	run.Outcome = outcome
	run.FinishedAt = time.Now()
	run.Stats = *stats
	if err != nil {
		run.Error = err.Error()
	}
	if dbErr := c.db.SaveRun(context.WithoutCancel(ctx), run); dbErr != nil {
		c.logger.Warn("failed to record run", "run", run.ID, "error", dbErr)
	}
	c.finish(outcome)

	c.logger.Info("crawl finished",
		"outcome", outcome,
		"pages_crawled", stats.PagesCrawled,
		"pages_attempted", stats.PagesAttempted,
		"errors", stats.Errors,
		"skipped", stats.PagesSkipped,
		"queued", stats.URLsInQueue,
		"duration", time.Since(started).Round(time.Millisecond))
	return stats, err
}

// loop dequeues batches until the frontier is empty or the session limit
// is reached. It returns nil on completion.
func (c *WikiaCrawler) loop(ctx context.Context, maxPages int) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		n := c.cfg.Concurrency
		if maxPages > 0 {
			remaining := maxPages - c.session
			if remaining <= 0 {
				c.logger.Info("page limit reached", "max_pages", maxPages)
				return nil
			}
			n = min(n, remaining)
		}

		batch := make([]model.FrontierEntry, 0, n)
		for range n {
			e, ok := c.frontier.Dequeue()
			if !ok {
				break
			}
			batch = append(batch, e)
		}
		if len(batch) == 0 {
			return nil
		}

		results := c.visitBatch(ctx, batch)

		var aborted []model.FrontierEntry
		for _, r := range results {
			if r.kind == visitAborted {
				aborted = append(aborted, r.entry)
				continue
			}
			if err := c.apply(ctx, r); err != nil {
				return err
			}
		}
		if len(aborted) > 0 {
			c.frontier.Requeue(aborted...)
		}
	}
}

// visitBatch runs visit for every entry, concurrently when the batch has
// more than one. Results keep the batch order.
func (c *WikiaCrawler) visitBatch(ctx context.Context, batch []model.FrontierEntry) []visitResult {
	results := make([]visitResult, len(batch))
	if len(batch) == 1 {
		results[0] = c.visit(ctx, batch[0])
		return results
	}
	var g errgroup.Group
	for i, e := range batch {
		g.Go(func() error {
			results[i] = c.visit(ctx, e)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // visit never fails
	return results
}

// apply records one outcome. Only persistence failures are returned.
func (c *WikiaCrawler) apply(ctx context.Context, r visitResult) error {
	now := time.Now()
	counters := &c.state.Counters

	// An earlier entry of the same batch redirected here and already
	// recorded this page.
	if rec, ok := c.frontier.Visited(r.entry.URL); ok {
		c.logger.Debug("dropped duplicate outcome", "url", r.entry.URL, "reason", rec.Reason)
		return nil
	}

	switch r.kind {
	case visitSkipped:
		c.frontier.MarkVisited(r.entry.URL, model.VisitedRecord{
			Status:    model.StatusSkipped,
			VisitedAt: now,
			Reason:    r.reason,
		})
		counters.PagesSkipped++
		c.logger.Info("skipped page", "url", r.entry.URL, "reason", r.reason)
		return nil

	case visitFailed:
		c.frontier.MarkVisited(r.entry.URL, model.VisitedRecord{
			Status:    model.StatusFailed,
			VisitedAt: now,
			Attempts:  r.attempts,
			Reason:    r.reason,
		})
		counters.PagesAttempted++
		counters.Errors++
		c.logger.Warn("failed page", "url", r.entry.URL, "attempts", r.attempts, "reason", r.reason)
		return nil

	case visitFetched:
		return c.applyFetched(ctx, r, now)

	default:
		return nil
	}
}

func (c *WikiaCrawler) applyFetched(ctx context.Context, r visitResult, now time.Time) error {
	res := r.result
	artifact := &model.PageArtifact{
		URL:            r.entry.URL,
		FinalURL:       res.FinalURL,
		StatusCode:     res.StatusCode,
		ContentType:    res.ContentType,
		FetchedAt:      res.FetchedAt,
		Depth:          r.entry.Depth,
		DiscoveredFrom: r.entry.DiscoveredFrom,
		Raw:            res.Body,
	}
	if res.IsHTML() {
		doc := ParseHTML(res.Body)
		artifact.Links = c.extractor.ExtractLinks(doc, res.FinalURL)
		content := ExtractContent(doc)
		artifact.Title = content.Title
		artifact.Content = content.Text
		artifact.Categories = content.Categories
		artifact.Infobox = content.Infobox
	}
	artifact.ComputeHash()

	rel, err := c.artifacts.Write(artifact)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	record := database.NewPageRecord(c.project.Name, rel, artifact)
	if err := c.db.UpsertPage(context.WithoutCancel(ctx), record); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	visited := model.VisitedRecord{Status: model.StatusFetched, VisitedAt: now, Attempts: r.attempts}
	c.frontier.MarkVisited(r.entry.URL, visited)
	c.markRedirectTarget(r.entry.URL, res.FinalURL, visited)

	counters := &c.state.Counters
	counters.PagesCrawled++
	counters.PagesAttempted++
	c.session++

	added := 0
	for _, link := range artifact.Links {
		if c.frontier.Enqueue(model.FrontierEntry{
			URL:            link,
			Depth:          r.entry.Depth + 1,
			DiscoveredFrom: r.entry.URL,
			DiscoveredAt:   now,
		}) {
			added++
		}
	}

	c.logger.Info("crawled page",
		"url", r.entry.URL,
		"title", artifact.Title,
		"links", len(artifact.Links),
		"new", added,
		"pages", counters.PagesCrawled,
		"queued", c.frontier.Size())

	if counters.PagesCrawled%c.cfg.SaveStateEveryNPages == 0 {
		return c.checkpoint()
	}
	return nil
}

// markRedirectTarget records an in-scope redirect target as fetched so
// the same page is not downloaded again under its canonical URL.
func (c *WikiaCrawler) markRedirectTarget(requested, final string, rec model.VisitedRecord) {
	if final == "" || final == requested {
		return
	}
	u, err := url.Parse(final)
	if err != nil {
		return
	}
	n, err := frontier.NormalizeParsed(u)
	if err != nil || n == requested || !c.filter.Allow(n) {
		return
	}
	rec.Reason = "redirect target of " + requested
	c.frontier.MarkVisited(n, rec)
}

// checkpoint atomically replaces the saved CrawlState with the current
// frontier, visited set and counters.
func (c *WikiaCrawler) checkpoint() error {
	entries, visited := c.frontier.Snapshot()
	c.state.Frontier = entries
	c.state.Visited = visited
	c.state.LastCheckpoint = time.Now()
	if err := c.states.Save(c.state); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	c.logger.Debug("saved crawl state",
		"pages_crawled", c.state.Counters.PagesCrawled,
		"queued", len(entries),
		"visited", len(visited))
	return nil
}

func (c *WikiaCrawler) stats(started time.Time) *model.CrawlStats {
	return model.NewCrawlStats(c.state.Counters, c.frontier.Size()+c.frontier.InFlight(), c.session, time.Since(started))
}
