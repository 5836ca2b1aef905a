// Package crawler implements the wiki crawl engine.
//
// # Architecture
//
// WikiaCrawler owns one project's crawl. Each iteration of its loop takes
// a batch of entries from the Frontier and visits them:
//
//	dequeue -> robots.txt check -> Governor.AwaitTurn -> Fetch (retry with backoff)
//
// Outcomes are then applied one at a time in dequeue order: the page
// artifact is stored and indexed, links found by the LinkExtractor are
// enqueued, and every SaveStateEveryNPages pages the CrawlState is
// checkpointed atomically. With Concurrency 1 (the default) the crawl is
// strictly sequential.
//
// # Components
//
//   - WikiaCrawler: the orchestrator and its Idle/Running/terminal lifecycle
//   - Parser: HTML link parser built on golang.org/x/net/html
//   - LinkFilter: same-site, namespace and exclude-pattern rules
//   - LinkExtractor: Parser plus LinkFilter
//   - ExtractContent: title, text, categories and infobox via goquery
//
// # Failure handling
//
// Per-URL failures never stop a crawl: the URL is recorded as failed or
// skipped and the loop continues. Only persistence failures (ErrPersistence)
// end a run early, and cancellation of the context ends it with
// ErrInterrupted after a final checkpoint.
//
// # Usage
//
//	c, err := crawler.NewWikiaCrawler("avatar", cfg, crawler.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	stats, err := c.Crawl(ctx, []string{"https://avatar.fandom.com/wiki/Aang"}, 0)
package crawler
