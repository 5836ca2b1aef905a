package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nao1215/wikiacrawl/internal/fetcher"
	"github.com/nao1215/wikiacrawl/internal/model"
	"github.com/nao1215/wikiacrawl/internal/politeness"
)

// visitKind is the outcome of visiting one frontier entry.
type visitKind int

const (
	// visitFetched: the page was downloaded.
	visitFetched visitKind = iota
	// visitFailed: permanent failure or retries exhausted.
	visitFailed
	// visitSkipped: robots.txt disallows the URL; no request was sent.
	visitSkipped
	// visitAborted: the context ended before an outcome was reached.
	// The entry goes back to the front of the frontier.
	visitAborted
)

type visitResult struct {
	entry    model.FrontierEntry
	kind     visitKind
	result   *fetcher.Result
	attempts int
	reason   string
}

// visit takes one entry through the robots check and the retry loop.
//
// ctx ends politeness waits and backoff sleeps, but a request that has
// been sent is allowed to finish within the configured timeout so that
// cancellation only ever lands between page outcomes.
func (c *WikiaCrawler) visit(ctx context.Context, e model.FrontierEntry) visitResult {
	r := visitResult{entry: e}

	u, err := url.Parse(e.URL)
	if err != nil {
		r.kind = visitFailed
		r.reason = err.Error()
		return r
	}

	if !c.governor.IsAllowed(ctx, u) {
		if ctx.Err() != nil {
			r.kind = visitAborted
			return r
		}
		r.kind = visitSkipped
		r.reason = politeness.ErrRobotsDisallowed.Error()
		return r
	}

	fetchCtx := context.WithoutCancel(ctx)
	for {
		if err := c.governor.AwaitTurn(ctx, u.Host); err != nil {
			r.kind = visitAborted
			return r
		}

		r.attempts++
		res := c.fetcher.Fetch(fetchCtx, e.URL)
		r.result = res

		switch res.Outcome {
		case fetcher.OutcomeSuccess:
			r.kind = visitFetched
			return r
		case fetcher.OutcomePermanent:
			r.kind = visitFailed
			r.reason = res.Err.Error()
			return r
		case fetcher.OutcomeRetryable:
		}

		if r.attempts > c.cfg.MaxRetries {
			r.kind = visitFailed
			r.reason = fmt.Sprintf("giving up after %d attempts: %v", r.attempts, res.Err)
			return r
		}

		delay := c.backoff.Delay(r.attempts, res.RetryAfter)
		c.logger.Debug("retrying page",
			"url", e.URL,
			"attempt", r.attempts,
			"error", res.Err,
			"delay", delay)
		if err := sleep(ctx, delay); err != nil {
			r.kind = visitAborted
			return r
		}
	}
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
