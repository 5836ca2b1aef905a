package model

import (
	"errors"
	"fmt"
	"time"
)

// VisitStatus is the terminal outcome recorded for a URL.
type VisitStatus string

const (
	// StatusFetched means the page was fetched and its artifact written.
	StatusFetched VisitStatus = "fetched"

	// StatusFailed means the fetch failed permanently or exhausted its retries.
	StatusFailed VisitStatus = "failed"

	// StatusSkipped means the URL was never fetched, e.g. robots.txt disallowed it.
	StatusSkipped VisitStatus = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s VisitStatus) Valid() bool {
	switch s {
	case StatusFetched, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// FrontierEntry is a discovered URL awaiting a fetch.
type FrontierEntry struct {
	// URL is the normalized absolute URL.
	URL string `json:"url"`

	// Depth is the link distance from the nearest seed (seeds are 0).
	Depth int `json:"depth"`

	// DiscoveredFrom is the page the link was found on. Empty for seeds.
	DiscoveredFrom string `json:"discovered_from,omitempty"`

	// DiscoveredAt is when the URL was first enqueued.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// VisitedRecord is the terminal record of a URL.
type VisitedRecord struct {
	Status    VisitStatus `json:"status"`
	VisitedAt time.Time   `json:"visited_at"`
	Attempts  int         `json:"attempts"`

	// Reason describes why the URL failed or was skipped.
	Reason string `json:"reason,omitempty"`
}

// Counters are the cumulative crawl counters.
type Counters struct {
	PagesCrawled   int `json:"pages_crawled"`
	PagesAttempted int `json:"pages_attempted"`
	Errors         int `json:"errors"`
	PagesSkipped   int `json:"pages_skipped"`
}

// CrawlStateVersion is the current state file format version.
const CrawlStateVersion = 1

// CrawlState is the resumable snapshot of a crawl.
// A CrawlState written at a checkpoint reflects only fully completed page
// outcomes: every URL is either in Frontier or in Visited, never both.
type CrawlState struct {
	Version int    `json:"version"`
	Project string `json:"project"`

	// Seeds are the normalized seed URLs the crawl started from.
	Seeds []string `json:"seeds"`

	// AllowedHosts are the hosts links must belong to.
	AllowedHosts []string `json:"allowed_hosts"`

	// Frontier is the pending queue in dequeue order.
	Frontier []FrontierEntry `json:"frontier"`

	// Visited maps a normalized URL to its terminal record.
	Visited map[string]VisitedRecord `json:"visited"`

	Counters Counters `json:"counters"`

	StartedAt      time.Time `json:"started_at"`
	LastCheckpoint time.Time `json:"last_checkpoint"`
}

// ErrInconsistentState is returned by CrawlState.Check for a state that
// violates the frontier/visited invariants.
var ErrInconsistentState = errors.New("inconsistent crawl state")

// Check verifies the structural invariants of a loaded state.
func (s *CrawlState) Check() error {
	if s.Version != CrawlStateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInconsistentState, s.Version)
	}
	seen := make(map[string]struct{}, len(s.Frontier))
	for _, e := range s.Frontier {
		if _, dup := seen[e.URL]; dup {
			return fmt.Errorf("%w: %s queued twice", ErrInconsistentState, e.URL)
		}
		if _, done := s.Visited[e.URL]; done {
			return fmt.Errorf("%w: %s both queued and visited", ErrInconsistentState, e.URL)
		}
		seen[e.URL] = struct{}{}
	}
	for u, rec := range s.Visited {
		if !rec.Status.Valid() {
			return fmt.Errorf("%w: %s has status %q", ErrInconsistentState, u, rec.Status)
		}
	}
	c := s.Counters
	if c.PagesCrawled < 0 || c.Errors < 0 || c.PagesCrawled+c.Errors > c.PagesAttempted {
		return fmt.Errorf("%w: counters %+v", ErrInconsistentState, c)
	}
	return nil
}
