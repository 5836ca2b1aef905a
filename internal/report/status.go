package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// maxFailures limits the failed URLs listed in a Status.
const maxFailures = 20

// Status is a point-in-time view of a crawl project.
type Status struct {
	Project string `json:"project"`

	// HasState is false when the project has no checkpoint yet.
	HasState bool `json:"has_state"`

	Seeds          []string       `json:"seeds,omitempty"`
	AllowedHosts   []string       `json:"allowed_hosts,omitempty"`
	Counters       model.Counters `json:"counters"`
	Queued         int            `json:"queued"`
	Visited        int            `json:"visited"`
	StartedAt      time.Time      `json:"started_at,omitzero"`
	LastCheckpoint time.Time      `json:"last_checkpoint,omitzero"`

	// Outcomes counts visited URLs per status.
	Outcomes map[model.VisitStatus]int `json:"outcomes,omitempty"`

	// Failures lists failed URLs in URL order, at most maxFailures.
	Failures []Failure `json:"failures,omitempty"`

	// IndexedPages is the number of pages in the project index.
	IndexedPages int `json:"indexed_pages"`

	RecentPages []PageSummary    `json:"recent_pages,omitempty"`
	Runs        []model.CrawlRun `json:"runs,omitempty"`
}

// Failure is a URL that could not be fetched.
type Failure struct {
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}

// PageSummary is a recently fetched page.
type PageSummary struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	FetchedAt  time.Time `json:"fetched_at"`
	Categories []string  `json:"categories,omitempty"`
}

// NewStatus builds a Status for project from its saved state.
// state may be nil when nothing has been checkpointed yet.
func NewStatus(project string, state *model.CrawlState) *Status {
	s := &Status{Project: project}
	if state == nil {
		return s
	}

	s.HasState = true
	s.Seeds = state.Seeds
	s.AllowedHosts = state.AllowedHosts
	s.Counters = state.Counters
	s.Queued = len(state.Frontier)
	s.Visited = len(state.Visited)
	s.StartedAt = state.StartedAt
	s.LastCheckpoint = state.LastCheckpoint
	s.Outcomes = make(map[model.VisitStatus]int)

	for u, rec := range state.Visited {
		s.Outcomes[rec.Status]++
		if rec.Status == model.StatusFailed {
			s.Failures = append(s.Failures, Failure{URL: u, Attempts: rec.Attempts, Reason: rec.Reason})
		}
	}
	slices.SortFunc(s.Failures, func(a, b Failure) int {
		return cmp.Compare(a.URL, b.URL)
	})
	if len(s.Failures) > maxFailures {
		s.Failures = s.Failures[:maxFailures]
	}
	return s
}

// Failed returns the number of failed URLs.
func (s *Status) Failed() int {
	return s.Outcomes[model.StatusFailed]
}

// Done reports whether the crawl has nothing left to fetch.
func (s *Status) Done() bool {
	return s.HasState && s.Queued == 0
}

// LastRun returns the most recent run, or nil.
// Runs are kept newest first.
func (s *Status) LastRun() *model.CrawlRun {
	if len(s.Runs) == 0 {
		return nil
	}
	return &s.Runs[0]
}
