package model

import "time"

// CrawlStats summarizes a crawl at the end of a run.
// The counters are cumulative across sessions of one project;
// SessionPagesCrawled and DurationSeconds cover the current run only.
type CrawlStats struct {
	PagesCrawled        int     `json:"pages_crawled"`
	PagesAttempted      int     `json:"pages_attempted"`
	Errors              int     `json:"errors"`
	PagesSkipped        int     `json:"pages_skipped"`
	DurationSeconds     float64 `json:"duration_seconds"`
	URLsInQueue         int     `json:"urls_in_queue"`
	SessionPagesCrawled int     `json:"session_pages_crawled"`
}

// NewCrawlStats derives stats from counters, the queue length and the
// session figures.
func NewCrawlStats(c Counters, queued, sessionCrawled int, elapsed time.Duration) *CrawlStats {
	return &CrawlStats{
		PagesCrawled:        c.PagesCrawled,
		PagesAttempted:      c.PagesAttempted,
		Errors:              c.Errors,
		PagesSkipped:        c.PagesSkipped,
		DurationSeconds:     elapsed.Seconds(),
		URLsInQueue:         queued,
		SessionPagesCrawled: sessionCrawled,
	}
}

// RunOutcome is the lifecycle state of a crawler run.
type RunOutcome string

const (
	OutcomeIdle        RunOutcome = "idle"
	OutcomeRunning     RunOutcome = "running"
	OutcomeCompleted   RunOutcome = "completed"
	OutcomeInterrupted RunOutcome = "interrupted"
	OutcomeFailed      RunOutcome = "failed"
)

// Terminal reports whether o ends a run.
func (o RunOutcome) Terminal() bool {
	return o == OutcomeCompleted || o == OutcomeInterrupted || o == OutcomeFailed
}

// RunMode tells a fresh crawl apart from a resumed one.
type RunMode string

const (
	ModeCrawl  RunMode = "crawl"
	ModeResume RunMode = "resume"
)

// CrawlRun is the history record of one crawl or resume invocation.
type CrawlRun struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	Mode       RunMode    `json:"mode"`
	Outcome    RunOutcome `json:"outcome"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
	Stats      CrawlStats `json:"stats"`
	Error      string     `json:"error,omitempty"`
}
