package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists failures, recent pages and the run history.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the project status in human-readable format.
func (w *SimpleWriter) Write(status *Status) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "CRAWL STATUS")
	fmt.Fprintf(&sb, "Project:         %s\n", status.Project)

	if !status.HasState {
		sb.WriteString("State:           no crawl state saved\n\n")
		w.writeRuns(&sb, status)
		w.writeFooter(&sb)
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "Seeds:           %s\n", strings.Join(status.Seeds, ", "))
	fmt.Fprintf(&sb, "Started:         %s\n", formatTime(status.StartedAt))
	fmt.Fprintf(&sb, "Last checkpoint: %s\n", formatTime(status.LastCheckpoint))
	if status.Done() {
		sb.WriteString("State:           complete\n")
	} else {
		sb.WriteString("State:           resumable\n")
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "COUNTERS")
	fmt.Fprintf(&sb, "  Pages crawled:   %d\n", status.Counters.PagesCrawled)
	fmt.Fprintf(&sb, "  Pages attempted: %d\n", status.Counters.PagesAttempted)
	fmt.Fprintf(&sb, "  Errors:          %d\n", status.Counters.Errors)
	fmt.Fprintf(&sb, "  Pages skipped:   %d\n", status.Counters.PagesSkipped)
	fmt.Fprintf(&sb, "  URLs in queue:   %d\n", status.Queued)
	fmt.Fprintf(&sb, "  URLs visited:    %d\n", status.Visited)
	fmt.Fprintf(&sb, "  Pages indexed:   %d\n", status.IndexedPages)
	sb.WriteString("\n")

	if w.verbose {
		w.writeFailures(&sb, status)
		w.writeRecent(&sb, status)
		w.writeRuns(&sb, status)
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteStats outputs a run summary in human-readable format.
func (w *SimpleWriter) WriteStats(project string, stats *model.CrawlStats) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "CRAWL SUMMARY")
	fmt.Fprintf(&sb, "Project:         %s\n", project)
	fmt.Fprintf(&sb, "Pages crawled:   %d (%d this session)\n", stats.PagesCrawled, stats.SessionPagesCrawled)
	fmt.Fprintf(&sb, "Pages attempted: %d\n", stats.PagesAttempted)
	fmt.Fprintf(&sb, "Errors:          %d\n", stats.Errors)
	fmt.Fprintf(&sb, "Pages skipped:   %d\n", stats.PagesSkipped)
	fmt.Fprintf(&sb, "URLs in queue:   %d\n", stats.URLsInQueue)
	fmt.Fprintf(&sb, "Duration:        %.1fs\n", stats.DurationSeconds)
	sb.WriteString("\n")
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%s%s\n", strings.Repeat(" ", (70-len(title))/2), title)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, status *Status) {
	if len(status.Failures) == 0 {
		return
	}
	w.writeSection(sb, "FAILED URLS")
	for _, f := range status.Failures {
		fmt.Fprintf(sb, "  [!] %s\n", f.URL)
		fmt.Fprintf(sb, "      Attempts: %d\n", f.Attempts)
		if f.Reason != "" {
			fmt.Fprintf(sb, "      Reason:   %s\n", f.Reason)
		}
	}
	if n := status.Failed(); n > len(status.Failures) {
		fmt.Fprintf(sb, "  ... and %d more\n", n-len(status.Failures))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRecent(sb *strings.Builder, status *Status) {
	if len(status.RecentPages) == 0 {
		return
	}
	w.writeSection(sb, "RECENT PAGES")
	for _, p := range status.RecentPages {
		fmt.Fprintf(sb, "  [+] %s  %s\n", formatTime(p.FetchedAt), p.Title)
		fmt.Fprintf(sb, "      %s\n", p.URL)
		if len(p.Categories) > 0 {
			fmt.Fprintf(sb, "      categories: %s\n", strings.Join(p.Categories, ", "))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRuns(sb *strings.Builder, status *Status) {
	if len(status.Runs) == 0 {
		return
	}
	w.writeSection(sb, "RUNS")
	for _, r := range status.Runs {
		fmt.Fprintf(sb, "  %s  %-6s  %-11s  %d pages\n",
			formatTime(r.StartedAt), r.Mode, r.Outcome, r.Stats.SessionPagesCrawled)
		if r.Error != "" {
			fmt.Fprintf(sb, "      Error: %s\n", r.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
