package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wikiacrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// The project README of a crawl is usually generated with it.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the project status in Markdown format.
func (w *MarkdownWriter) Write(status *Status) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Status: " + status.Project)
	md.PlainText("")

	if !status.HasState {
		md.Note("No crawl state has been saved for this project yet.")
		md.PlainText("")
		w.writeRuns(md, status)
		return len(md.String()), md.Build()
	}

	w.writeOverview(md, status)
	w.writeCounters(md, status)
	w.writeFailures(md, status)
	w.writeRecent(md, status)
	w.writeRuns(md, status)

	return len(md.String()), md.Build()
}

// WriteStats outputs a run summary in Markdown format.
func (w *MarkdownWriter) WriteStats(project string, stats *model.CrawlStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary: " + project)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages crawled", strconv.Itoa(stats.PagesCrawled)},
			{"Pages crawled this session", strconv.Itoa(stats.SessionPagesCrawled)},
			{"Pages attempted", strconv.Itoa(stats.PagesAttempted)},
			{"Errors", strconv.Itoa(stats.Errors)},
			{"Pages skipped", strconv.Itoa(stats.PagesSkipped)},
			{"URLs in queue", strconv.Itoa(stats.URLsInQueue)},
			{"Duration", fmt.Sprintf("%.1fs", stats.DurationSeconds)},
		},
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, status *Status) {
	seeds := make([]string, len(status.Seeds))
	for i, s := range status.Seeds {
		seeds[i] = "`" + s + "`"
	}
	state := "✅ Complete"
	if !status.Done() {
		state = "⏸️ Resumable"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seeds", strings.Join(seeds, "<br>")},
			{"Hosts", strings.Join(status.AllowedHosts, ", ")},
			{"Started", formatTime(status.StartedAt)},
			{"Last checkpoint", formatTime(status.LastCheckpoint)},
			{"State", state},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, status *Status) {
	md.H2("Progress")
	md.PlainText("")

	c := status.Counters
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages crawled", strconv.Itoa(c.PagesCrawled)},
			{"Pages attempted", strconv.Itoa(c.PagesAttempted)},
			{"Errors", strconv.Itoa(c.Errors)},
			{"Pages skipped", strconv.Itoa(c.PagesSkipped)},
			{"URLs in queue", strconv.Itoa(status.Queued)},
			{"Pages indexed", strconv.Itoa(status.IndexedPages)},
		},
	})
	md.PlainText("")

	if status.Visited > 0 {
		w.writePieChart(md, status)
	}
	w.writeAlert(md, status)
}

// writePieChart writes a mermaid pie chart of visited URL outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, status *Status) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visited URLs"),
		piechart.WithShowData(true),
	)

	for _, s := range []model.VisitStatus{model.StatusFetched, model.StatusFailed, model.StatusSkipped} {
		if n := status.Outcomes[s]; n > 0 {
			chart.LabelAndIntValue(string(s), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, status *Status) {
	c := status.Counters
	switch {
	case c.PagesAttempted > 0 && c.Errors*2 > c.PagesAttempted:
		md.Cautionf("%d of %d attempted pages failed. Check the project log before resuming.",
			c.Errors, c.PagesAttempted)
	case c.Errors > 0:
		md.Warningf("%d page(s) failed.", c.Errors)
	case !status.Done():
		md.Importantf("%d URL(s) are queued. Run `wikiacrawl resume %s` to continue.",
			status.Queued, status.Project)
	default:
		md.Tip("The crawl finished without errors.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, status *Status) {
	if len(status.Failures) == 0 {
		return
	}
	md.H2("Failed URLs")
	md.PlainText("")

	rows := make([][]string, len(status.Failures))
	for i, f := range status.Failures {
		reason := f.Reason
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{f.URL, strconv.Itoa(f.Attempts), truncateString(reason, 60)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Attempts", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecent(md *markdown.Markdown, status *Status) {
	if len(status.RecentPages) == 0 {
		return
	}
	md.H2("Recent Pages")
	md.PlainText("")

	items := make([]string, len(status.RecentPages))
	for i, p := range status.RecentPages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		items[i] = fmt.Sprintf("[%s](%s) (%s)", title, p.URL, formatTime(p.FetchedAt))
		if len(p.Categories) > 0 {
			items[i] += " - " + strings.Join(p.Categories, ", ")
		}
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeRuns(md *markdown.Markdown, status *Status) {
	if len(status.Runs) == 0 {
		return
	}
	md.H2("Runs")
	md.PlainText("")

	rows := make([][]string, len(status.Runs))
	for i, r := range status.Runs {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			formatTime(r.StartedAt),
			string(r.Mode),
			string(r.Outcome),
			strconv.Itoa(r.Stats.SessionPagesCrawled),
			truncateString(errText, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started", "Mode", "Outcome", "Pages", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
