package report

import (
	"io"
	"time"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the project status.
	// Returns the number of bytes written and any error encountered.
	Write(status *Status) (int, error)

	// WriteStats outputs the summary of a single crawl or resume run.
	WriteStats(project string, stats *model.CrawlStats) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the status to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(status *Status) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(status)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteStats outputs the run summary to all configured Writers.
func (m *MultiWriter) WriteStats(project string, stats *model.CrawlStats) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteStats(project, stats)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
