package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// logFileTimeFormat names log files so they sort chronologically.
const logFileTimeFormat = "20060102_150405"

// OpenProjectLog creates a new crawl_<timestamp>.log file in dir.
// The caller closes the returned file.
func OpenProjectLog(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "crawl_"+now.Format(logFileTimeFormat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is built from the project directory
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// NewTeeLogger returns a secure text logger writing to console and to a
// new project log file in logDir. The file always records Debug level so
// a quiet terminal session still leaves a complete trail.
func NewTeeLogger(console io.Writer, logDir string, verbose bool) (*slog.Logger, io.Closer, error) {
	f, err := OpenProjectLog(logDir, time.Now())
	if err != nil {
		return nil, nil, err
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: levelFor(verbose)})
	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewSecureHandler(fanout{consoleHandler, fileHandler})), f, nil
}

// fanout passes each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
