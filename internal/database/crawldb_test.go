package database

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck
	return db
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("unexpected path %s", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		record := &PageRecord{
			URL:          "https://avatar.fandom.com/wiki/Aang",
			Project:      "avatar",
			StatusCode:   http.StatusOK,
			ArtifactPath: "processed/aang.json",
			FetchedAt:    time.Now(),
		}
		if err := db1.UpsertPage(ctx, record); err != nil {
			t.Fatalf("failed to insert record: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetPage(ctx, record.URL); err != nil {
			t.Errorf("expected record to persist, got %v", err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// TestPages tests page index operations.
func TestPages(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("insert and retrieve record", func(t *testing.T) {
		artifact := &model.PageArtifact{
			URL:         "https://avatar.fandom.com/wiki/Katara",
			FinalURL:    "https://avatar.fandom.com/wiki/Katara",
			StatusCode:  http.StatusOK,
			ContentType: "text/html",
			ContentHash: "abc123",
			Title:       "Katara",
			Links:       []string{"https://avatar.fandom.com/wiki/Sokka", "https://avatar.fandom.com/wiki/Aang"},
			Depth:       1,
			FetchedAt:   base,
		}
		if err := db.UpsertPage(ctx, NewPageRecord("pages-test", "processed/katara.json", artifact)); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		got, err := db.GetPage(ctx, artifact.URL)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Title != "Katara" || got.LinkCount != 2 || got.Depth != 1 || got.ContentHash != "abc123" {
			t.Errorf("unexpected record %+v", got)
		}
		if !got.FetchedAt.Equal(base) {
			t.Errorf("expected fetched_at %v, got %v", base, got.FetchedAt)
		}
	})

	t.Run("upsert updates existing record", func(t *testing.T) {
		record := &PageRecord{
			URL:          "https://avatar.fandom.com/wiki/Upsert",
			Project:      "pages-test",
			Title:        "Original Title",
			StatusCode:   http.StatusOK,
			ArtifactPath: "processed/upsert.json",
			FetchedAt:    base,
		}
		if err := db.UpsertPage(ctx, record); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		record.Title = "Updated Title"
		if err := db.UpsertPage(ctx, record); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := db.GetPage(ctx, record.URL)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Title != "Updated Title" {
			t.Errorf("expected 'Updated Title', got %q", got.Title)
		}
	})

	t.Run("missing page", func(t *testing.T) {
		if _, err := db.GetPage(ctx, "https://avatar.fandom.com/wiki/Nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// TestCountAndRecentPages tests project-scoped page queries.
func TestCountAndRecentPages(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, title := range []string{"Aang", "Katara", "Sokka"} {
		record := &PageRecord{
			URL:          "https://avatar.fandom.com/wiki/" + title,
			Project:      "avatar",
			Title:        title,
			ArtifactPath: "processed/" + title + ".json",
			FetchedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.UpsertPage(ctx, record); err != nil {
			t.Fatal(err)
		}
	}
	other := &PageRecord{URL: "https://starwars.fandom.com/wiki/Yoda", Project: "starwars", ArtifactPath: "x", FetchedAt: base}
	if err := db.UpsertPage(ctx, other); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountPages(ctx, "avatar")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 pages, got %d", count)
	}

	recent, err := db.RecentPages(ctx, "avatar", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Title != "Sokka" || recent[1].Title != "Katara" {
		t.Errorf("unexpected recent pages %+v", recent)
	}
}

// TestRuns tests run history operations.
func TestRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := &model.CrawlRun{
		ID:        "run-1",
		Project:   "avatar",
		Mode:      model.ModeCrawl,
		Outcome:   model.OutcomeRunning,
		StartedAt: base,
	}
	if err := db.SaveRun(ctx, first); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	first.Outcome = model.OutcomeInterrupted
	first.FinishedAt = base.Add(time.Minute)
	first.Stats = model.CrawlStats{PagesCrawled: 15, PagesAttempted: 15, URLsInQueue: 40}
	first.Error = "crawl interrupted"
	if err := db.SaveRun(ctx, first); err != nil {
		t.Fatalf("failed to update run: %v", err)
	}

	second := &model.CrawlRun{
		ID:        "run-2",
		Project:   "avatar",
		Mode:      model.ModeResume,
		Outcome:   model.OutcomeRunning,
		StartedAt: base.Add(time.Hour),
	}
	if err := db.SaveRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, "avatar", 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" || !runs[0].FinishedAt.IsZero() {
		t.Errorf("unexpected newest run %+v", runs[0])
	}
	got := runs[1]
	if got.Outcome != model.OutcomeInterrupted || got.Mode != model.ModeCrawl {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Stats.PagesCrawled != 15 || got.Stats.URLsInQueue != 40 {
		t.Errorf("unexpected stats %+v", got.Stats)
	}
	if got.Error != "crawl interrupted" || !got.FinishedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected run details %+v", got)
	}
}

// TestParseTimestamp tests timestamp parsing across formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		zero bool
	}{
		{"2024-05-01T10:00:00.123456789Z", false},
		{"2024-05-01T10:00:00Z", false},
		{"2024-05-01 10:00:00", false},
		{"not a time", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.in, got)
			}
		})
	}
}
