package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wikiacrawl/internal/model"
)

// DBFileName is the database file name inside a project directory.
const DBFileName = "wikiacrawl.db"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CrawlDB provides SQLite-based storage for the page index and the run
// history of one project.
//
// The database only indexes what the artifact files already hold, so it
// can always be rebuilt from processed/. CrawlState stays in its JSON
// checkpoint, which is the source of truth for resume.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per fetched page, pointing at its artifact file
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		final_url TEXT,
		title TEXT,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		artifact_path TEXT NOT NULL,
		depth INTEGER DEFAULT 0,
		link_count INTEGER DEFAULT 0,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_project ON pages(project);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);
	CREATE INDEX IF NOT EXISTS idx_pages_fetched ON pages(fetched_at);

	-- One row per crawl or resume invocation
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		stats_json TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord is the index entry of one stored page artifact.
type PageRecord struct {
	URL          string
	Project      string
	FinalURL     string
	Title        string
	StatusCode   int
	ContentType  string
	ContentHash  string
	ArtifactPath string
	Depth        int
	LinkCount    int
	FetchedAt    time.Time
}

// NewPageRecord builds the index entry for an artifact stored at artifactPath.
func NewPageRecord(project, artifactPath string, a *model.PageArtifact) *PageRecord {
	return &PageRecord{
		URL:          a.URL,
		Project:      project,
		FinalURL:     a.FinalURL,
		Title:        a.Title,
		StatusCode:   a.StatusCode,
		ContentType:  a.ContentType,
		ContentHash:  a.ContentHash,
		ArtifactPath: artifactPath,
		Depth:        a.Depth,
		LinkCount:    len(a.Links),
		FetchedAt:    a.FetchedAt,
	}
}

// UpsertPage inserts or replaces the index entry of a page.
func (cdb *CrawlDB) UpsertPage(ctx context.Context, record *PageRecord) error {
	query := `
	INSERT INTO pages (url, project, final_url, title, status_code, content_type, content_hash, artifact_path, depth, link_count, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		project = excluded.project,
		final_url = excluded.final_url,
		title = excluded.title,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		content_hash = excluded.content_hash,
		artifact_path = excluded.artifact_path,
		depth = excluded.depth,
		link_count = excluded.link_count,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		record.URL,
		record.Project,
		record.FinalURL,
		record.Title,
		record.StatusCode,
		record.ContentType,
		record.ContentHash,
		record.ArtifactPath,
		record.Depth,
		record.LinkCount,
		formatTimestamp(record.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	return nil
}

// GetPage retrieves the index entry of url, or ErrNotFound.
func (cdb *CrawlDB) GetPage(ctx context.Context, url string) (*PageRecord, error) {
	query := `
	SELECT url, project, final_url, title, status_code, content_type, content_hash, artifact_path, depth, link_count, fetched_at
	FROM pages
	WHERE url = ?
	`

	record, err := scanPage(cdb.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return record, nil
}

// CountPages returns the number of indexed pages of project.
func (cdb *CrawlDB) CountPages(ctx context.Context, project string) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE project = ?", project).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// RecentPages returns up to limit pages of project, newest first.
func (cdb *CrawlDB) RecentPages(ctx context.Context, project string, limit int) ([]PageRecord, error) {
	query := `
	SELECT url, project, final_url, title, status_code, content_type, content_hash, artifact_path, depth, link_count, fetched_at
	FROM pages
	WHERE project = ?
	ORDER BY fetched_at DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var results []PageRecord
	for rows.Next() {
		record, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		results = append(results, *record)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*PageRecord, error) {
	var record PageRecord
	var finalURL, title, contentType, contentHash sql.NullString
	var fetchedAt string
	err := row.Scan(
		&record.URL,
		&record.Project,
		&finalURL,
		&title,
		&record.StatusCode,
		&contentType,
		&contentHash,
		&record.ArtifactPath,
		&record.Depth,
		&record.LinkCount,
		&fetchedAt,
	)
	if err != nil {
		return nil, err
	}
	record.FinalURL = finalURL.String
	record.Title = title.String
	record.ContentType = contentType.String
	record.ContentHash = contentHash.String
	record.FetchedAt = parseTimestamp(fetchedAt)
	return &record, nil
}

// SaveRun inserts or updates a run history record.
// A run is saved once when it starts and again when it ends.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.CrawlRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}

	var finishedAt sql.NullString
	if !run.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTimestamp(run.FinishedAt), Valid: true}
	}

	query := `
	INSERT INTO runs (id, project, mode, outcome, started_at, finished_at, stats_json, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		outcome = excluded.outcome,
		finished_at = excluded.finished_at,
		stats_json = excluded.stats_json,
		error = excluded.error
	`

	_, err = cdb.db.ExecContext(ctx, query,
		run.ID,
		run.Project,
		string(run.Mode),
		string(run.Outcome),
		formatTimestamp(run.StartedAt),
		finishedAt,
		string(statsJSON),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs of project, newest first.
func (cdb *CrawlDB) ListRuns(ctx context.Context, project string, limit int) ([]model.CrawlRun, error) {
	query := `
	SELECT id, project, mode, outcome, started_at, finished_at, stats_json, error
	FROM runs
	WHERE project = ?
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var results []model.CrawlRun
	for rows.Next() {
		var run model.CrawlRun
		var mode, outcome, startedAt string
		var finishedAt, statsJSON, runErr sql.NullString

		if err := rows.Scan(&run.ID, &run.Project, &mode, &outcome, &startedAt, &finishedAt, &statsJSON, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Mode = model.RunMode(mode)
		run.Outcome = model.RunOutcome(outcome)
		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &run.Stats); err != nil {
				run.Stats = model.CrawlStats{}
			}
		}
		run.Error = runErr.String
		results = append(results, run)
	}

	return results, rows.Err()
}

// formatTimestamp stores times in UTC so lexical order matches time order.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
