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

	"github.com/nao1215/sitecrawl/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "sitecrawl.db"

// ErrNoResult is returned when saving a report that has no crawl result.
var ErrNoResult = errors.New("crawl report has no result")

// timestampLayout sorts lexicographically in chronological order.
const timestampLayout = "2006-01-02 15:04:05.000000"

// CrawlDB provides SQLite-based storage for crawl reports.
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
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	// The CLI and the server may share the file, so writers wait for the lock.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
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
	-- One row per finished crawl; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		target TEXT NOT NULL,
		seed TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		total_links INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_site ON crawl_reports(site);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);

	-- Links found by each crawl, for lookups across history
	CREATE TABLE IF NOT EXISTS crawl_links (
		report_id INTEGER NOT NULL REFERENCES crawl_reports(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		PRIMARY KEY (report_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_links_url ON crawl_links(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and its links, and sets report.ID.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	if report.Result == nil {
		return 0, ErrNoResult
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_reports (site, target, seed, timestamp, total_links, duration_ms, partial, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Site,
		report.Target,
		report.Result.Seed,
		report.DateCrawled.UTC().Format(timestampLayout),
		report.TotalLinks(),
		report.Duration().Milliseconds(),
		report.Partial,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO crawl_links (report_id, url) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for _, link := range report.Result.Links {
		if _, err := stmt.ExecContext(ctx, id, link); err != nil {
			return 0, fmt.Errorf("failed to save link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl report: %w", err)
	}

	report.ID = id
	return id, nil
}

// GetLatestCrawlReport retrieves the most recent crawl report for a site.
// It returns nil, nil when the site was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, site string) (*model.CrawlReport, error) {
	reports, err := cdb.GetRecentCrawlReports(ctx, site, 1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return reports[0], nil
}

// GetRecentCrawlReports retrieves up to limit reports for a site, newest first.
func (cdb *CrawlDB) GetRecentCrawlReports(ctx context.Context, site string, limit int) ([]*model.CrawlReport, error) {
	query := `
	SELECT id, report_json FROM crawl_reports
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var id int64
		var reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(id, reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ListCrawledSites returns every site with at least one stored crawl.
func (cdb *CrawlDB) ListCrawledSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site FROM crawl_reports
	ORDER BY site
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// CrawlReportMetadata contains summary information about a stored crawl.
// It is used for displaying history without loading the full report.
type CrawlReportMetadata struct {
	// ID is the unique identifier of the crawl report in the database.
	ID int64

	// Site is the crawled hostname.
	Site string

	// Seed is the canonical seed URL.
	Seed string

	// Timestamp is when the crawl was performed.
	Timestamp time.Time

	// TotalLinks is the number of links found.
	TotalLinks int

	// Duration is how long the crawl took.
	Duration time.Duration

	// Partial is true when the crawl stopped early.
	Partial bool
}

// GetCrawlHistoryWithMetadata retrieves crawl metadata for a site, newest
// first.
func (cdb *CrawlDB) GetCrawlHistoryWithMetadata(ctx context.Context, site string) ([]CrawlReportMetadata, error) {
	query := `
	SELECT id, site, seed, timestamp, total_links, duration_ms, partial
	FROM crawl_reports
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlReportMetadata
	for rows.Next() {
		var meta CrawlReportMetadata
		var timestamp string
		var durationMS int64

		if err := rows.Scan(&meta.ID, &meta.Site, &meta.Seed, &timestamp, &meta.TotalLinks, &durationMS, &meta.Partial); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetCrawlReportByID retrieves a crawl report by its database ID.
// It returns nil, nil when no such report exists.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_reports
	WHERE id = ?
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	return decodeReport(id, reportJSON)
}

// LinkFirstSeen returns when link was first found by any stored crawl.
// found is false when no crawl found it.
func (cdb *CrawlDB) LinkFirstSeen(ctx context.Context, link string) (seen time.Time, found bool, err error) {
	query := `
	SELECT MIN(r.timestamp)
	FROM crawl_links l JOIN crawl_reports r ON r.id = l.report_id
	WHERE l.url = ?
	`

	var timestamp sql.NullString
	if err := cdb.db.QueryRowContext(ctx, query, link).Scan(&timestamp); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to look up link: %w", err)
	}
	if !timestamp.Valid {
		return time.Time{}, false, nil
	}
	return parseTimestamp(timestamp.String), true, nil
}

// decodeReport parses a stored report and restores its database ID.
func decodeReport(id int64, reportJSON string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",  // timestampLayout; fractional seconds are accepted
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
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
