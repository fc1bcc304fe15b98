// Package database provides SQLite-based storage for sitecrawl's crawl
// history.
//
// The CrawlDB stores finished crawl reports, one row per crawl, together with
// an index of the links each crawl found. Crawls never resume from the
// database; it only backs the history command and report diffs.
//
// The database is a single file opened through modernc.org/sqlite, a
// CGO-free driver, with WAL mode enabled by default.
package database
