package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/canon"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
)

// historyTimeLayout is how crawl times are shown in history listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// This command reads crawls stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show and compare stored crawls",
		Long: `History reads the crawls recorded by 'sitecrawl crawl'.

Without an argument it lists every crawled site. With a site URL it lists
that site's crawls, newest first.

Examples:
  # List crawled sites
  sitecrawl history

  # List the crawls of a site
  sitecrawl history https://example.com

  # Show links added and removed since the previous crawl
  sitecrawl history --diff example.com

  # Compare the latest crawl with a specific crawl
  sitecrawl history --diff --with-id 3 example.com

  # Show when a link was first discovered
  sitecrawl history --first-seen https://example.com/about`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("diff", false,
		"Show links added and removed between two crawls of the site")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Crawl ID to compare the latest crawl with (default: the previous crawl)")
	cmd.Flags().Bool("first-seen", false,
		"Treat the argument as a link and show when it was first discovered")
	cmd.Flags().BoolP("json", "j", false,
		"Output the diff in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the diff in Markdown format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	diff      bool
	withID    int64
	firstSeen bool
	json      bool
	markdown  bool
	dbDir     string
}

// parseHistoryOptions reads the history command's flags.
func parseHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.withID, err = flags.GetInt64("with-id"); err != nil {
		return opts, err
	}
	if opts.firstSeen, err = flags.GetBool("first-seen"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	if opts.diff && opts.firstSeen {
		return errors.New("--diff and --first-seen cannot be used together")
	}
	if (opts.diff || opts.firstSeen) && len(args) == 0 {
		return errors.New("a URL is required with --diff and --first-seen")
	}

	var site, link string
	if len(args) == 1 {
		u, ok := canon.Parse(args[0], nil)
		if !ok {
			return fmt.Errorf("%w: %s", canon.ErrInvalidSeed, args[0])
		}
		site = u.Hostname()
		link = u.String()
	}

	out := cmd.OutOrStdout()

	dbPath := filepath.Join(opts.dbDir, database.DBFileName)
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <url>' to crawl a site and record it.")
		return nil
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case site == "":
		return listCrawledSites(ctx, db, out)
	case opts.firstSeen:
		return showFirstSeen(ctx, db, out, link)
	case opts.diff:
		return showDiff(ctx, db, out, site, opts)
	default:
		return listCrawlHistory(ctx, db, out, site)
	}
}

// listCrawledSites lists every site that has a stored crawl.
func listCrawledSites(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	sites, err := db.ListCrawledSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl history <url>' to see the crawls of a site.")

	return nil
}

// listCrawlHistory lists the stored crawls of site, newest first.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, out io.Writer, site string) error {
	history, err := db.GetCrawlHistoryWithMetadata(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", site, len(history))
	fmt.Fprintf(out, "  %-6s  %-19s  %7s  %10s  %s\n", "ID", "Date", "Links", "Duration", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range history {
		status := "complete"
		if meta.Partial {
			status = "partial"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %7d  %10s  %s\n",
			meta.ID,
			meta.Timestamp.Format(historyTimeLayout),
			meta.TotalLinks,
			report.FormatDuration(meta.Duration),
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitecrawl history --diff <url>' to compare the latest two crawls.")
	return nil
}

// showDiff writes the links added and removed between the latest crawl of
// site and the previous one, or the crawl with ID opts.withID.
func showDiff(ctx context.Context, db *database.CrawlDB, out io.Writer, site string, opts historyOptions) error {
	older, newer, err := diffPair(ctx, db, site, opts.withID)
	if err != nil {
		return err
	}

	diff := report.NewLinkDiff(older, newer)

	var writer report.Writer
	switch {
	case opts.json:
		writer = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		writer = report.NewMarkdownWriter(out)
	default:
		writer = report.NewSimpleWriter(out)
	}

	_, err = writer.WriteDiff(diff)
	return err
}

// diffPair returns the two crawls of site to compare, older first.
func diffPair(ctx context.Context, db *database.CrawlDB, site string, withID int64) (older, newer *model.CrawlReport, err error) {
	if withID > 0 {
		newer, err = db.GetLatestCrawlReport(ctx, site)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get latest crawl: %w", err)
		}
		if newer == nil {
			return nil, nil, fmt.Errorf("no crawl history found for %s", site)
		}

		older, err = db.GetCrawlReportByID(ctx, withID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get crawl with ID %d: %w", withID, err)
		}
		if older == nil {
			return nil, nil, fmt.Errorf("crawl with ID %d not found", withID)
		}
		if older.Site != site {
			return nil, nil, fmt.Errorf("crawl ID %d belongs to %s, not %s", withID, older.Site, site)
		}
		return older, newer, nil
	}

	reports, err := db.GetRecentCrawlReports(ctx, site, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(reports) < 2 {
		return nil, nil, fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(reports))
	}
	return reports[1], reports[0], nil
}

// showFirstSeen writes when link was first discovered.
func showFirstSeen(ctx context.Context, db *database.CrawlDB, out io.Writer, link string) error {
	seen, found, err := db.LinkFirstSeen(ctx, link)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(out, "%s has not been discovered by any stored crawl\n", link)
		return nil
	}
	fmt.Fprintf(out, "%s first seen %s\n", link, seen.Format(historyTimeLayout))
	return nil
}
