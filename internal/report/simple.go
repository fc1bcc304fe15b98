package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds crawl statistics and visited pages.
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

// Write outputs one report.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs each report followed by a one-line summary.
func (w *SimpleWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	var sb strings.Builder
	for _, report := range reports {
		if report == nil {
			continue
		}
		w.writeReport(&sb, report)
	}
	writeSummary(&sb, reports)
	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs only the summary line that ends WriteBatch. It is
// used when the reports were already written one at a time.
func (w *SimpleWriter) WriteSummary(reports []*model.CrawlReport) (int, error) {
	var sb strings.Builder
	writeSummary(&sb, reports)
	return io.WriteString(w.output, sb.String())
}

func writeSummary(sb *strings.Builder, reports []*model.CrawlReport) {
	var succeeded, links int
	for _, report := range reports {
		if report == nil {
			continue
		}
		if report.Succeeded() {
			succeeded++
		}
		links += report.TotalLinks()
	}
	fmt.Fprintf(sb, "Crawled %d of %d seed(s) successfully, %d link(s) in total.\n", succeeded, len(reports), links)
}

// WriteDiff outputs added links prefixed with "+" and removed links with "-".
func (w *SimpleWriter) WriteDiff(diff *LinkDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Link changes for %s\n", diff.Site)
	fmt.Fprintf(&sb, "  from %s\n", diff.From.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "  to   %s\n\n", diff.To.Format("2006-01-02 15:04:05 MST"))

	if !diff.HasChanges() {
		sb.WriteString("No links were added or removed.\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, link := range diff.Added {
		fmt.Fprintf(&sb, "+ %s\n", link)
	}
	for _, link := range diff.Removed {
		fmt.Fprintf(&sb, "- %s\n", link)
	}
	fmt.Fprintf(&sb, "\n%d added, %d removed\n", len(diff.Added), len(diff.Removed))

	return io.WriteString(w.output, sb.String())
}

// writeReport writes the header, optional statistics and links of report.
func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Seed:       %s\n", report.Target)
	fmt.Fprintf(sb, "Crawl Date: %s\n", report.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Links:      %d\n", report.TotalLinks())
	fmt.Fprintf(sb, "Duration:   %s\n", FormatDuration(report.Duration()))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	if report.Result == nil {
		sb.WriteString("\n")
		return
	}

	if w.verbose {
		stats := report.Result.Stats
		sb.WriteString("\n")
		fmt.Fprintf(sb, "Pages rendered:        %d\n", stats.PagesRendered)
		fmt.Fprintf(sb, "Render errors:         %d\n", stats.RenderErrors)
		fmt.Fprintf(sb, "Blocked by robots.txt: %d\n", stats.RobotsBlocked)
		fmt.Fprintf(sb, "Skipped by pattern:    %d\n", stats.Skipped)
		fmt.Fprintf(sb, "Sitemaps:              %d (%d links)\n", stats.SitemapsFound, stats.SitemapLinks)

		if len(report.Result.Visited) > 0 {
			sb.WriteString("\nVisited:\n")
			for _, page := range report.Result.Visited {
				fmt.Fprintf(sb, "  %s\n", page)
			}
		}
	}

	sb.WriteString("\n")
	for _, link := range report.Result.Links {
		sb.WriteString(link)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
