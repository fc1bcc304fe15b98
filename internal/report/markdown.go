package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/sitecrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing and
// documentation.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one report.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl Report")
	md.PlainText("")
	w.writeReport(md, report)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by one section per report.
func (w *MarkdownWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl Report")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		if report == nil {
			continue
		}
		rows = append(rows, []string{
			"`" + report.Target + "`",
			strconv.Itoa(report.TotalLinks()),
			FormatDuration(report.Duration()),
			statusText(report),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Seed", "Links", "Duration", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, report := range reports {
		if report == nil {
			continue
		}
		md.H2(report.Target)
		md.PlainText("")
		w.writeReport(md, report)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteDiff outputs the links added and removed between two crawls.
func (w *MarkdownWriter) WriteDiff(diff *LinkDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Link Changes: " + diff.Site)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"From", diff.From.Format("2006-01-02 15:04:05 MST")},
			{"To", diff.To.Format("2006-01-02 15:04:05 MST")},
			{"Added", strconv.Itoa(len(diff.Added))},
			{"Removed", strconv.Itoa(len(diff.Removed))},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("No links were added or removed.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	if len(diff.Added) > 0 {
		md.H2("Added")
		md.PlainText("")
		md.BulletList(codeSpans(diff.Added)...)
		md.PlainText("")
	}
	if len(diff.Removed) > 0 {
		md.H2("Removed")
		md.PlainText("")
		md.BulletList(codeSpans(diff.Removed)...)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// writeReport writes the summary table, statistics and links of report.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.CrawlReport) {
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Target + "`"},
			{"Crawl Date", report.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Links", strconv.Itoa(report.TotalLinks())},
			{"Duration", FormatDuration(report.Duration())},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	if report.Result == nil {
		md.Warningf("The crawl failed: %s", report.ErrorMessage)
		md.PlainText("")
		return
	}
	if report.Partial {
		md.Warningf("The crawl stopped early (%s); the links below are partial.", report.ErrorMessage)
		md.PlainText("")
	}

	stats := report.Result.Stats
	md.H3("Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages rendered", strconv.Itoa(stats.PagesRendered)},
			{"Render errors", strconv.Itoa(stats.RenderErrors)},
			{"Blocked by robots.txt", strconv.Itoa(stats.RobotsBlocked)},
			{"Skipped by pattern", strconv.Itoa(stats.Skipped)},
			{"Sitemaps", strconv.Itoa(stats.SitemapsFound)},
			{"Sitemap links", strconv.Itoa(stats.SitemapLinks)},
		},
	})
	md.PlainText("")

	md.H3("Links")
	md.PlainText("")
	if len(report.Result.Links) == 0 {
		md.Note("No links were found.")
		md.PlainText("")
		return
	}
	md.BulletList(codeSpans(report.Result.Links)...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// codeSpans wraps each link in backticks so Markdown renders it verbatim.
func codeSpans(links []string) []string {
	out := make([]string, len(links))
	for i, link := range links {
		out[i] = "`" + link + "`"
	}
	return out
}
