package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// CrawlResponse is the JSON document describing one crawl. The first five
// fields are what the HTTP server returns for a successful crawl.
type CrawlResponse struct {
	// Success is false when the crawl failed.
	Success bool `json:"success"`

	// URL is the seed as it was requested.
	URL string `json:"url,omitempty"`

	// TotalLinks is len(Links).
	TotalLinks int `json:"totalLinks"`

	// CrawlDuration is the crawl's wall time, for example "1.234s".
	CrawlDuration string `json:"crawlDuration"`

	// Links are the discovered links, sorted.
	Links []string `json:"links"`

	// Partial is true when the crawl stopped early.
	Partial bool `json:"partial,omitempty"`

	// Error describes why the crawl failed or stopped.
	Error string `json:"error,omitempty"`

	// Details carries the crawl statistics when requested.
	Details *CrawlDetails `json:"details,omitempty"`
}

// CrawlDetails are the parts of a crawl result beyond the link list.
type CrawlDetails struct {
	Seed     string           `json:"seed"`
	MaxDepth int              `json:"maxDepth"`
	Visited  []string         `json:"visited"`
	Stats    model.CrawlStats `json:"stats"`
	Started  time.Time        `json:"startedAt"`
	Finished time.Time        `json:"finishedAt"`
}

// NewCrawlResponse builds the response document for report.
// A partial crawl that produced links still counts as a success.
func NewCrawlResponse(report *model.CrawlReport, withDetails bool) *CrawlResponse {
	resp := &CrawlResponse{
		Success:       report.Result != nil && (report.ErrorMessage == "" || report.Partial),
		URL:           report.Target,
		TotalLinks:    report.TotalLinks(),
		CrawlDuration: FormatDuration(report.Duration()),
		Links:         report.Links(),
		Partial:       report.Partial,
		Error:         report.ErrorMessage,
	}
	if resp.Links == nil {
		resp.Links = []string{}
	}

	if withDetails && report.Result != nil {
		resp.Details = &CrawlDetails{
			Seed:     report.Result.Seed,
			MaxDepth: report.Result.MaxDepth,
			Visited:  report.Result.Visited,
			Stats:    report.Result.Stats,
			Started:  report.Result.StartedAt,
			Finished: report.Result.FinishedAt,
		}
	}
	return resp
}

// FormatDuration renders d in seconds with millisecond precision, like
// "1.234s".
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// details adds visited pages and statistics to each response.
	details bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithDetails includes visited pages and crawl statistics.
func WithDetails() JSONWriterOption {
	return func(w *JSONWriter) {
		w.details = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one crawl response.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewCrawlResponse(report, w.details))
}

// WriteBatch outputs a JSON array with one crawl response per report.
func (w *JSONWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	responses := make([]*CrawlResponse, 0, len(reports))
	for _, report := range reports {
		if report == nil {
			continue
		}
		responses = append(responses, NewCrawlResponse(report, w.details))
	}
	return w.writeJSON(responses)
}

// WriteDiff outputs the diff as JSON.
func (w *JSONWriter) WriteDiff(diff *LinkDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
