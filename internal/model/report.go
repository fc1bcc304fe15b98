package model

import (
	"net/url"
	"time"
)

// CrawlReport is one crawl request and its outcome.
// It is what the pipeline passes between steps and what the history
// database stores.
type CrawlReport struct {
	// ID is the history database row id. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Target is the seed as the user supplied it.
	Target string `json:"target"`

	// Site is the hostname of the canonical seed. Empty when the seed was
	// rejected.
	Site string `json:"site,omitempty"`

	// DateCrawled is when the crawl was requested.
	DateCrawled time.Time `json:"date_crawled"`

	// Result is the crawl outcome. It may be partial when Error is set.
	Result *CrawlResult `json:"result,omitempty"`

	// Partial is true when the crawl stopped early, for example because it
	// was cancelled.
	Partial bool `json:"partial"`

	// Error is the error that stopped the crawl, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewCrawlReport creates a report for the given target.
func NewCrawlReport(target string) *CrawlReport {
	return &CrawlReport{
		Target:      target,
		DateCrawled: time.Now(),
	}
}

// SetResult attaches a crawl result and derives Site from its seed.
func (r *CrawlReport) SetResult(result *CrawlResult) {
	r.Result = result
	if result == nil {
		return
	}
	if u, err := url.Parse(result.Seed); err == nil {
		r.Site = u.Hostname()
	}
}

// SetError records err. A report that already has a result is marked
// partial.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err == nil {
		r.ErrorMessage = ""
		return
	}
	r.ErrorMessage = err.Error()
	r.Partial = r.Result != nil
}

// Succeeded reports whether the crawl finished without error.
func (r *CrawlReport) Succeeded() bool {
	return r.Result != nil && r.ErrorMessage == ""
}

// Links returns the discovered links, or nil when there is no result.
func (r *CrawlReport) Links() []string {
	if r.Result == nil {
		return nil
	}
	return r.Result.Links
}

// TotalLinks returns the number of discovered links.
func (r *CrawlReport) TotalLinks() int {
	return r.Result.TotalLinks()
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	return r.Result.Duration()
}
