package model

import (
	"slices"
	"time"
)

// CrawlResult is the outcome of one crawl of one site.
type CrawlResult struct {
	// Seed is the canonical form of the seed URL.
	Seed string `json:"seed"`

	// MaxDepth is the depth bound the crawl ran with.
	MaxDepth int `json:"max_depth"`

	// Links is every in-scope canonical URL discovered, sorted
	// lexicographically and free of duplicates.
	Links []string `json:"links"`

	// Visited lists the rendered (or attempted) pages in visit order.
	Visited []string `json:"visited"`

	// Stats holds crawl counters.
	Stats CrawlStats `json:"stats"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl returned.
	FinishedAt time.Time `json:"finished_at"`
}

// CrawlStats contains counters collected during a crawl.
type CrawlStats struct {
	// PagesRendered is the number of pages whose document was captured.
	PagesRendered int `json:"pages_rendered"`

	// RenderErrors is the number of pages that failed to render.
	RenderErrors int `json:"render_errors"`

	// RobotsBlocked is the number of distinct URLs robots.txt kept us from
	// visiting.
	RobotsBlocked int `json:"robots_blocked"`

	// Skipped is the number of distinct URLs excluded by ignore or follow
	// patterns.
	Skipped int `json:"skipped"`

	// SitemapsFound is the number of in-scope sitemaps listed in robots.txt.
	SitemapsFound int `json:"sitemaps_found"`

	// SitemapLinks is the number of in-scope entries read from sitemaps.
	SitemapLinks int `json:"sitemap_links"`
}

// TotalLinks returns the number of discovered links.
func (r *CrawlResult) TotalLinks() int {
	if r == nil {
		return 0
	}
	return len(r.Links)
}

// Duration returns the wall-clock time the crawl took.
func (r *CrawlResult) Duration() time.Duration {
	if r == nil || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasLink reports whether link is in the result set.
// Links must be sorted, which Crawl guarantees.
func (r *CrawlResult) HasLink(link string) bool {
	if r == nil {
		return false
	}
	_, found := slices.BinarySearch(r.Links, link)
	return found
}
