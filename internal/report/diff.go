package report

import (
	"slices"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// LinkDiff is the difference between the links of two crawls of a site.
type LinkDiff struct {
	// Site is the crawled hostname.
	Site string `json:"site"`

	// From is when the older crawl ran.
	From time.Time `json:"from"`

	// To is when the newer crawl ran.
	To time.Time `json:"to"`

	// Added are links found only by the newer crawl, sorted.
	Added []string `json:"added"`

	// Removed are links found only by the older crawl, sorted.
	Removed []string `json:"removed"`
}

// HasChanges reports whether any link was added or removed.
func (d *LinkDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// DiffLinks compares two link sets and returns the links only in newer
// (added) and only in older (removed). Both results are sorted and never nil.
func DiffLinks(older, newer []string) (added, removed []string) {
	oldSet := make(map[string]struct{}, len(older))
	for _, link := range older {
		oldSet[link] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newer))
	for _, link := range newer {
		newSet[link] = struct{}{}
	}

	added = []string{}
	for link := range newSet {
		if _, ok := oldSet[link]; !ok {
			added = append(added, link)
		}
	}
	removed = []string{}
	for link := range oldSet {
		if _, ok := newSet[link]; !ok {
			removed = append(removed, link)
		}
	}

	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// NewLinkDiff compares two reports of the same site.
func NewLinkDiff(older, newer *model.CrawlReport) *LinkDiff {
	added, removed := DiffLinks(older.Links(), newer.Links())
	site := newer.Site
	if site == "" {
		site = older.Site
	}
	return &LinkDiff{
		Site:    site,
		From:    older.DateCrawled,
		To:      newer.DateCrawled,
		Added:   added,
		Removed: removed,
	}
}
