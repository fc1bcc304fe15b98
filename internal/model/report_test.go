package model

import (
	"errors"
	"testing"
	"time"
)

// TestNewCrawlReport tests the CrawlReport constructor.
func TestNewCrawlReport(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("example.com")

	if report.Target != "example.com" {
		t.Errorf("got %q, expected %q", report.Target, "example.com")
	}
	if report.DateCrawled.IsZero() {
		t.Error("expected DateCrawled to be set")
	}
	if time.Since(report.DateCrawled) > time.Second {
		t.Error("DateCrawled is too old")
	}
	if report.Succeeded() {
		t.Error("report without result should not be successful")
	}
	if report.TotalLinks() != 0 {
		t.Errorf("expected 0 links, got %d", report.TotalLinks())
	}
	if report.Links() != nil {
		t.Errorf("expected nil links, got %v", report.Links())
	}
}

// TestCrawlReportSetResult tests that attaching a result derives the site.
func TestCrawlReportSetResult(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := NewCrawlReport("Example.com/docs")
	report.SetResult(&CrawlResult{
		Seed:       "https://example.com/docs",
		Links:      []string{"https://example.com/a", "https://example.com/docs"},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	})

	if report.Site != "example.com" {
		t.Errorf("Site = %q, expected example.com", report.Site)
	}
	if !report.Succeeded() {
		t.Error("expected report to be successful")
	}
	if report.TotalLinks() != 2 {
		t.Errorf("TotalLinks() = %d, expected 2", report.TotalLinks())
	}
	if report.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, expected 1.5s", report.Duration())
	}

	report.SetResult(nil)
	if report.Result != nil {
		t.Error("expected nil result")
	}
}

// TestCrawlReportSetError tests error recording and the partial flag.
func TestCrawlReportSetError(t *testing.T) {
	t.Parallel()

	t.Run("error without result", func(t *testing.T) {
		t.Parallel()

		report := NewCrawlReport("::")
		report.SetError(errors.New("invalid seed URL"))

		if report.ErrorMessage != "invalid seed URL" {
			t.Errorf("ErrorMessage = %q", report.ErrorMessage)
		}
		if report.Partial {
			t.Error("report without result should not be partial")
		}
		if report.Succeeded() {
			t.Error("failed report should not be successful")
		}
	})

	t.Run("error after result", func(t *testing.T) {
		t.Parallel()

		report := NewCrawlReport("example.com")
		report.SetResult(&CrawlResult{Seed: "https://example.com/"})
		report.SetError(errors.New("context canceled"))

		if !report.Partial {
			t.Error("expected partial report")
		}
		if report.Succeeded() {
			t.Error("partial report should not be successful")
		}
	})

	t.Run("nil clears message", func(t *testing.T) {
		t.Parallel()

		report := NewCrawlReport("example.com")
		report.SetError(errors.New("boom"))
		report.SetError(nil)

		if report.ErrorMessage != "" || report.Error != nil {
			t.Errorf("expected cleared error, got %q", report.ErrorMessage)
		}
	})
}

// TestCrawlResult tests the CrawlResult helpers.
func TestCrawlResult(t *testing.T) {
	t.Parallel()

	t.Run("nil result", func(t *testing.T) {
		t.Parallel()

		var r *CrawlResult
		if r.TotalLinks() != 0 {
			t.Error("nil result should have no links")
		}
		if r.Duration() != 0 {
			t.Error("nil result should have zero duration")
		}
		if r.HasLink("https://example.com/") {
			t.Error("nil result should not contain links")
		}
	})

	t.Run("has link", func(t *testing.T) {
		t.Parallel()

		r := &CrawlResult{Links: []string{
			"https://example.com/",
			"https://example.com/about",
			"https://example.com/contact",
		}}
		if !r.HasLink("https://example.com/about") {
			t.Error("expected /about to be found")
		}
		if r.HasLink("https://example.com/blog") {
			t.Error("did not expect /blog to be found")
		}
	})

	t.Run("finished before started", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		r := &CrawlResult{StartedAt: now, FinishedAt: now.Add(-time.Second)}
		if r.Duration() != 0 {
			t.Errorf("Duration() = %v, expected 0", r.Duration())
		}
	})
}
