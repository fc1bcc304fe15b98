package robots

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/nao1215/sitecrawl/internal/canon"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/temoto/robotstxt"
)

const (
	// DefaultRobotsTimeout bounds the robots.txt request.
	DefaultRobotsTimeout = 5 * time.Second

	// DefaultSitemapTimeout bounds each sitemap request.
	DefaultSitemapTimeout = 10 * time.Second
)

// sitemapLine matches "Sitemap: <url>" directives anywhere in robots.txt.
var sitemapLine = regexp.MustCompile(`(?im)^[ \t]*sitemap[ \t]*:[ \t]*(\S+)`)

// Fetcher is the HTTP capability the discoverer and ingester need.
// *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Discoverer fetches and parses robots.txt.
type Discoverer struct {
	fetcher   Fetcher
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithRobotsTimeout overrides the robots.txt request timeout.
func WithRobotsTimeout(d time.Duration) DiscovererOption {
	return func(di *Discoverer) {
		if d > 0 {
			di.timeout = d
		}
	}
}

// WithDiscovererLogger sets the logger.
func WithDiscovererLogger(logger *slog.Logger) DiscovererOption {
	return func(di *Discoverer) {
		di.logger = logger
	}
}

// NewDiscoverer creates a Discoverer. userAgent is the product token rules are
// matched against (for example "sitecrawl").
func NewDiscoverer(fetcher Fetcher, userAgent string, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		fetcher:   fetcher,
		userAgent: userAgent,
		timeout:   DefaultRobotsTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover fetches robots.txt for the scope's origin and returns its policy.
// It never fails: any problem yields EmptyPolicy.
func (d *Discoverer) Discover(ctx context.Context, scope canon.Scope) *Policy {
	robotsURL := scope.RobotsURL()
	logger := d.logger.With("url", robotsURL)

	resp, err := d.fetcher.Get(ctx, robotsURL, d.timeout)
	if err != nil {
		logger.Debug("robots.txt unavailable, allowing all", "error", err)
		return EmptyPolicy()
	}

	policy := &Policy{
		Sitemaps: sitemapURLs(string(resp.Body), scope),
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		logger.Warn("failed to parse robots.txt, allowing all", "error", err)
		return policy
	}
	policy.group = data.FindGroup(d.userAgent)

	logger.Debug("robots.txt loaded", "sitemaps", len(policy.Sitemaps))
	return policy
}

// sitemapURLs extracts in-scope, canonical Sitemap directive targets from raw
// robots.txt text. Order of first appearance is kept.
func sitemapURLs(text string, scope canon.Scope) []string {
	matches := sitemapLine.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))

	for _, m := range matches {
		u, ok := canon.Canonicalize(m[1], scope.Seed)
		if !ok || !scope.Contains(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
