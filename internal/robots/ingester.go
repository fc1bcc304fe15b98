package robots

import (
	"bytes"
	"compress/gzip"
	"context"
	"html"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/nao1215/sitecrawl/internal/canon"
)

// maxSitemapSize bounds the decompressed size of a gzipped sitemap.
// The sitemaps.org protocol caps uncompressed sitemaps at 50MB.
const maxSitemapSize = 50 * 1024 * 1024

// locPattern is the fallback used when a sitemap is not well-formed XML.
var locPattern = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// Ingester fetches sitemaps and returns the URLs they list.
type Ingester struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithSitemapTimeout overrides the per-sitemap request timeout.
func WithSitemapTimeout(d time.Duration) IngesterOption {
	return func(i *Ingester) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithIngesterLogger sets the logger.
func WithIngesterLogger(logger *slog.Logger) IngesterOption {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// NewIngester creates an Ingester.
func NewIngester(fetcher Fetcher, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		fetcher: fetcher,
		timeout: DefaultSitemapTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest fetches sitemapURL and returns the canonical, in-scope URLs from its
// <loc> entries, deduplicated in document order. Failures yield nil.
func (i *Ingester) Ingest(ctx context.Context, sitemapURL string, scope canon.Scope) []string {
	logger := i.logger.With("sitemap", sitemapURL)

	resp, err := i.fetcher.Get(ctx, sitemapURL, i.timeout)
	if err != nil {
		logger.Warn("failed to fetch sitemap", "error", err)
		return nil
	}

	body, err := maybeGunzip(resp.Body)
	if err != nil {
		logger.Warn("failed to decompress sitemap", "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, loc := range extractLocs(body) {
		u, ok := canon.Canonicalize(loc, scope.Seed)
		if !ok || !scope.Contains(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	logger.Debug("sitemap ingested", "urls", len(urls))
	return urls
}

// extractLocs returns the text of every <loc> element. Well-formed XML is
// queried structurally; anything else falls back to a pattern scan.
func extractLocs(body []byte) []string {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err == nil {
		var locs []string
		xmlquery.FindEach(doc, "//*[local-name()='loc']", func(_ int, n *xmlquery.Node) {
			if text := strings.TrimSpace(n.InnerText()); text != "" {
				locs = append(locs, text)
			}
		})
		return locs
	}

	matches := locPattern.FindAllSubmatch(body, -1)
	locs := make([]string, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(html.UnescapeString(string(m[1])))
		if text != "" {
			locs = append(locs, text)
		}
	}
	return locs
}

// maybeGunzip decompresses body when it is a gzip stream (".xml.gz"
// sitemaps served without Content-Encoding).
func maybeGunzip(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(io.LimitReader(gz, maxSitemapSize))
}
