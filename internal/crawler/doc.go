// Package crawler discovers the links of a single website.
//
// # Architecture
//
// The Spider coordinates a crawl. It reads robots.txt and the sitemaps it
// lists, then walks the site depth-first from the seed, rendering each page
// through a render.Renderer and extracting links from the rendered document.
//
// Every link that passes the scope check is reported, but only pages within
// the depth bound are rendered. A page is rendered at most once per crawl.
// Sitemap entries are reported without being rendered.
//
// # Components
//
//   - Spider: Runs crawls and owns the traversal
//   - Extract: Yields the canonical links of a parsed document
//   - crawlState: Per-crawl visited and result sets
//
// # Failures
//
// Only an invalid seed fails a crawl. Missing robots.txt, broken sitemaps
// and pages that fail to render are logged and contribute nothing.
//
// # Usage
//
//	spider := crawler.NewSpider(newRenderer, crawler.WithMaxDepth(2))
//	result, err := spider.Crawl(ctx, "example.com")
package crawler
