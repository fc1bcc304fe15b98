// Package render loads pages and returns their document after scripts ran.
//
// Browser drives a single headless Chrome instance through chromedp. The
// browser is started on the first Render call and reused for every page of a
// crawl; each page gets its own tab, which is closed when Render returns.
// Close shuts the browser down exactly once.
//
// Static is a Renderer for environments without Chrome. It performs a plain
// HTTP GET, so content produced by scripts is not visible to it.
package render
