// Package robots discovers crawl rules and extra URLs for a site before the
// page traversal starts.
//
// The Discoverer fetches /robots.txt once per crawl and turns it into a
// Policy: an allow/disallow test for this crawler's user agent plus the list
// of in-scope Sitemap URLs. The Ingester fetches a sitemap and returns the
// in-scope URLs listed in its <loc> elements.
//
// Every failure here (network error, timeout, non-2xx status, malformed
// document) degrades to "no rules" or "no URLs" and is only logged.
package robots
