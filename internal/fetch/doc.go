// Package fetch provides the plain HTTP client used for robots.txt and
// sitemap retrieval, and for rendering pages when no browser is available.
//
// Every request carries its own timeout. A non-2xx status is reported as an
// error wrapping ErrStatus together with the response, so callers can decide
// whether a failed status still carries useful content.
//
// Responses are decoded manually for gzip, deflate, and brotli content
// encodings and truncated at the configured maximum body size.
//
// An optional SOCKS5 proxy routes all traffic, which is useful when the target
// is only reachable through a jump host.
package fetch
