// Package log builds the slog loggers used by sitecrawl.
//
// Crawls carry secrets: site configurations add cookies and authorization
// headers to every request, and crawled links often embed session ids or
// tokens in their query strings. SecureHandler wraps any slog.Handler and
// masks those values before a record is written:
//   - attributes under sensitive keys (cookie, authorization, *token*, ...)
//   - values that look like credentials (JWTs, bearer and basic auth, keys)
//   - passwords and sensitive query parameters inside URLs, leaving the rest
//     of the URL readable
//
// The CLI logs text to stderr; the HTTP server logs JSON:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("render failed", "url", "https://example.com/a?sid=42")
//	// url="https://example.com/a?sid=***REDACTED***"
package log
