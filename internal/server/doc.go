// Package server exposes crawling over HTTP.
//
// POST /crawl takes {"url": "..."} and answers with the crawl response
// document from the report package. GET /health is a liveness probe.
// Each request runs its own pipeline, so per-site configuration applies and
// no renderer is shared between requests.
package server
