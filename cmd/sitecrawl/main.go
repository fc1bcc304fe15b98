// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl discovers every link of a single website: it renders pages in
// headless Chrome, follows same-site links to a bounded depth, and adds the
// pages listed in the site's sitemaps.
//
// Usage:
//
//	sitecrawl crawl <url>
//	sitecrawl serve --addr :8080
//	sitecrawl history <url> --diff
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
