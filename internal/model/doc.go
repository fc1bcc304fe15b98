// Package model defines the data structures shared by the crawler, the
// pipeline, the history database and the report writers.
//
// This package contains the following main types:
//   - CrawlResult: The link set and diagnostics produced by one crawl
//   - CrawlStats: Counters collected while crawling
//   - CrawlReport: A CrawlResult together with the target and outcome, as it
//     flows through the pipeline and is stored in the history database
//
// The types are kept free of behavior that needs the network so that every
// other package can import them without creating cycles. All of them
// serialize to JSON.
package model
