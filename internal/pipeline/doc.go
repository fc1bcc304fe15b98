// Package pipeline runs crawl requests through a sequence of steps.
//
// A request for one seed URL becomes a model.CrawlReport that is passed to
// each Step in turn: the CrawlStep runs the spider and attaches its result,
// and the SaveStep records it in the history database. Steps are built per
// site from the configuration, so per-site cookies, headers and depth
// overrides apply.
//
// BatchProcessor crawls several seeds concurrently with errgroup, each
// through its own freshly built pipeline.
package pipeline
