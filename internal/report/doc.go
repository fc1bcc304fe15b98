// Package report writes crawl reports.
//
// Writers for three formats share the Writer interface:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the crawl response document, optionally with crawl details
//   - MarkdownWriter: a Markdown document built with nao1215/markdown
//
// DiffLinks compares the links of two crawls of the same site, and the
// writers render that comparison for the history command.
package report
