package report

import (
	"io"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Writer writes crawl reports in one output format.
type Writer interface {
	// Write outputs one report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteBatch outputs the reports of a multi-seed crawl as one document.
	WriteBatch(reports []*model.CrawlReport) (int, error)

	// WriteDiff outputs the links added and removed between two crawls.
	WriteDiff(diff *LinkDiff) (int, error)
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(report) })
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteBatch(reports) })
}

// WriteDiff outputs the diff to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *LinkDiff) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDiff(diff) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a crawl ended.
func statusText(report *model.CrawlReport) string {
	switch {
	case report.Partial:
		return "Partial - " + report.ErrorMessage
	case report.ErrorMessage != "":
		return "Error - " + report.ErrorMessage
	default:
		return "Complete"
	}
}
