package render

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetch"
)

// Getter is the HTTP capability Static needs. *fetch.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Static renders pages with a plain HTTP GET.
type Static struct {
	getter  Getter
	timeout time.Duration
	closed  atomic.Bool
}

// NewStatic returns a Static renderer using getter with the given request
// timeout.
func NewStatic(getter Getter, timeout time.Duration) *Static {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	return &Static{getter: getter, timeout: timeout}
}

// Render fetches pageURL. Non-HTML responses return ErrNotHTML.
func (s *Static) Render(ctx context.Context, pageURL string) (*Page, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	resp, err := s.getter.Get(ctx, pageURL, s.timeout)
	if err != nil {
		return nil, err
	}
	if !isHTML(resp.ContentType) {
		return nil, fmt.Errorf("%s: %w (%s)", pageURL, ErrNotHTML, resp.ContentType)
	}

	return &Page{URL: pageURL, FinalURL: resp.FinalURL, HTML: string(resp.Body)}, nil
}

// Close marks the renderer closed.
func (s *Static) Close() error {
	s.closed.Store(true)
	return nil
}

// isHTML reports whether contentType denotes an HTML document. An empty
// content type is treated as HTML.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
