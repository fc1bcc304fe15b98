package render

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPageTimeout bounds page navigation.
	DefaultPageTimeout = 30 * time.Second

	// DefaultSettleDelay is the pause after navigation that lets scripts
	// insert dynamic content before the document is captured.
	DefaultSettleDelay = 1 * time.Second
)

var (
	// ErrClosed is returned by Render after Close was called.
	ErrClosed = errors.New("renderer is closed")

	// ErrNotHTML is returned when the target is not an HTML document.
	ErrNotHTML = errors.New("response is not an HTML document")
)

// Page is a rendered document.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the document location after redirects.
	FinalURL string

	// HTML is the serialized document.
	HTML string
}

// Renderer loads a URL and returns its document.
// Implementations must be safe to Close more than once.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*Page, error)
	Close() error
}
