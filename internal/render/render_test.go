package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetch"
)

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/next">next</a></body></html>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStatic(t *testing.T) *Static {
	t.Helper()

	client, err := fetch.NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewStatic(client, 5*time.Second)
}

func TestStaticRender(t *testing.T) {
	t.Parallel()

	srv := newStaticServer(t)
	s := newStatic(t)
	ctx := context.Background()

	t.Run("html page", func(t *testing.T) {
		t.Parallel()

		page, err := s.Render(ctx, srv.URL+"/page")
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if page.FinalURL != srv.URL+"/page" {
			t.Errorf("FinalURL = %q", page.FinalURL)
		}
		if !strings.Contains(page.HTML, `href="/next"`) {
			t.Errorf("HTML = %q", page.HTML)
		}
	})

	t.Run("redirect reports final url", func(t *testing.T) {
		t.Parallel()

		page, err := s.Render(ctx, srv.URL+"/moved")
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if page.URL != srv.URL+"/moved" {
			t.Errorf("URL = %q", page.URL)
		}
		if page.FinalURL != srv.URL+"/page" {
			t.Errorf("FinalURL = %q, want %q", page.FinalURL, srv.URL+"/page")
		}
	})

	t.Run("non html", func(t *testing.T) {
		t.Parallel()

		_, err := s.Render(ctx, srv.URL+"/data.json")
		if !errors.Is(err, ErrNotHTML) {
			t.Errorf("Render() error = %v, want ErrNotHTML", err)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		_, err := s.Render(ctx, srv.URL+"/gone")
		if !errors.Is(err, fetch.ErrStatus) {
			t.Errorf("Render() error = %v, want ErrStatus", err)
		}
	})
}

func TestStaticClose(t *testing.T) {
	t.Parallel()

	srv := newStaticServer(t)
	s := newStatic(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := s.Render(context.Background(), srv.URL+"/page"); !errors.Is(err, ErrClosed) {
		t.Errorf("Render() after Close error = %v, want ErrClosed", err)
	}
}

func TestBrowserCloseWithoutLaunch(t *testing.T) {
	t.Parallel()

	b := NewBrowser(WithPageTimeout(time.Second), WithSettleDelay(0))
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	_, err := b.Render(context.Background(), "https://example.com/")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Render() after Close error = %v, want ErrClosed", err)
	}
}

func TestNewBrowserOptions(t *testing.T) {
	t.Parallel()

	b := NewBrowser(
		WithPageTimeout(5*time.Second),
		WithSettleDelay(250*time.Millisecond),
		WithUserAgent("test-agent"),
		WithHeadless(false),
		WithExecPath("/usr/bin/chromium"),
		WithProxy("127.0.0.1:9050"),
		WithHeaders(map[string]string{"Cookie": "session=abc"}),
	)
	if b.pageTimeout != 5*time.Second {
		t.Errorf("pageTimeout = %v", b.pageTimeout)
	}
	if b.settleDelay != 250*time.Millisecond {
		t.Errorf("settleDelay = %v", b.settleDelay)
	}
	if b.userAgent != "test-agent" || b.headless || b.execPath != "/usr/bin/chromium" || b.proxy != "127.0.0.1:9050" {
		t.Errorf("options not applied: %+v", b)
	}

	if b.headers["Cookie"] != "session=abc" {
		t.Errorf("headers = %v", b.headers)
	}

	d := NewBrowser(WithPageTimeout(-1), WithSettleDelay(-1))
	if d.pageTimeout != DefaultPageTimeout || d.settleDelay != DefaultSettleDelay {
		t.Errorf("negative durations should keep defaults, got %v / %v", d.pageTimeout, d.settleDelay)
	}
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"", true},
		{"application/json", false},
		{"image/png", false},
		{";;;", false},
	}

	for _, tt := range tests {
		if got := isHTML(tt.contentType); got != tt.want {
			t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
