package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestClientGet(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ua=" + r.Header.Get("User-Agent")))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("compressed body"))
		_ = gz.Close()
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("brotli body"))
		_ = bw.Close()
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Cookie") + "|" + r.Header.Get("X-Test")))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(WithUserAgent("sitecrawl-test"), WithMaxBodySize(32))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Run("returns body and status", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(context.Background(), server.URL+"/ok", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if string(resp.Body) != "ua=sitecrawl-test" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if resp.ContentType != "text/plain" {
			t.Errorf("unexpected content type %q", resp.ContentType)
		}
	})

	t.Run("non-2xx wraps ErrStatus and keeps response", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(context.Background(), server.URL+"/missing", time.Second)
		if !errors.Is(err, ErrStatus) {
			t.Fatalf("expected ErrStatus, got %v", err)
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected response with 404, got %+v", resp)
		}
	})

	t.Run("decodes gzip", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(context.Background(), server.URL+"/gzip", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "compressed body" {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})

	t.Run("decodes brotli", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(context.Background(), server.URL+"/br", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "brotli body" {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})

	t.Run("follows redirects and reports final URL", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(context.Background(), server.URL+"/redirect", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.FinalURL != server.URL+"/ok" {
			t.Errorf("expected final URL %s/ok, got %s", server.URL, resp.FinalURL)
		}
	})

	t.Run("enforces body size limit", func(t *testing.T) {
		t.Parallel()

		_, err := client.Get(context.Background(), server.URL+"/big", time.Second)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		_, err := client.Get(context.Background(), server.URL+"/slow", 50*time.Millisecond)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if time.Since(start) > time.Second {
			t.Errorf("timeout was not enforced, took %v", time.Since(start))
		}
	})

	t.Run("injects cookie and headers", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient(WithCookie("sid=1"), WithHeaders(map[string]string{"X-Test": "yes"}))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		resp, err := c.Get(context.Background(), server.URL+"/headers", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "sid=1|yes" {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestClientTransport(t *testing.T) {
	t.Parallel()

	var got *http.Request
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/plain"}},
			Body:       io.NopCloser(strings.NewReader("from transport")),
			Request:    req,
		}, nil
	})

	client, err := NewClient(
		WithTransport(rt),
		WithUserAgent("sitecrawl-test"),
		WithCookie("sid=1"),
		WithHeaders(map[string]string{"X-Test": "yes"}),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resp, err := client.Get(context.Background(), "https://example.com/page", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "from transport" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if resp.FinalURL != "https://example.com/page" {
		t.Errorf("FinalURL = %q", resp.FinalURL)
	}

	if got == nil {
		t.Fatal("transport was not used")
	}
	for header, want := range map[string]string{"User-Agent": "sitecrawl-test", "Cookie": "sid=1", "X-Test": "yes"} {
		if v := got.Header.Get(header); v != want {
			t.Errorf("%s = %q, want %q", header, v, want)
		}
	}
}

func TestNewClientProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		wantErr bool
	}{
		{"127.0.0.1:1080", false},
		{"proxy.local:9050", false},
		{"127.0.0.1", true},
		{":1080", true},
		{"127.0.0.1:0", true},
		{"127.0.0.1:70000", true},
		{"127.0.0.1:abc", true},
	}

	for _, tt := range tests {
		_, err := NewClient(WithProxy(tt.address))
		if tt.wantErr && !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("WithProxy(%q): expected ErrInvalidProxyAddress, got %v", tt.address, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("WithProxy(%q): unexpected error %v", tt.address, err)
		}
	}
}
