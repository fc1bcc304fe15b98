package canon

import (
	"errors"
	"testing"
)

func TestNewScope(t *testing.T) {
	t.Parallel()

	t.Run("establishes domain from seed", func(t *testing.T) {
		t.Parallel()

		s, err := NewScope("Example.com/start", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Domain != "example.com" {
			t.Errorf("expected domain example.com, got %q", s.Domain)
		}
		if s.MaxDepth != 3 {
			t.Errorf("expected max depth 3, got %d", s.MaxDepth)
		}
		if s.Seed.String() != "https://example.com/start" {
			t.Errorf("unexpected seed %q", s.Seed.String())
		}
		if s.RobotsURL() != "https://example.com/robots.txt" {
			t.Errorf("unexpected robots URL %q", s.RobotsURL())
		}
	})

	t.Run("rejects unusable seed", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"", "   ", "mailto:a@b.com", "javascript:void(0)", "ftp://example.com"} {
			if _, err := NewScope(seed, 1); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("NewScope(%q) error = %v, want ErrInvalidSeed", seed, err)
			}
		}
	})
}

func TestScopeContains(t *testing.T) {
	t.Parallel()

	s, err := NewScope("https://ex.com", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://ex.com/x", true},
		{"http://ex.com/x", true},
		{"https://ex.com:8443/x", true},
		{"https://sub.ex.com/x", false},
		{"https://www.ex.com/x", false},
		{"https://notex.com/x", false},
		{"ftp://ex.com/x", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		if got := s.Contains(tt.url); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestScopeWithSubdomains(t *testing.T) {
	t.Parallel()

	t.Run("matches hosts under the registrable domain", func(t *testing.T) {
		t.Parallel()

		s, err := NewScope("https://www.example.co.uk", 1, WithSubdomains(true))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, u := range []string{"https://example.co.uk/", "https://blog.example.co.uk/a", "https://www.example.co.uk/"} {
			if !s.Contains(u) {
				t.Errorf("expected %q to be in scope", u)
			}
		}
		for _, u := range []string{"https://other.co.uk/", "https://badexample.co.uk/"} {
			if s.Contains(u) {
				t.Errorf("expected %q to be out of scope", u)
			}
		}
	})

	t.Run("falls back to exact match for IP seeds", func(t *testing.T) {
		t.Parallel()

		s, err := NewScope("http://127.0.0.1:8080", 1, WithSubdomains(true))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.IncludeSubdomains {
			t.Error("expected IncludeSubdomains to be disabled for an IP seed")
		}
		if !s.Contains("http://127.0.0.1:8080/a") {
			t.Error("expected same IP to be in scope")
		}
	})
}
