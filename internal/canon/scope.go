package canon

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidSeed is returned when the seed URL cannot be canonicalized.
var ErrInvalidSeed = errors.New("invalid seed URL")

// Scope is the crawl boundary established from the seed URL.
// It is immutable for the lifetime of one crawl.
type Scope struct {
	// Seed is the canonical seed URL.
	Seed *url.URL

	// Domain is the seed's hostname. Links must match it exactly.
	Domain string

	// MaxDepth is the largest link distance from the seed that is rendered.
	MaxDepth int

	// IncludeSubdomains widens the boundary to every host that shares the
	// seed's registrable domain (eTLD+1). Off by default.
	IncludeSubdomains bool

	// registrable is the seed's eTLD+1, computed when IncludeSubdomains is set.
	registrable string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithSubdomains makes every host under the seed's registrable domain
// part of the scope. For example, with seed "www.example.co.uk" both
// "example.co.uk" and "blog.example.co.uk" are in scope.
func WithSubdomains(include bool) ScopeOption {
	return func(s *Scope) {
		s.IncludeSubdomains = include
	}
}

// NewScope canonicalizes seed and returns the scope rooted at it.
// It returns ErrInvalidSeed if the seed cannot be canonicalized.
func NewScope(seed string, maxDepth int, opts ...ScopeOption) (Scope, error) {
	u, ok := Parse(seed, nil)
	if !ok {
		return Scope{}, ErrInvalidSeed
	}

	s := Scope{
		Seed:     u,
		Domain:   u.Hostname(),
		MaxDepth: maxDepth,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.IncludeSubdomains {
		s.registrable = registrableDomain(s.Domain)
		// IP addresses and bare public suffixes have no registrable
		// domain; fall back to exact matching.
		s.IncludeSubdomains = s.registrable != ""
	}

	return s, nil
}

// Contains reports whether the canonical URL u is inside the scope.
func (s Scope) Contains(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return s.ContainsURL(parsed)
}

// ContainsURL is Contains for an already parsed URL.
func (s Scope) ContainsURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == s.Domain {
		return true
	}
	if !s.IncludeSubdomains || host == "" {
		return false
	}
	return host == s.registrable || strings.HasSuffix(host, "."+s.registrable)
}

// registrableDomain returns the eTLD+1 of host, or "" when host is an IP
// address or a public suffix itself.
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return etld1
}

// RobotsURL returns the robots.txt location for the scope's origin.
func (s Scope) RobotsURL() string {
	return s.Seed.Scheme + "://" + s.Seed.Host + "/robots.txt"
}
