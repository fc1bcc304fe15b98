package canon

import (
	"net/url"
	"strings"
)

// rejectedPrefixes are href prefixes that never point at a crawlable page.
var rejectedPrefixes = []string{
	"javascript:",
	"mailto:",
	"tel:",
	"data:",
}

// Canonicalize resolves raw against base and returns its canonical form.
//
// When base is nil, raw is treated as a seed URL: if it has no scheme,
// "https://" is prepended. The second return value is false when raw is
// empty, is a fragment-only reference, uses a non-http(s) scheme, has no host,
// or cannot be parsed. Rejection is an expected outcome, not an error.
func Canonicalize(raw string, base *url.URL) (string, bool) {
	u, ok := Parse(raw, base)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// Parse is like Canonicalize but returns the canonical URL as a *url.URL.
// The returned value is a fresh copy the caller may keep.
func Parse(raw string, base *url.URL) (*url.URL, bool) {
	href := strings.TrimSpace(raw)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}

	lower := strings.ToLower(href)
	for _, prefix := range rejectedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}

	if base == nil {
		switch {
		case strings.HasPrefix(href, "//"):
			href = "https:" + href
		case !strings.Contains(href, "://"):
			if schemeWithoutHost(href) {
				return nil, false
			}
			href = "https://" + href
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Opaque != "" || u.Hostname() == "" {
		return nil, false
	}

	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	trimTrailingSlash(u)

	return u, true
}

// MustParse canonicalizes a seed URL and panics if it is rejected.
// It is intended for tests and package-level constants.
func MustParse(raw string) *url.URL {
	u, ok := Parse(raw, nil)
	if !ok {
		panic("canon: cannot canonicalize " + raw)
	}
	return u
}

// trimTrailingSlash removes trailing slashes from the path so that "/a/" and
// "/a" compare equal. The root path is kept so the origin form stays
// "scheme://host/". Only literal slashes are trimmed; an escaped "%2F" is
// part of the last segment.
func trimTrailingSlash(u *url.URL) {
	trimmed := strings.TrimRight(u.EscapedPath(), "/")
	if trimmed == "" {
		u.Path = "/"
		u.RawPath = ""
		return
	}

	p, err := url.PathUnescape(trimmed)
	if err != nil {
		return
	}
	u.Path = p
	u.RawPath = trimmed
}

// schemeWithoutHost reports whether a seed written without "://" still
// starts with a scheme, as in "http:/example.com" or "http:example.com".
// A host followed by a numeric port is not a scheme.
func schemeWithoutHost(href string) bool {
	head := href
	if i := strings.IndexAny(head, "/?#"); i >= 0 {
		head = head[:i]
	}
	if strings.HasPrefix(head, "[") {
		return false
	}
	i := strings.LastIndex(head, ":")
	if i < 0 {
		return false
	}
	port := head[i+1:]
	return port == "" || strings.Trim(port, "0123456789") != ""
}
