package robots

import (
	"net/url"

	"github.com/temoto/robotstxt"
)

// Policy holds the parsed robots.txt rules for one crawl.
// A nil *Policy or one built from a failed fetch allows every URL.
type Policy struct {
	group *robotstxt.Group

	// Sitemaps are the canonical, in-scope sitemap URLs listed in robots.txt.
	Sitemaps []string
}

// EmptyPolicy returns a policy that allows everything and lists no sitemaps.
func EmptyPolicy() *Policy {
	return &Policy{}
}

// Allowed reports whether the crawler may render the canonical URL u.
func (p *Policy) Allowed(u string) bool {
	if p == nil || p.group == nil {
		return true
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return true
	}
	return p.group.Test(requestPath(parsed))
}

// HasRules reports whether the policy carries a parsed rule group.
func (p *Policy) HasRules() bool {
	return p != nil && p.group != nil
}

// requestPath is the part of the URL robots rules are matched against.
func requestPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
