package crawler

import (
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitecrawl/internal/canon"
)

// linkRule selects elements and names the attribute that holds a link.
type linkRule struct {
	// selector is the CSS selector for candidate elements.
	selector string

	// attr is the attribute carrying the URL.
	attr string

	// accept optionally filters matched elements.
	accept func(*goquery.Selection) bool

	// value optionally turns the raw attribute into a URL.
	value func(string) (string, bool)
}

// linkRules are applied in order. Within a rule, elements are visited in
// document order.
var linkRules = []linkRule{
	{selector: "a[href]", attr: "href"},
	{selector: "[data-href]", attr: "data-href"},
	{selector: "[data-url]", attr: "data-url"},
	{selector: "[data-link]", attr: "data-link"},
	{selector: "[data-path]", attr: "data-path"},
	{selector: "form[action]", attr: "action"},
	{selector: "link[href]", attr: "href", accept: isNavigationalLink},
	{selector: "area[href]", attr: "href"},
	{selector: "iframe[src]", attr: "src"},
	{selector: "meta[http-equiv]", attr: "content", accept: isRefresh, value: refreshTarget},
	{selector: baseSelector, attr: "href"},
}

const baseSelector = "base[href]"

// navigationalRels are the <link rel> values that point at other pages.
var navigationalRels = map[string]struct{}{
	"canonical": {},
	"alternate": {},
	"next":      {},
	"prev":      {},
}

// ParseDocument parses an HTML document.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// Extract returns the canonical URLs referenced by doc, resolved against
// base or against the document's <base href> when it has one. The sequence
// is lazy, yields each URL once and follows rule order, then document order.
// References the canonicalizer rejects are dropped.
func Extract(doc *goquery.Document, base *url.URL) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		resolveBase := documentBase(doc, base)

		for _, rule := range linkRules {
			for _, sel := range doc.Find(rule.selector).EachIter() {
				if rule.accept != nil && !rule.accept(sel) {
					continue
				}

				raw, ok := sel.Attr(rule.attr)
				if !ok {
					continue
				}
				if rule.value != nil {
					if raw, ok = rule.value(raw); !ok {
						continue
					}
				}

				ref := resolveBase
				if rule.selector == baseSelector {
					ref = base
				}
				link, ok := canon.Canonicalize(raw, ref)
				if !ok {
					continue
				}
				if _, dup := seen[link]; dup {
					continue
				}
				seen[link] = struct{}{}

				if !yield(link) {
					return
				}
			}
		}
	}
}

// documentBase returns the URL relative references in doc resolve against:
// the first <base href> resolved against pageURL, or pageURL when there is
// none or it is not an absolute http(s) URL. The path is kept as written so a
// trailing slash still marks a directory.
func documentBase(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find(baseSelector).First().Attr("href")
	if !ok {
		return pageURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return pageURL
	}
	if pageURL != nil {
		ref = pageURL.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return pageURL
	}
	return ref
}

// isNavigationalLink reports whether a <link> element's rel names another
// page rather than a resource such as a stylesheet.
func isNavigationalLink(sel *goquery.Selection) bool {
	rel, _ := sel.Attr("rel")
	for token := range strings.FieldsSeq(strings.ToLower(rel)) {
		if _, ok := navigationalRels[token]; ok {
			return true
		}
	}
	return false
}

// isRefresh reports whether a <meta> element is a refresh directive.
func isRefresh(sel *goquery.Selection) bool {
	equiv, _ := sel.Attr("http-equiv")
	return strings.EqualFold(strings.TrimSpace(equiv), "refresh")
}

// refreshTarget returns the URL of a meta refresh content value such as
// "5; url='/next'". A bare delay has no target.
func refreshTarget(content string) (string, bool) {
	rest := content
	if _, after, found := strings.Cut(content, ";"); found {
		rest = after
	}

	key, value, found := strings.Cut(rest, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(key), "url") {
		return "", false
	}

	target := strings.Trim(strings.TrimSpace(value), `"'`)
	return target, target != ""
}

// pageTitle returns the document title, used for debug logging.
func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}
