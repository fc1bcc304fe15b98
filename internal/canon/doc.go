// Package canon turns raw hrefs into canonical, comparable URLs and decides
// whether a canonical URL belongs to the site being crawled.
//
// # Canonical form
//
// A canonical URL is absolute, uses the http or https scheme, has a lower-case
// scheme and host, carries no fragment, and has no trailing slash on its path
// unless the path is the bare root. Two hrefs that differ only by fragment or
// trailing slash therefore produce the same canonical string, which is what
// the crawler uses for deduplication.
//
// Canonicalize is a pure function: the same (raw, base) pair always yields the
// same result, and canonicalizing a canonical URL returns it unchanged.
//
// # Scope
//
// A Scope is established once from the seed URL and never changes during a
// crawl. By default only URLs whose hostname equals the seed's hostname are in
// scope; subdomains are not followed.
package canon
