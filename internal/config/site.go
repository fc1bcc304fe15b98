package config

import (
	"maps"
	"slices"
)

// SiteConfig holds site-specific configuration for a single host.
// Pointer fields distinguish "not set" from an explicit zero value.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	Depth *int `yaml:"depth,omitempty"`

	// IncludeSubdomains overrides the subdomain scope setting.
	IncludeSubdomains *bool `yaml:"include_subdomains,omitempty"`

	// NoBrowser renders this site with plain HTTP.
	NoBrowser *bool `yaml:"no_browser,omitempty"`

	// IgnorePatterns are URL path patterns whose pages are not rendered.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict rendering to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Sites maps hostnames (e.g., "example.com") to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites unless
	// overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, with the site-specific
// configuration merged over the defaults. The result shares no maps or
// slices with cf.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults.clone()

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != nil {
		depth := *siteConfig.Depth
		result.Depth = &depth
	}
	if siteConfig.IncludeSubdomains != nil {
		include := *siteConfig.IncludeSubdomains
		result.IncludeSubdomains = &include
	}
	if siteConfig.NoBrowser != nil {
		noBrowser := *siteConfig.NoBrowser
		result.NoBrowser = &noBrowser
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = slices.Clone(siteConfig.IgnorePatterns)
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = slices.Clone(siteConfig.FollowPatterns)
	}

	return result
}

func (sc SiteConfig) clone() SiteConfig {
	out := sc
	out.Headers = maps.Clone(sc.Headers)
	out.IgnorePatterns = slices.Clone(sc.IgnorePatterns)
	out.FollowPatterns = slices.Clone(sc.FollowPatterns)
	return out
}

// CrawlSettings are the effective settings for crawling one site.
type CrawlSettings struct {
	Depth             int
	Cookie            string
	Headers           map[string]string
	IncludeSubdomains bool
	NoBrowser         bool
	IgnorePatterns    []string
	FollowPatterns    []string
}

// ForSite returns the settings for crawling host: the command-line
// configuration with any file overrides for host applied.
func (c *Config) ForSite(host string) CrawlSettings {
	settings := CrawlSettings{
		Depth:             c.CrawlDepth,
		IncludeSubdomains: c.IncludeSubdomains,
		NoBrowser:         c.NoBrowser,
	}
	if c.SiteConfigs == nil {
		return settings
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	settings.Cookie = site.Cookie
	settings.Headers = site.Headers
	settings.IgnorePatterns = site.IgnorePatterns
	settings.FollowPatterns = site.FollowPatterns
	if site.Depth != nil && *site.Depth >= 0 {
		settings.Depth = *site.Depth
	}
	if site.IncludeSubdomains != nil {
		settings.IncludeSubdomains = *site.IncludeSubdomains
	}
	if site.NoBrowser != nil {
		settings.NoBrowser = settings.NoBrowser || *site.NoBrowser
	}
	return settings
}
