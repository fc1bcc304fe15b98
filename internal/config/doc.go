// Package config provides configuration structures and utilities for sitecrawl.
// It defines the crawl settings, the rendering and discovery timeouts, report
// preferences and the optional per-site overrides read from a .sitecrawl file.
package config
