package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultCrawlDepth renders the seed, the pages it links to and the
	// pages those link to.
	DefaultCrawlDepth = 2

	// DefaultRobotsTimeout bounds the robots.txt request.
	DefaultRobotsTimeout = 5 * time.Second

	// DefaultSitemapTimeout bounds each sitemap request.
	DefaultSitemapTimeout = 10 * time.Second

	// DefaultPageTimeout bounds page navigation in the browser.
	DefaultPageTimeout = 30 * time.Second

	// DefaultSettleDelay is the pause after navigation that lets client-side
	// scripts insert links before the document is captured.
	DefaultSettleDelay = 1 * time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently. Each
	// concurrent crawl runs its own browser, so this stays small.
	DefaultBatchSize = 4

	// DefaultListenAddr is the address the HTTP server listens on.
	DefaultListenAddr = ":8080"

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultUserAgent identifies sitecrawl in HTTP requests. Its first
	// token is also the name matched against robots.txt groups.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize limits the response body size read for robots.txt,
	// sitemaps and static rendering.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for sitecrawl.
// It is populated from CLI flags and passed through the application rather
// than kept in global state.
type Config struct {
	// CrawlDepth is the maximum link distance from the seed at which pages
	// are rendered. Depth 0 means only the seed page.
	CrawlDepth int

	// RobotsTimeout bounds the robots.txt request.
	RobotsTimeout time.Duration

	// SitemapTimeout bounds each sitemap request.
	SitemapTimeout time.Duration

	// PageTimeout bounds page navigation.
	PageTimeout time.Duration

	// SettleDelay is how long to wait after navigation before capturing.
	SettleDelay time.Duration

	// CrawlDelay is the pause between two renders of the same crawl.
	CrawlDelay time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of concurrent crawls when several seeds are
	// given.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitecrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config
	// file. Nil when no file was found.
	SiteConfigs *File

	// JSONReport enables JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of seed URLs to crawl.
	Targets []string

	// DBDir is the directory path for the history database.
	// Defaults to XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl reports to the database.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// NoBrowser renders pages with plain HTTP instead of headless Chrome.
	NoBrowser bool

	// ChromePath is the Chrome executable. Empty means auto-detect.
	ChromePath string

	// IncludeSubdomains widens the crawl scope to the seed's registrable
	// domain.
	IncludeSubdomains bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format used for
	// robots.txt, sitemaps and static rendering.
	ProxyAddress string

	// ListenAddr is the address the HTTP server listens on.
	ListenAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		CrawlDepth:     DefaultCrawlDepth,
		RobotsTimeout:  DefaultRobotsTimeout,
		SitemapTimeout: DefaultSitemapTimeout,
		PageTimeout:    DefaultPageTimeout,
		SettleDelay:    DefaultSettleDelay,
		BatchSize:      DefaultBatchSize,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		ListenAddr:     DefaultListenAddr,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %APPDATA%\sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for sitecrawl.
// On Linux: ~/.cache/sitecrawl
// On macOS: ~/Library/Caches/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks a crawl configuration. It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything Validate checks except the targets.
// The HTTP server receives its targets per request and uses this directly.
func (c *Config) ValidateSettings() error {
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}

	if c.RobotsTimeout <= 0 || c.SitemapTimeout <= 0 || c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ProxyAddress != "" && !isHostPort(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}

	return nil
}

// isHostPort reports whether address is "host:port" with a valid port.
func isHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
