package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
)

// addSettingsFlags registers the crawl settings shared by crawl and serve.
func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link distance from the seed at which pages are rendered")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")
	cmd.Flags().Bool("no-browser", false,
		"Render with plain HTTP instead of headless Chrome")
	cmd.Flags().String("chrome-path", "",
		"Chrome executable (default: auto-detect)")
	cmd.Flags().Bool("include-subdomains", false,
		"Crawl every host under the seed's registrable domain")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port) for all requests")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header, also used to select robots.txt rules")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay,
		"Wait after navigation before links are collected")
	cmd.Flags().Duration("page-timeout", config.DefaultPageTimeout,
		"Navigation timeout for each page")
	cmd.Flags().Duration("robots-timeout", config.DefaultRobotsTimeout,
		"Timeout for the robots.txt request")
	cmd.Flags().Duration("sitemap-timeout", config.DefaultSitemapTimeout,
		"Timeout for each sitemap request")
	cmd.Flags().Duration("delay", 0,
		"Pause between two page renders of the same crawl")
	cmd.Flags().Bool("no-save", false,
		"Do not record crawls in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
}

// buildSettings creates a Config from the flags registered by
// addSettingsFlags and loads the configuration file.
func buildSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.NoBrowser, err = flags.GetBool("no-browser"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.IncludeSubdomains, err = flags.GetBool("include-subdomains"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.PageTimeout, err = flags.GetDuration("page-timeout"); err != nil {
		return nil, err
	}
	if cfg.RobotsTimeout, err = flags.GetDuration("robots-timeout"); err != nil {
		return nil, err
	}
	if cfg.SitemapTimeout, err = flags.GetDuration("sitemap-timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.LoadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}
