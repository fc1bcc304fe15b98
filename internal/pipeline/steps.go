package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/canon"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/render"
)

// Crawler discovers the links of one site. *crawler.Spider satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlResult, error)
}

// CrawlStep runs a crawl for the report's target and attaches the result.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that uses c.
func NewCrawlStep(c Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl. A crawl that stops early still attaches its
// partial result before the error is returned.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	result, err := s.crawler.Crawl(ctx, report.Target)
	report.SetResult(result)
	if err != nil {
		return err
	}

	s.logger.Debug("crawl finished",
		"target", report.Target,
		"links", result.TotalLinks(),
		"pages_rendered", result.Stats.PagesRendered,
		"duration", result.Duration(),
	)
	return nil
}

// Store persists crawl reports. *database.CrawlDB satisfies it.
type Store interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// SaveStep records the report in the history database.
type SaveStep struct {
	store  Store
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a save step that writes to store.
func NewSaveStep(store Store, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		store:  store,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report. Reports without a crawl result are skipped. A failed
// save is logged and does not fail the crawl.
func (s *SaveStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.Result == nil {
		s.logger.Debug("nothing to save", "target", report.Target)
		return nil
	}

	id, err := s.store.SaveCrawlReport(ctx, report)
	if err != nil {
		s.logger.Warn("failed to save crawl report", "target", report.Target, "error", err)
		return nil
	}

	s.logger.Debug("crawl report saved", "target", report.Target, "id", id)
	return nil
}

// NewSpider builds the spider for target from cfg, with the overrides for
// target's host from the configuration file applied.
func NewSpider(cfg *config.Config, target string, logger *slog.Logger) (*crawler.Spider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var host string
	if u, ok := canon.Parse(target, nil); ok {
		host = u.Hostname()
	}
	site := cfg.ForSite(host)

	clientOpts := []fetch.Option{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithCookie(site.Cookie),
		fetch.WithHeaders(site.Headers),
	}
	if cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, fetch.WithProxy(cfg.ProxyAddress))
	}
	client, err := fetch.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	newRenderer := func() (render.Renderer, error) {
		return render.NewStatic(client, cfg.PageTimeout), nil
	}
	if !site.NoBrowser {
		headers := make(map[string]string, len(site.Headers)+1)
		for k, v := range site.Headers {
			headers[k] = v
		}
		if site.Cookie != "" {
			headers["Cookie"] = site.Cookie
		}
		browserOpts := []render.BrowserOption{
			render.WithPageTimeout(cfg.PageTimeout),
			render.WithSettleDelay(cfg.SettleDelay),
			render.WithUserAgent(cfg.UserAgent),
			render.WithExecPath(cfg.ChromePath),
			render.WithHeaders(headers),
			render.WithLogger(logger),
		}
		if cfg.ProxyAddress != "" {
			browserOpts = append(browserOpts, render.WithProxy(cfg.ProxyAddress))
		}
		newRenderer = func() (render.Renderer, error) {
			return render.NewBrowser(browserOpts...), nil
		}
	}

	return crawler.NewSpider(newRenderer,
		crawler.WithMaxDepth(site.Depth),
		crawler.WithSubdomains(site.IncludeSubdomains),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithFetcher(client),
		crawler.WithRobotsTimeout(cfg.RobotsTimeout),
		crawler.WithSitemapTimeout(cfg.SitemapTimeout),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
	), nil
}

// DefaultPipeline creates the standard pipeline for target: a crawl step
// and, when store is non-nil, a save step.
func DefaultPipeline(cfg *config.Config, target string, store Store, opts ...Option) (*Pipeline, error) {
	p := New(opts...)

	spider, err := NewSpider(cfg, target, p.logger)
	if err != nil {
		return nil, err
	}

	p.AddStep(NewCrawlStep(spider, WithCrawlLogger(p.logger)))
	if store != nil {
		p.AddStep(NewSaveStep(store, WithSaveLogger(p.logger)))
	}

	return p, nil
}
