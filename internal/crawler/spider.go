package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/sitecrawl/internal/canon"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/render"
	"github.com/nao1215/sitecrawl/internal/robots"
)

// ErrInvalidSeed is returned by Crawl when the seed cannot be
// canonicalized. It is the only error that aborts a crawl before it starts.
var ErrInvalidSeed = canon.ErrInvalidSeed

// DefaultMaxDepth is the crawl depth used when none is configured.
const DefaultMaxDepth = 2

// RendererFactory creates the Renderer for one crawl. The Spider closes the
// renderer when the crawl returns.
type RendererFactory func() (render.Renderer, error)

// Spider discovers the links of a single site.
//
// A Spider holds configuration only. Every call to Crawl owns its own
// visited and result sets, so one Spider may run several crawls at once.
type Spider struct {
	// newRenderer creates a renderer per crawl.
	newRenderer RendererFactory

	// fetcher is used for robots.txt and sitemaps. Nil disables discovery.
	fetcher robots.Fetcher

	// maxDepth limits how far from the seed pages are rendered.
	// 0 means only the seed page is rendered.
	maxDepth int

	// includeSubdomains widens the scope to the seed's registrable domain.
	includeSubdomains bool

	// userAgent is the token matched against robots.txt groups.
	userAgent string

	// robotsTimeout and sitemapTimeout bound the discovery requests.
	robotsTimeout  time.Duration
	sitemapTimeout time.Duration

	// delay is the pause between two renders.
	delay time.Duration

	// ignorePatterns are URL path patterns whose pages are not rendered.
	ignorePatterns []string

	// followPatterns, when set, restrict rendering to matching paths.
	followPatterns []string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seed page, 1 = the seed page plus the pages it links to, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithSubdomains includes every host under the seed's registrable domain.
func WithSubdomains(include bool) SpiderOption {
	return func(s *Spider) {
		s.includeSubdomains = include
	}
}

// WithUserAgent sets the user agent used to select robots.txt rules.
func WithUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithFetcher sets the HTTP client used for robots.txt and sitemaps.
func WithFetcher(f robots.Fetcher) SpiderOption {
	return func(s *Spider) {
		s.fetcher = f
	}
}

// WithRobotsTimeout sets the robots.txt request timeout.
func WithRobotsTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.robotsTimeout = d
	}
}

// WithSitemapTimeout sets the per-sitemap request timeout.
func WithSitemapTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.sitemapTimeout = d
	}
}

// WithDelay sets the delay between renders.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns whose pages are not rendered.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// Matching URLs are still reported when linked.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts rendering to URL paths matching at least one
// pattern. Empty means all paths are rendered (subject to ignore patterns).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that renders pages with renderers produced by
// newRenderer.
func NewSpider(newRenderer RendererFactory, opts ...SpiderOption) *Spider {
	s := &Spider{
		newRenderer:    newRenderer,
		maxDepth:       DefaultMaxDepth,
		robotsTimeout:  robots.DefaultRobotsTimeout,
		sitemapTimeout: robots.DefaultSitemapTimeout,
		userAgent:      "*",
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// crawlState is owned by a single Crawl call.
type crawlState struct {
	mu sync.Mutex

	// visited holds every URL whose visit passed all checks.
	visited map[string]struct{}

	// visitOrder lists visited in the order pages were entered.
	visitOrder []string

	// results is the set of discovered links.
	results map[string]struct{}

	// blocked and skipped hold URLs kept out by robots.txt and patterns.
	blocked map[string]struct{}
	skipped map[string]struct{}

	stats model.CrawlStats
}

func newCrawlState() *crawlState {
	return &crawlState{
		visited: make(map[string]struct{}),
		results: make(map[string]struct{}),
		blocked: make(map[string]struct{}),
		skipped: make(map[string]struct{}),
	}
}

// isVisited checks if a URL has been visited.
func (st *crawlState) isVisited(u string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.visited[u]
	return ok
}

// markVisited inserts u into the visited set. It returns false when u was
// already present.
func (st *crawlState) markVisited(u string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.visited[u]; ok {
		return false
	}
	st.visited[u] = struct{}{}
	st.visitOrder = append(st.visitOrder, u)
	return true
}

// addResult adds u to the result set.
func (st *crawlState) addResult(u string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.results[u] = struct{}{}
}

func (st *crawlState) markBlocked(u string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.blocked[u]; !ok {
		st.blocked[u] = struct{}{}
		st.stats.RobotsBlocked++
	}
}

func (st *crawlState) markSkipped(u string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.skipped[u]; !ok {
		st.skipped[u] = struct{}{}
		st.stats.Skipped++
	}
}

func (st *crawlState) count(f func(*model.CrawlStats)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f(&st.stats)
}

// snapshot returns the state as a CrawlResult with sorted links.
func (st *crawlState) snapshot() *model.CrawlResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	links := make([]string, 0, len(st.results))
	for u := range st.results {
		links = append(links, u)
	}
	slices.Sort(links)

	return &model.CrawlResult{
		Links:   links,
		Visited: slices.Clone(st.visitOrder),
		Stats:   st.stats,
	}
}

// crawl bundles what one traversal needs.
type crawl struct {
	scope    canon.Scope
	policy   *robots.Policy
	renderer render.Renderer
	state    *crawlState
	rendered int
}

// frame is one page on the traversal stack: its in-scope links and the
// index of the next link to process.
type frame struct {
	links []string
	next  int
	depth int
}

// Crawl discovers the links of the site rooted at seed.
//
// It returns ErrInvalidSeed when seed cannot be canonicalized. Pages that
// fail to render are logged and treated as leaves. When ctx is cancelled the
// links found so far are returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlResult, error) {
	startedAt := time.Now()

	scope, err := canon.NewScope(seed, s.maxDepth, canon.WithSubdomains(s.includeSubdomains))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	renderer, err := s.newRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			s.logger.Warn("failed to close renderer", "error", err)
		}
	}()

	c := &crawl{
		scope:    scope,
		renderer: renderer,
		state:    newCrawlState(),
	}

	s.logger.Info("crawl started",
		"seed", scope.Seed.String(),
		"max_depth", scope.MaxDepth,
		"include_subdomains", scope.IncludeSubdomains,
	)

	c.policy = s.discover(ctx, c)
	crawlErr := s.traverse(ctx, c)

	result := c.state.snapshot()
	result.Seed = scope.Seed.String()
	result.MaxDepth = scope.MaxDepth
	result.StartedAt = startedAt
	result.FinishedAt = time.Now()

	s.logger.Info("crawl finished",
		"seed", result.Seed,
		"links", len(result.Links),
		"visited", len(result.Visited),
		"duration", result.Duration(),
	)

	return result, crawlErr
}

// discover reads robots.txt and the sitemaps it lists. Sitemap entries go
// straight into the result set; they are neither rendered nor expanded.
func (s *Spider) discover(ctx context.Context, c *crawl) *robots.Policy {
	if s.fetcher == nil {
		return robots.EmptyPolicy()
	}

	discoverer := robots.NewDiscoverer(s.fetcher, s.userAgent,
		robots.WithRobotsTimeout(s.robotsTimeout),
		robots.WithDiscovererLogger(s.logger),
	)
	ingester := robots.NewIngester(s.fetcher,
		robots.WithSitemapTimeout(s.sitemapTimeout),
		robots.WithIngesterLogger(s.logger),
	)

	policy := discoverer.Discover(ctx, c.scope)
	c.state.count(func(st *model.CrawlStats) { st.SitemapsFound = len(policy.Sitemaps) })

	for _, sitemap := range policy.Sitemaps {
		if ctx.Err() != nil {
			break
		}
		links := ingester.Ingest(ctx, sitemap, c.scope)
		for _, link := range links {
			c.state.addResult(link)
		}
		c.state.count(func(st *model.CrawlStats) { st.SitemapLinks += len(links) })
	}

	return policy
}

// traverse walks the site depth-first from the seed. The explicit stack of
// frames visits pages in the same order as a recursive walk and never holds
// more than MaxDepth+1 frames. The seed joins the result before the
// robots.txt check, so a blocked seed is reported with nothing visited.
func (s *Spider) traverse(ctx context.Context, c *crawl) error {
	seed := c.scope.Seed.String()
	c.state.addResult(seed)

	links, entered := s.visit(ctx, c, seed, 0)
	if !entered {
		return ctx.Err()
	}
	stack := []*frame{{links: links, depth: 0}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.links) {
			stack = stack[:len(stack)-1]
			continue
		}
		link := top.links[top.next]
		top.next++

		c.state.addResult(link)
		if top.depth >= c.scope.MaxDepth {
			continue
		}

		children, entered := s.visit(ctx, c, link, top.depth+1)
		if entered && len(children) > 0 {
			stack = append(stack, &frame{links: children, depth: top.depth + 1})
		}
	}

	return ctx.Err()
}

// visit renders pageURL and returns its in-scope links. entered is false
// when the page was filtered out before rendering.
func (s *Spider) visit(ctx context.Context, c *crawl, pageURL string, depth int) (links []string, entered bool) {
	if depth > c.scope.MaxDepth || !c.scope.Contains(pageURL) {
		return nil, false
	}
	if c.state.isVisited(pageURL) {
		return nil, false
	}
	if !c.policy.Allowed(pageURL) {
		s.logger.Debug("disallowed by robots.txt", "url", pageURL)
		c.state.markBlocked(pageURL)
		return nil, false
	}
	if !s.shouldCrawl(pageURL) {
		c.state.markSkipped(pageURL)
		return nil, false
	}
	if !c.state.markVisited(pageURL) {
		return nil, false
	}
	c.state.addResult(pageURL)

	if err := s.pause(ctx, c); err != nil {
		return nil, true
	}

	s.logger.Debug("rendering page", "url", pageURL, "depth", depth)
	page, err := c.renderer.Render(ctx, pageURL)
	c.rendered++
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to render page", "url", pageURL, "error", err)
			c.state.count(func(st *model.CrawlStats) { st.RenderErrors++ })
		}
		return nil, true
	}
	c.state.count(func(st *model.CrawlStats) { st.PagesRendered++ })

	base := c.scope.Seed
	if u, ok := canon.Parse(pageURL, nil); ok {
		base = u
	}
	if final, ok := canon.Parse(page.FinalURL, nil); ok && final.String() != pageURL {
		if c.scope.ContainsURL(final) {
			s.logger.Debug("page redirected", "url", pageURL, "final_url", final.String())
			c.state.addResult(final.String())
			base = final
		} else {
			s.logger.Debug("page redirected out of scope", "url", pageURL, "final_url", final.String())
		}
	}

	doc, err := ParseDocument(strings.NewReader(page.HTML))
	if err != nil {
		s.logger.Warn("failed to parse page", "url", pageURL, "error", err)
		return nil, true
	}
	s.logger.Debug("page rendered", "url", pageURL, "title", pageTitle(doc))

	for link := range Extract(doc, base) {
		if c.scope.Contains(link) {
			links = append(links, link)
		}
	}
	return links, true
}

// pause waits for the configured delay before every render but the first.
func (s *Spider) pause(ctx context.Context, c *crawl) error {
	if s.delay <= 0 || c.rendered == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldCrawl checks if a URL should be rendered based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 && len(s.followPatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
