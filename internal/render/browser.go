package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Browser renders pages in headless Chrome.
type Browser struct {
	pageTimeout time.Duration
	settleDelay time.Duration
	userAgent   string
	execPath    string
	proxy       string
	headers     map[string]any
	headless    bool
	logger      *slog.Logger

	mu            sync.Mutex
	closed        bool
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithPageTimeout sets the navigation timeout.
func WithPageTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) {
		if d > 0 {
			b.pageTimeout = d
		}
	}
}

// WithSettleDelay sets the pause between navigation and capture.
func WithSettleDelay(d time.Duration) BrowserOption {
	return func(b *Browser) {
		if d >= 0 {
			b.settleDelay = d
		}
	}
}

// WithUserAgent overrides the browser's User-Agent.
func WithUserAgent(ua string) BrowserOption {
	return func(b *Browser) {
		b.userAgent = ua
	}
}

// WithExecPath sets the Chrome executable. Empty means auto-detect.
func WithExecPath(path string) BrowserOption {
	return func(b *Browser) {
		b.execPath = path
	}
}

// WithProxy routes browser traffic through the SOCKS5 proxy at address
// ("host:port").
func WithProxy(address string) BrowserOption {
	return func(b *Browser) {
		b.proxy = address
	}
}

// WithHeaders adds extra headers to every request the browser makes.
// A "Cookie" entry sends cookies.
func WithHeaders(headers map[string]string) BrowserOption {
	return func(b *Browser) {
		if len(headers) == 0 {
			return
		}
		b.headers = make(map[string]any, len(headers))
		for k, v := range headers {
			b.headers[k] = v
		}
	}
}

// WithHeadless toggles headless mode. Headless is the default.
func WithHeadless(headless bool) BrowserOption {
	return func(b *Browser) {
		b.headless = headless
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BrowserOption {
	return func(b *Browser) {
		b.logger = logger
	}
}

// NewBrowser returns a Browser. Chrome is not started until the first Render.
func NewBrowser(opts ...BrowserOption) *Browser {
	b := &Browser{
		pageTimeout: DefaultPageTimeout,
		settleDelay: DefaultSettleDelay,
		headless:    true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// launch starts Chrome if it is not running yet and returns the browser
// context. Calling it again returns the same context.
func (b *Browser) launch() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
	)
	if b.userAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(b.userAgent))
	}
	if b.execPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(b.execPath))
	}
	if b.proxy != "" {
		execOpts = append(execOpts, chromedp.ProxyServer("socks5://"+b.proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run allocates the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.allocCancel = allocCancel
	b.logger.Debug("browser launched", "headless", b.headless)

	return browserCtx, nil
}

// Render opens pageURL in a new tab and returns the document once the settle
// delay has passed.
func (b *Browser) Render(ctx context.Context, pageURL string) (*Page, error) {
	browserCtx, err := b.launch()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if len(b.headers) > 0 {
		err := chromedp.Run(tabCtx,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers(b.headers)),
		)
		if err != nil {
			return nil, fmt.Errorf("set headers: %w", err)
		}
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, b.pageTimeout)
	err = chromedp.Run(navCtx, chromedp.Navigate(pageURL))
	navCancel()
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	var html, location string
	captureCtx, captureCancel := context.WithTimeout(tabCtx, b.settleDelay+b.pageTimeout)
	defer captureCancel()
	err = chromedp.Run(captureCtx,
		chromedp.Sleep(b.settleDelay),
		chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", pageURL, err)
	}

	if location == "" {
		location = pageURL
	}
	return &Page{URL: pageURL, FinalURL: location, HTML: html}, nil
}

// Close shuts the browser down. It is safe to call more than once and before
// the browser was ever launched.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.closed = true
		if b.browserCancel != nil {
			b.browserCancel()
			b.allocCancel()
			b.logger.Debug("browser closed")
		}
	})
	return nil
}
