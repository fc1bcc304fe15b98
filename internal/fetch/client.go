package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout applies when Get is called with a non-positive timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize caps decoded response bodies.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// maxRedirects stops redirect chains before they loop forever.
	maxRedirects = 10
)

// Response is the result of a successful GET.
type Response struct {
	// StatusCode is the final HTTP status code.
	StatusCode int

	// Body is the decoded response body.
	Body []byte

	// ContentType is the Content-Type header value.
	ContentType string

	// FinalURL is the URL after following redirects.
	FinalURL string
}

// Client performs HTTP GET requests on behalf of the crawler.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	userAgent    string
	maxBodySize  int64
	proxyAddress string
	cookie       string
	headers      map[string]string
	transport    http.RoundTripper
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum decoded body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithProxy routes every request through the SOCKS5 proxy at address
// ("host:port").
func WithProxy(address string) Option {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithCookie adds a raw cookie string ("name=value; other=value") to every
// request.
func WithCookie(cookie string) Option {
	return func(o *clientOptions) {
		o.cookie = cookie
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithTransport replaces the base transport. Intended for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// NewClient creates a Client. It returns ErrInvalidProxyAddress if a proxy
// was requested with a malformed address.
func NewClient(opts ...Option) (*Client, error) {
	o := clientOptions{
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		base := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       30 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			// Bodies are decoded by readBody so brotli is handled too.
			DisableCompression: true,
		}

		if o.proxyAddress != "" {
			if !isValidProxyAddress(o.proxyAddress) {
				return nil, ErrInvalidProxyAddress
			}
			dialer, err := proxy.SOCKS5("tcp", o.proxyAddress, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			base.Proxy = nil
			base.DialContext = dialContext(dialer)
		}
		transport = base
	}

	if o.cookie != "" || len(o.headers) > 0 {
		transport = &headerInjectingTransport{
			base:    transport,
			cookie:  o.cookie,
			headers: o.headers,
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   o.userAgent,
		maxBodySize: o.maxBodySize,
	}, nil
}

// Get fetches rawURL with the given timeout. A non-2xx status returns the
// response together with an error wrapping ErrStatus.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	result := &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("fetch %s: %w: %s", rawURL, ErrStatus, strconv.Itoa(resp.StatusCode))
	}
	return result, nil
}

// readBody decodes the response according to Content-Encoding and enforces
// the size limit. It always closes resp.Body.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, c.maxBodySize)
	}
	return body, nil
}

// dialContext adapts a proxy.Dialer to the DialContext signature, using the
// context-aware path when the dialer supports it.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// isValidProxyAddress checks for a "host:port" address with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport adds a configured cookie and headers to every
// request, including those issued while following redirects.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
