package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/report"
)

// writeConfigFile writes a configuration file into a temporary directory so
// tests never pick up a .sitecrawl from the working or home directory.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".sitecrawl")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// parseCrawlCmd returns a crawl command with args parsed as its flags.
func parseCrawlCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

// notifyingBuffer is a concurrency-safe buffer that closes written after the
// first write.
type notifyingBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	written chan struct{}
	once    sync.Once
}

func (b *notifyingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.once.Do(func() { close(b.written) })
	return b.buf.Write(p)
}

func (b *notifyingBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestSite serves a three-page site with a robots.txt that blocks
// /private.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><body>
				<a href="/about">About</a>
				<a href="/private/notes">Notes</a>
				<a href="mailto:team@example.com">Mail</a>
			</body></html>`))
		case "/about":
			_, _ = w.Write([]byte(`<html><body><a href="/team/">Team</a><a href="/">Home</a></body></html>`))
		case "/team":
			_, _ = w.Write([]byte(`<html><body><a href="/jobs">Jobs</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	if cmd.Use != "crawl [url...]" {
		t.Errorf("expected use 'crawl [url...]', got %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "depth", shorthand: "d", defValue: "2"},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "batch", shorthand: "b", defValue: "4"},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "no-browser", defValue: "false"},
		{name: "include-subdomains", defValue: "false"},
		{name: "settle", defValue: "1s"},
		{name: "page-timeout", defValue: "30s"},
		{name: "robots-timeout", defValue: "5s"},
		{name: "sitemap-timeout", defValue: "10s"},
		{name: "delay", defValue: "0s"},
		{name: "no-save", defValue: "false"},
		{name: "db-dir", defValue: ""},
		{name: "proxy", defValue: ""},
		{name: "user-agent", defValue: config.DefaultUserAgent},
		{name: "chrome-path", defValue: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, "defaults:\n  depth: 3\n")
		cmd := parseCrawlCmd(t, "-c", configPath)

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.CrawlDepth != config.DefaultCrawlDepth {
			t.Errorf("CrawlDepth = %d, want %d", cfg.CrawlDepth, config.DefaultCrawlDepth)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to default to true")
		}
		if cfg.DBDir != config.XDGDataDir() {
			t.Errorf("DBDir = %q, want %q", cfg.DBDir, config.XDGDataDir())
		}
		if !slices.Equal(cfg.Targets, []string{"example.com"}) {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if cfg.SiteConfigs == nil {
			t.Fatal("expected the config file to be loaded")
		}
		if got := cfg.ForSite("example.com").Depth; got != 3 {
			t.Errorf("ForSite().Depth = %d, want 3", got)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, "sites: {}\n")
		dbDir := t.TempDir()
		cmd := parseCrawlCmd(t,
			"-c", configPath,
			"-d", "0",
			"-b", "2",
			"-j",
			"-o", "out/report.json",
			"--no-browser",
			"--include-subdomains",
			"--proxy", "127.0.0.1:9050",
			"--user-agent", "testbot/1.0",
			"--settle", "250ms",
			"--page-timeout", "3s",
			"--delay", "100ms",
			"--no-save",
			"--db-dir", dbDir,
		)

		cfg, err := buildConfig(cmd, []string{"a.example", "b.example"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.CrawlDepth != 0 || cfg.BatchSize != 2 {
			t.Errorf("CrawlDepth = %d, BatchSize = %d", cfg.CrawlDepth, cfg.BatchSize)
		}
		if !cfg.JSONReport || cfg.MarkdownReport {
			t.Errorf("JSONReport = %v, MarkdownReport = %v", cfg.JSONReport, cfg.MarkdownReport)
		}
		if cfg.ReportFile != "out/report.json" {
			t.Errorf("ReportFile = %q", cfg.ReportFile)
		}
		if !cfg.NoBrowser || !cfg.IncludeSubdomains {
			t.Errorf("NoBrowser = %v, IncludeSubdomains = %v", cfg.NoBrowser, cfg.IncludeSubdomains)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" || cfg.UserAgent != "testbot/1.0" {
			t.Errorf("ProxyAddress = %q, UserAgent = %q", cfg.ProxyAddress, cfg.UserAgent)
		}
		if cfg.SettleDelay != 250*time.Millisecond || cfg.PageTimeout != 3*time.Second || cfg.CrawlDelay != 100*time.Millisecond {
			t.Errorf("SettleDelay = %v, PageTimeout = %v, CrawlDelay = %v", cfg.SettleDelay, cfg.PageTimeout, cfg.CrawlDelay)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-save to disable the database")
		}
		if cfg.DBDir != dbDir {
			t.Errorf("DBDir = %q, want %q", cfg.DBDir, dbDir)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := parseCrawlCmd(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := buildConfig(cmd, []string{"example.com"}); err == nil {
			t.Error("expected error for a missing config file")
		}
	})
}

func TestRunCrawlCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no target", args: []string{"crawl"}},
		{name: "negative depth", args: []string{"crawl", "--depth=-1", "example.com"}},
		{name: "conflicting formats", args: []string{"crawl", "-j", "-m", "example.com"}},
		{name: "zero batch", args: []string{"crawl", "-b", "0", "example.com"}},
		{name: "invalid proxy", args: []string{"crawl", "--proxy", "localhost", "example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			configPath := writeConfigFile(t, "sites: {}\n")
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(append(tt.args, "-c", configPath, "--db-dir", t.TempDir()))

			err := root.Execute()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "configuration error") {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("json output and history", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()
		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "-d", "1", "-j", "--db-dir", dbDir)

		cfg, err := buildConfig(cmd, []string{site.URL})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		var out bytes.Buffer
		if err := runCrawl(context.Background(), cfg, &out, logger); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}

		var resp report.CrawlResponse
		if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse output %q: %v", out.String(), err)
		}
		if !resp.Success {
			t.Errorf("expected success, got error %q", resp.Error)
		}

		// /jobs is beyond depth 1 and /private is disallowed; both are
		// still reported.
		want := []string{
			site.URL + "/",
			site.URL + "/about",
			site.URL + "/private/notes",
			site.URL + "/team",
		}
		if !slices.Equal(resp.Links, want) {
			t.Errorf("Links = %v, want %v", resp.Links, want)
		}
		if resp.TotalLinks != len(want) {
			t.Errorf("TotalLinks = %d, want %d", resp.TotalLinks, len(want))
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		sites, err := db.ListCrawledSites(context.Background())
		if err != nil {
			t.Fatalf("ListCrawledSites() error = %v", err)
		}
		if len(sites) != 1 || sites[0] != "127.0.0.1" {
			t.Errorf("ListCrawledSites() = %v", sites)
		}
	})

	t.Run("batch writes one report per seed", func(t *testing.T) {
		t.Parallel()

		first := newTestSite(t)
		second := newTestSite(t)
		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "-d", "0", "-b", "2", "--no-save")

		cfg, err := buildConfig(cmd, []string{first.URL, second.URL})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		var out bytes.Buffer
		if err := runCrawl(context.Background(), cfg, &out, logger); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}

		output := out.String()
		for _, want := range []string{first.URL + "/about", second.URL + "/about", "Crawled 2 of 2 seed(s) successfully"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got %q", want, output)
			}
		}
	})

	t.Run("batch prints each report when its crawl finishes", func(t *testing.T) {
		t.Parallel()

		out := &notifyingBuffer{written: make(chan struct{})}
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			select {
			case <-out.written:
			case <-time.After(5 * time.Second):
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><body><a href="/slow">Slow</a></body></html>`))
		}))
		t.Cleanup(slow.Close)
		fast := newTestSite(t)

		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "-d", "0", "-b", "2", "--no-save")
		cfg, err := buildConfig(cmd, []string{slow.URL, fast.URL})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if err := runCrawl(context.Background(), cfg, out, logger); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}

		output := out.String()
		fastAt := strings.Index(output, "Seed:       "+fast.URL+"\n")
		slowAt := strings.Index(output, "Seed:       "+slow.URL+"\n")
		if fastAt < 0 || slowAt < 0 {
			t.Fatalf("expected both reports, got %q", output)
		}
		if fastAt > slowAt {
			t.Errorf("expected the fast seed to be printed first, got %q", output)
		}
		summaryAt := strings.Index(output, "Crawled 2 of 2 seed(s) successfully")
		if summaryAt < slowAt || !strings.HasSuffix(output, "link(s) in total.\n") {
			t.Errorf("expected the summary last, got %q", output)
		}
	})

	t.Run("failed crawl is reported", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "--no-save", "-j")

		cfg, err := buildConfig(cmd, []string{"ftp://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		var out bytes.Buffer
		err = runCrawl(context.Background(), cfg, &out, logger)
		if err == nil || !strings.Contains(err.Error(), "1 of 1 crawl(s) failed") {
			t.Errorf("runCrawl() error = %v, want failure count", err)
		}

		var resp report.CrawlResponse
		if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse output %q: %v", out.String(), err)
		}
		if resp.Success || resp.Error == "" {
			t.Errorf("expected failed response with error, got %+v", resp)
		}
	})

	t.Run("writes markdown to a file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		reportPath := filepath.Join(t.TempDir(), "reports", "crawl.md")
		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "-d", "0", "-m", "-o", reportPath, "--no-save")

		cfg, err := buildConfig(cmd, []string{site.URL})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		var out bytes.Buffer
		if err := runCrawl(context.Background(), cfg, &out, logger); err != nil {
			t.Fatalf("runCrawl() error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", out.String())
		}

		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(content), "# ") || !strings.Contains(string(content), site.URL+"/about") {
			t.Errorf("unexpected markdown report: %q", content)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, "sites: {}\n")
		cmd := parseCrawlCmd(t, "-c", configPath, "--no-browser", "--no-save")

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := runCrawl(ctx, cfg, io.Discard, logger); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
