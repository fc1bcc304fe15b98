package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve crawls over HTTP",
		Long: `Serve starts an HTTP server that crawls on request.

Endpoints:
  GET  /health   liveness probe, returns {"status":"ok"}
  POST /crawl    body {"url": "https://example.com"}, returns the links found

The crawl settings flags apply to every request. Logs are written to stderr
as JSON.

Examples:
  # Listen on the default address
  sitecrawl serve

  # Crawl without Chrome and bound each request to two minutes
  sitecrawl serve --addr 127.0.0.1:9000 --no-browser --crawl-timeout 2m`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addSettingsFlags(cmd)

	cmd.Flags().String("addr", config.DefaultListenAddr,
		"Address to listen on")
	cmd.Flags().Duration("crawl-timeout", 0,
		"Upper bound for a single crawl request (0 means no limit)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildSettings(cmd)
	if err != nil {
		return err
	}
	if cfg.ListenAddr, err = cmd.Flags().GetString("addr"); err != nil {
		return err
	}
	crawlTimeout, err := cmd.Flags().GetDuration("crawl-timeout")
	if err != nil {
		return err
	}

	if err := cfg.ValidateSettings(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if crawlTimeout < 0 {
		return fmt.Errorf("configuration error: %w", config.ErrInvalidTimeout)
	}

	logger := log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)

	var store pipeline.Store
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
	}

	factory := func(target string) (*pipeline.Pipeline, error) {
		return pipeline.DefaultPipeline(cfg, target, store, pipeline.WithLogger(logger))
	}

	opts := []server.Option{server.WithLogger(logger)}
	if crawlTimeout > 0 {
		opts = append(opts, server.WithCrawlTimeout(crawlTimeout))
	}

	logger.Info("starting server",
		"addr", cfg.ListenAddr,
		"depth", cfg.CrawlDepth,
		"browser", !cfg.NoBrowser,
		"crawlTimeout", crawlTimeout.Round(time.Second).String(),
	)
	return server.New(factory, opts...).ListenAndServe(cmd.Context(), cfg.ListenAddr)
}
