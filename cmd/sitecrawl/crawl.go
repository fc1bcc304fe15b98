package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Discover the links of one or more websites",
		Long: `Crawl renders each seed URL, follows links that stay on the seed's host up to
the depth limit, and prints every link found, sorted.

robots.txt is honored and the pages listed in the site's sitemaps are added
to the result. A URL without a scheme is crawled over https.

Examples:
  # Crawl a site with the default depth of 2
  sitecrawl crawl https://example.com

  # Render only the seed page and print JSON
  sitecrawl crawl -d 0 --json example.com

  # Crawl several sites, four at a time, without Chrome
  sitecrawl crawl --no-browser -b 4 example.com example.org

  # Write a Markdown report
  sitecrawl crawl -m -o report.md https://example.com

Configuration file (.sitecrawl) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      depth: 3`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addSettingsFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent crawls")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from the crawl command's flags and arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildSettings(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// runCrawl crawls every target and writes the report. Crawls that fail are
// reported; the returned error says how many failed.
func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"depth", cfg.CrawlDepth,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var store pipeline.Store
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Debug("database opened", "path", db.Path())
	}

	factory := func(target string) (*pipeline.Pipeline, error) {
		return pipeline.DefaultPipeline(cfg, target, store, pipeline.WithLogger(logger))
	}

	var reports []*model.CrawlReport
	var crawlErr error
	batch := len(cfg.Targets) > 1 && cfg.BatchSize > 1
	if batch {
		bp := pipeline.NewBatchProcessor(factory,
			pipeline.WithConcurrency(cfg.BatchSize),
			pipeline.WithBatchLogger(logger),
		)
		if streamsReports(cfg) {
			reports, crawlErr = streamBatch(ctx, bp, cfg, stdout)
			if crawlErr != nil {
				return crawlErr
			}
			return failedCrawls(reports)
		}
		reports, crawlErr = bp.ProcessBatch(ctx, cfg.Targets)
	} else {
		reports, crawlErr = runSequential(ctx, cfg.Targets, factory)
	}

	if err := outputReports(cfg, stdout, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if crawlErr != nil {
		return crawlErr
	}
	return failedCrawls(reports)
}

// streamsReports reports whether each report is printed as soon as its crawl
// finishes. Only plain text on stdout is streamed; JSON, Markdown and report
// files are written once every crawl is done.
func streamsReports(cfg *config.Config) bool {
	return cfg.ReportFile == "" && !cfg.JSONReport && !cfg.MarkdownReport
}

// streamBatch crawls the targets concurrently and writes each report to
// stdout when its crawl finishes, then writes the batch summary. The
// returned reports are in target order.
func streamBatch(ctx context.Context, bp *pipeline.BatchProcessor, cfg *config.Config, stdout io.Writer) ([]*model.CrawlReport, error) {
	writer := report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose))
	reports := make([]*model.CrawlReport, len(cfg.Targets))

	var (
		mu       sync.Mutex
		writeErr error
	)
	crawlErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		reports[index] = r
		if writeErr == nil {
			_, writeErr = writer.Write(r)
		}
	})

	if writeErr == nil {
		_, writeErr = writer.WriteSummary(reports)
	}
	if writeErr != nil {
		return reports, fmt.Errorf("failed to write report: %w", writeErr)
	}
	return reports, crawlErr
}

// runSequential crawls targets one at a time. It stops at cancellation and
// returns the reports of the targets crawled so far.
func runSequential(ctx context.Context, targets []string, factory pipeline.Factory) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		crawlReport := model.NewCrawlReport(target)
		p, err := factory(target)
		if err != nil {
			crawlReport.SetError(err)
		} else {
			_ = p.Execute(ctx, crawlReport) // the error is recorded in the report
		}
		reports = append(reports, crawlReport)
	}
	return reports, ctx.Err()
}

// failedCrawls returns an error naming how many crawls produced no result.
func failedCrawls(reports []*model.CrawlReport) error {
	failed := 0
	for _, r := range reports {
		if r == nil || r.Result == nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d crawl(s) failed", failed, len(reports))
}

// outputReports writes the reports in the requested format to the report
// file or stdout.
func outputReports(cfg *config.Config, stdout io.Writer, reports []*model.CrawlReport) (err error) {
	if len(reports) == 0 {
		return nil
	}

	output := stdout
	if cfg.ReportFile != "" {
		var f *os.File
		f, err = createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		output = f
	}

	writer := newWriter(cfg, output)
	if len(reports) == 1 {
		_, err = writer.Write(reports[0])
		return err
	}
	_, err = writer.WriteBatch(reports)
	return err
}

// newWriter returns the report writer selected by cfg.
func newWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		opts := []report.JSONWriterOption{report.WithPrettyPrint()}
		if cfg.Verbose {
			opts = append(opts, report.WithDetails())
		}
		return report.NewJSONWriter(output, opts...)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates path and its parent directories. The file is
// only readable by the owner because reports may carry private URLs.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
