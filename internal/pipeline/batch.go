package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultConcurrency is the number of concurrent crawls when
// WithConcurrency is not given.
const DefaultConcurrency = 4

// Factory builds the pipeline for one seed. Building per seed lets per-site
// configuration apply and keeps state from leaking between crawls.
type Factory func(target string) (*Pipeline, error)

// BatchProcessor crawls several seeds concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit.
type BatchProcessor struct {
	// factory creates a new pipeline for each seed.
	factory Factory

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every target and returns one report per target, in
// the order of targets. Failed crawls are reported, not returned as errors.
// The error is non-nil only when ctx was cancelled; targets that never
// started then carry the cancellation error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.CrawlReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*model.CrawlReport, len(targets))

	err := bp.run(ctx, targets, func(report *model.CrawlReport, index int) {
		results[index] = report
	})

	elapsed := time.Since(startTime)
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", elapsed,
	)

	return results, err
}

// ProcessBatchWithCallback crawls every target and calls callback for each
// finished report with the target's index. The callback is called from the
// goroutine that ran the crawl, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	return bp.run(ctx, targets, callback)
}

// run crawls targets with bounded concurrency and hands every report to
// done, including reports for targets skipped because ctx ended.
func (bp *BatchProcessor) run(ctx context.Context, targets []string, done func(*model.CrawlReport, int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			report := model.NewCrawlReport(target)

			if err := gctx.Err(); err != nil {
				report.SetError(err)
				done(report, i)
				return err
			}

			bp.logger.Info("crawling target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			p, err := bp.factory(target)
			if err != nil {
				report.SetError(err)
				done(report, i)
				bp.logger.Warn("crawl setup failed", "target", target, "error", err)
				return nil
			}

			if err := p.Execute(gctx, report); err != nil {
				bp.logger.Warn("crawl failed",
					"target", target,
					"error", err,
				)
			} else {
				bp.logger.Info("crawl completed",
					"target", target,
					"links", report.TotalLinks(),
				)
			}

			done(report, i)

			// Only cancellation stops the batch; other failures stay in the report.
			return ctx.Err()
		})
	}

	return g.Wait()
}
