// Package schedule drives the recurring price checks: fan the tracked
// URLs out over a worker pool, store what came back, and hand detected
// drops to the event pipeline and notifiers.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/queue"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/ratelimit"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/scraper"
)

const defaultWorkers = 3

// Scraper fetches one product page and extracts its record.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ProductRecord, error)
}

// Store persists check results and tracks per-product health.
type Store interface {
	GetTrackedURLs(ctx context.Context) ([]string, error)
	SaveRecord(ctx context.Context, rec *models.ProductRecord) error
	MarkScrapeFailure(ctx context.Context, url string) (int, string, error)
}

// Analyzer inspects a product's stored history for a price drop.
type Analyzer interface {
	AnalyzeProduct(ctx context.Context, url string) (*models.PriceAlert, error)
}

// AlertPublisher records a detected drop for asynchronous delivery.
type AlertPublisher interface {
	PublishPriceDrop(ctx context.Context, alert *models.PriceAlert) error
}

// AlertDispatcher sends a batch of alerts to the configured notifiers.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alerts []*models.PriceAlert)
}

// Stats summarizes one full check run.
type Stats struct {
	Checked  int
	Failed   int
	Alerts   int
	Duration time.Duration
}

// CheckerConfig carries the tunables for a check run.
type CheckerConfig struct {
	Workers      int
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

// Checker runs price checks over the tracked products. Analyzer,
// publisher and notifier are optional; a nil collaborator simply
// skips that stage.
type Checker struct {
	scraper   Scraper
	store     Store
	analyzer  Analyzer
	publisher AlertPublisher
	notifier  AlertDispatcher
	limiter   *ratelimit.AdaptiveRateLimiter
	workers   int
	logger    *slog.Logger
}

func NewChecker(scr Scraper, store Store, analyzer Analyzer, publisher AlertPublisher, notifier AlertDispatcher, logger *slog.Logger, cfg CheckerConfig) *Checker {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Checker{
		scraper:   scr,
		store:     store,
		analyzer:  analyzer,
		publisher: publisher,
		notifier:  notifier,
		limiter:   ratelimit.NewAdaptiveRateLimiter(cfg.RateLimitMin, cfg.RateLimitMax),
		workers:   workers,
		logger:    logger.With("component", "checker"),
	}
}

// CheckAll checks every actively tracked product once. URLs are drained
// from a shared queue by a small worker pool so one slow store does not
// stall the whole run. Alerts are dispatched in a single batch at the
// end.
func (c *Checker) CheckAll(ctx context.Context) (*Stats, error) {
	start := time.Now()

	urls, err := c.store.GetTrackedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked products: %w", err)
	}

	stats := &Stats{}
	if len(urls) == 0 {
		c.logger.Info("no tracked products, nothing to check")
		stats.Duration = time.Since(start)
		return stats, nil
	}

	c.logger.Info("check run started", "products", len(urls), "workers", c.workers)

	tasks := queue.NewInMemoryQueue()
	for _, url := range urls {
		if err := tasks.Push(&queue.Task{URL: url}); err != nil {
			return nil, fmt.Errorf("failed to enqueue %s: %w", url, err)
		}
	}
	tasks.Close()

	var (
		mu     sync.Mutex
		alerts []*models.PriceAlert
		wg     sync.WaitGroup
	)

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := tasks.Pop(ctx)
				if err != nil {
					// Queue drained or context gone.
					return
				}
				if err := c.limiter.Wait(ctx); err != nil {
					return
				}

				alert, err := c.CheckOne(ctx, task.URL)

				mu.Lock()
				stats.Checked++
				if err != nil {
					stats.Failed++
				}
				if alert != nil {
					alerts = append(alerts, alert)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stats.Alerts = len(alerts)
	stats.Duration = time.Since(start)

	if len(alerts) > 0 && c.notifier != nil {
		c.notifier.Dispatch(ctx, alerts)
	}

	c.logger.Info("check run finished",
		"checked", stats.Checked,
		"failed", stats.Failed,
		"alerts", stats.Alerts,
		"duration", stats.Duration)

	return stats, ctx.Err()
}

// CheckOne scrapes a single product and stores the result. A scrape
// failure bumps the product's failure count; a success resets it via
// the upsert. The returned alert is non-nil only when the analyzer
// found a drop worth reporting.
func (c *Checker) CheckOne(ctx context.Context, url string) (*models.PriceAlert, error) {
	rec, err := c.scraper.Scrape(ctx, url)
	if err != nil {
		c.noteFailure(ctx, url, err)
		return nil, err
	}
	c.limiter.RecordSuccess()

	if err := c.store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save record for %s: %w", url, err)
	}

	if c.analyzer == nil {
		return nil, nil
	}

	alert, err := c.analyzer.AnalyzeProduct(ctx, url)
	if err != nil {
		// The price is already stored; a broken analysis should not
		// fail the check.
		c.logger.Warn("analysis failed", "url", url, "error", err)
		return nil, nil
	}
	if alert == nil {
		return nil, nil
	}

	if c.publisher != nil {
		if err := c.publisher.PublishPriceDrop(ctx, alert); err != nil {
			c.logger.Error("failed to publish price drop event", "url", url, "error", err)
		}
	}

	return alert, nil
}

func (c *Checker) noteFailure(ctx context.Context, url string, err error) {
	kind := errorKind(err)

	// Fetch and challenge failures hint at throttling, so feed them
	// back into the rate limiter.
	switch kind {
	case "fetch", "challenge":
		c.limiter.RecordError()
	}

	count, status, markErr := c.store.MarkScrapeFailure(ctx, url)
	if markErr != nil {
		c.logger.Error("scrape failed", "url", url, "kind", kind, "error", err)
		c.logger.Warn("could not record scrape failure", "url", url, "error", markErr)
		return
	}

	if status == models.StatusFailing {
		c.logger.Error("scrape failed, product marked failing",
			"url", url, "kind", kind, "failure_count", count, "error", err)
		return
	}
	c.logger.Warn("scrape failed",
		"url", url, "kind", kind, "failure_count", count, "status", status, "error", err)
}

// errorKind labels a scrape error for logs.
func errorKind(err error) string {
	var (
		invalidErr    *scraper.InvalidInputError
		challengeErr  *scraper.ChallengeError
		fetchErr      *scraper.FetchError
		extractionErr *scraper.ExtractionError
		validationErr *models.ValidationError
	)

	switch {
	case errors.As(err, &invalidErr):
		return "invalid_input"
	case errors.As(err, &challengeErr):
		return "challenge"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &extractionErr):
		return "extraction"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return "unknown"
	}
}
