package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// PageFetcher retrieves the raw markup for a product URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Service runs the scrape pipeline for one URL: resolve the strategy,
// fetch the page, extract raw fields, validate them into a
// ProductRecord. A single scrape is fully sequential; concurrent calls
// are safe because the registry is read-only and the fetcher keeps no
// per-URL state.
type Service struct {
	fetcher  PageFetcher
	registry *Registry
	logger   *slog.Logger
}

func NewService(fetcher PageFetcher, registry *Registry, logger *slog.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		registry: registry,
		logger:   logger.With("component", "scraper"),
	}
}

// Scrape produces one validated ProductRecord for a product URL, or a
// typed error: InvalidInputError, FetchError, ChallengeError,
// ExtractionError, or models.ValidationError. Extraction and
// validation failures are terminal for the attempt; only the fetch
// retries internally.
func (s *Service) Scrape(ctx context.Context, rawURL string) (*models.ProductRecord, error) {
	strategy := s.registry.ForURL(rawURL)
	s.logger.Info("scraping product", "url", rawURL, "strategy", strategy.Name())

	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing document for %s: %w", rawURL, err)
	}

	fields, err := strategy.Extract(doc, &Source{URL: rawURL, Host: hostOf(rawURL), HTML: html})
	if err != nil {
		s.logger.Warn("extraction failed", "url", rawURL, "strategy", strategy.Name(), "error", err)
		return nil, err
	}

	record, err := models.NewProductRecord(fields, rawURL, time.Time{})
	if err != nil {
		s.logger.Warn("validation failed", "url", rawURL, "error", err)
		return nil, err
	}

	s.logger.Info("scrape complete",
		"url", rawURL,
		"name", record.Name,
		"price", record.Price,
		"currency", record.Currency,
	)
	return record, nil
}
