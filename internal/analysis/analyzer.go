package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// DefaultDropThreshold is the percentage a price must fall before an
// alert is raised when no threshold is configured.
const DefaultDropThreshold = 5.0

// comparisonWindow bounds the highest-recent-price comparison.
const comparisonWindow = 30 * 24 * time.Hour

// HistoryStore provides the recorded history the analyzer works on.
type HistoryStore interface {
	GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error)
	GetTrackedURLs(ctx context.Context) ([]string, error)
}

// Analyzer detects significant price drops in recorded histories.
//
// A drop is measured two ways: against the previous record and against
// the highest price seen in the last thirty days. The larger drop wins
// and its reference price becomes the alert's old price. Rises never
// count as drops.
type Analyzer struct {
	store     HistoryStore
	threshold float64
	logger    *slog.Logger
}

func NewAnalyzer(store HistoryStore, threshold float64, logger *slog.Logger) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultDropThreshold
	}
	return &Analyzer{
		store:     store,
		threshold: threshold,
		logger:    logger.With("component", "analysis"),
	}
}

// AnalyzeProduct checks the newest price of a URL against its history.
// Returns nil when there is nothing to report: fewer than two records,
// or a drop below the threshold.
func (a *Analyzer) AnalyzeProduct(ctx context.Context, url string) (*models.PriceAlert, error) {
	history, err := a.store.GetHistory(ctx, url, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	if len(history) < 2 {
		a.logger.Debug("not enough history to analyze", "url", url, "records", len(history))
		return nil, nil
	}

	alert := a.evaluate(history)
	if alert != nil {
		a.logger.Info("price drop detected",
			"url", url,
			"name", alert.ProductName,
			"old_price", alert.OldPrice,
			"new_price", alert.NewPrice,
			"drop_pct", alert.DropPercentage)
	}

	return alert, nil
}

// AnalyzeAll runs AnalyzeProduct over every actively tracked URL.
// Per-product failures are logged and skipped.
func (a *Analyzer) AnalyzeAll(ctx context.Context) ([]*models.PriceAlert, error) {
	urls, err := a.store.GetTrackedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked products: %w", err)
	}

	var alerts []*models.PriceAlert
	for _, url := range urls {
		alert, err := a.AnalyzeProduct(ctx, url)
		if err != nil {
			a.logger.Warn("analysis failed", "url", url, "error", err)
			continue
		}
		if alert != nil {
			alerts = append(alerts, alert)
		}
	}

	return alerts, nil
}

func (a *Analyzer) evaluate(history []*models.ProductRecord) *models.PriceAlert {
	latest := history[len(history)-1]
	previous := history[len(history)-2]

	prevDrop := dropPercentage(previous.Price, latest.Price)

	windowStart := time.Now().UTC().Add(-comparisonWindow)
	var highest float64
	for _, rec := range history {
		if rec.Timestamp.Before(windowStart) {
			continue
		}
		if rec.Price > highest {
			highest = rec.Price
		}
	}
	highestDrop := dropPercentage(highest, latest.Price)

	// Ties favor the previous record as reference.
	drop := prevDrop
	oldPrice := previous.Price
	if highestDrop > prevDrop {
		drop = highestDrop
		oldPrice = highest
	}

	if drop < a.threshold {
		return nil
	}

	return &models.PriceAlert{
		ProductName:    latest.Name,
		ProductURL:     latest.URL,
		OldPrice:       oldPrice,
		NewPrice:       latest.Price,
		DropPercentage: drop,
		Currency:       latest.Currency,
		ImageURL:       latest.MainImageURL,
	}
}

// dropPercentage returns how far new fell below old, as a percentage
// of old. Rises and unusable reference prices yield zero.
func dropPercentage(old, new float64) float64 {
	if old <= 0 || new >= old {
		return 0
	}
	return (old - new) / old * 100
}
