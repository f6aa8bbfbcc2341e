package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// ErrNotTracked reports an operation on a URL missing from the
// products table.
var ErrNotTracked = errors.New("product not tracked")

// MarkScrapeFailure increments a product's consecutive failure count.
// An active product flips to failing once the count reaches the
// threshold; paused products keep their status. Returns the updated
// count and status.
func (db *DB) MarkScrapeFailure(ctx context.Context, url string) (int, string, error) {
	query := `
		UPDATE products SET
			failure_count = failure_count + 1,
			status = CASE
				WHEN failure_count + 1 >= $2 AND status = $3 THEN $4
				ELSE status
			END,
			updated_at = NOW()
		WHERE url = $1
		RETURNING failure_count, status`

	var count int
	var status string
	err := db.pool.QueryRow(ctx, query,
		url, models.FailingThreshold, models.StatusActive, models.StatusFailing,
	).Scan(&count, &status)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: %s", ErrNotTracked, url)
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to record scrape failure: %w", err)
	}

	return count, status, nil
}

// SetProductStatus pauses or resumes tracking for a URL. Resuming to
// active clears the failure count so scheduled checks pick the product
// up again.
func (db *DB) SetProductStatus(ctx context.Context, url, status string) error {
	query := `
		UPDATE products SET
			status = $2,
			failure_count = CASE WHEN $2 = $3 THEN 0 ELSE failure_count END,
			updated_at = NOW()
		WHERE url = $1`

	tag, err := db.pool.Exec(ctx, query, url, status, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to set product status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotTracked, url)
	}

	return nil
}
