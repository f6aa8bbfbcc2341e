package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// AddProduct registers a URL for tracking without recording a price.
// Adding an already tracked URL is a no-op.
func (db *DB) AddProduct(ctx context.Context, url string) error {
	query := `
		INSERT INTO products (url)
		VALUES ($1)
		ON CONFLICT (url) DO NOTHING`

	if _, err := db.pool.Exec(ctx, query, url); err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}

	return nil
}

// SaveRecord upserts the tracked product and appends one price history
// row in a single transaction.
func (db *DB) SaveRecord(ctx context.Context, rec *models.ProductRecord) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		return db.SaveRecordTx(ctx, tx, rec)
	})
}

// SaveRecordTx persists a record inside a caller-owned transaction.
// A successful scrape resets the failure count and revives a failing
// product; a paused product stays paused.
func (db *DB) SaveRecordTx(ctx context.Context, tx pgx.Tx, rec *models.ProductRecord) error {
	upsert := `
		INSERT INTO products (url, name, currency, main_image_url, status, failure_count)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			currency = EXCLUDED.currency,
			main_image_url = CASE
				WHEN EXCLUDED.main_image_url <> '' THEN EXCLUDED.main_image_url
				ELSE products.main_image_url
			END,
			status = CASE
				WHEN products.status = $6 THEN $5
				ELSE products.status
			END,
			failure_count = 0,
			updated_at = NOW()`

	_, err := tx.Exec(ctx, upsert,
		rec.URL, rec.Name, rec.Currency, rec.MainImageURL,
		models.StatusActive, models.StatusFailing,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	history := `
		INSERT INTO price_histories (product_url, name, price, currency, main_image_url, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, history,
		rec.URL, rec.Name, rec.Price, rec.Currency, rec.MainImageURL, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price history: %w", err)
	}

	return nil
}

// GetTrackedURLs returns the URLs scheduled checks should visit.
// Paused and failing products are excluded.
func (db *DB) GetTrackedURLs(ctx context.Context) ([]string, error) {
	query := `
		SELECT url
		FROM products
		WHERE status = $1
		ORDER BY created_at ASC`

	rows, err := db.pool.Query(ctx, query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, url)
	}

	return urls, rows.Err()
}

// GetAllProducts returns every watchlist entry regardless of status.
func (db *DB) GetAllProducts(ctx context.Context) ([]*models.TrackedProduct, error) {
	query := `
		SELECT url, name, currency, main_image_url, status, failure_count, created_at, updated_at
		FROM products
		ORDER BY created_at ASC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.TrackedProduct
	for rows.Next() {
		p := &models.TrackedProduct{}
		err := rows.Scan(
			&p.URL, &p.Name, &p.Currency, &p.MainImageURL,
			&p.Status, &p.FailureCount, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// GetProduct retrieves a single watchlist entry by URL. Returns nil
// without error when the URL is not tracked.
func (db *DB) GetProduct(ctx context.Context, url string) (*models.TrackedProduct, error) {
	query := `
		SELECT url, name, currency, main_image_url, status, failure_count, created_at, updated_at
		FROM products
		WHERE url = $1`

	p := &models.TrackedProduct{}
	err := db.pool.QueryRow(ctx, query, url).Scan(
		&p.URL, &p.Name, &p.Currency, &p.MainImageURL,
		&p.Status, &p.FailureCount, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// GetHistory returns a product's price history ordered oldest first.
// A limit of zero or less returns the full history.
func (db *DB) GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error) {
	query := `
		SELECT product_url, name, price, currency, main_image_url, timestamp
		FROM price_histories
		WHERE product_url = $1
		ORDER BY timestamp ASC`

	args := []interface{}{url}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var records []*models.ProductRecord
	for rows.Next() {
		rec := &models.ProductRecord{}
		err := rows.Scan(
			&rec.URL, &rec.Name, &rec.Price, &rec.Currency,
			&rec.MainImageURL, &rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetLatest returns the most recent price record for a URL, or nil
// when no price has been recorded yet.
func (db *DB) GetLatest(ctx context.Context, url string) (*models.ProductRecord, error) {
	query := `
		SELECT product_url, name, price, currency, main_image_url, timestamp
		FROM price_histories
		WHERE product_url = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	rec := &models.ProductRecord{}
	err := db.pool.QueryRow(ctx, query, url).Scan(
		&rec.URL, &rec.Name, &rec.Price, &rec.Currency,
		&rec.MainImageURL, &rec.Timestamp,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	return rec, nil
}

// DeleteProduct removes a product and, via cascade, its history.
// Returns false when the URL was not tracked.
func (db *DB) DeleteProduct(ctx context.Context, url string) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM products WHERE url = $1`, url)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountProductsByStatus returns the number of watchlist entries per
// tracking status.
func (db *DB) CountProductsByStatus(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM products
		GROUP BY status`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
