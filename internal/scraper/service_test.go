package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/currency"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceScrape(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head><title>Echo Dot (5th Gen) : Amazon.in : Electronics</title></head>
<body>
	<span id="productTitle">Echo Dot (5th Gen, 2022 release)</span>
	<span class="a-price"><span class="a-offscreen">₹4,499.00</span></span>
	<img id="landingImage" src="https://m.media.example/echo-dot.jpg">
</body>
</html>`

	svc := NewService(&stubFetcher{html: html}, NewRegistry(), discardLogger())

	record, err := svc.Scrape(context.Background(), "https://www.amazon.in/dp/B09B8X9RGM")
	require.NoError(t, err)
	assert.Equal(t, "https://www.amazon.in/dp/B09B8X9RGM", record.URL)
	assert.Equal(t, "Echo Dot (5th Gen, 2022 release)", record.Name)
	assert.InDelta(t, 4499.0, record.Price, 0.001)
	assert.Equal(t, "INR", record.Currency)
	assert.Equal(t, "https://m.media.example/echo-dot.jpg", record.MainImageURL)
	assert.WithinDuration(t, time.Now().UTC(), record.Timestamp, 5*time.Second)
}

func TestServiceScrapeIsIdempotent(t *testing.T) {
	html := `<html>
<head><title>USB-C Cable - CableShop</title></head>
<body>
	<h1 class="product-title">USB-C Cable 2m</h1>
	<span class="price">$12.49</span>
</body>
</html>`

	svc := NewService(&stubFetcher{html: html}, NewRegistry(), discardLogger())

	first, err := svc.Scrape(context.Background(), "https://cableshop.example.com/usb-c-2m")
	require.NoError(t, err)
	second, err := svc.Scrape(context.Background(), "https://cableshop.example.com/usb-c-2m")
	require.NoError(t, err)

	first.Timestamp = time.Time{}
	second.Timestamp = time.Time{}
	assert.Equal(t, first, second)
}

func TestServiceScrapePropagatesFetchErrors(t *testing.T) {
	wantErr := &ChallengeError{URL: "https://www.amazon.com/dp/B0TEST123", Attempts: 3}
	svc := NewService(&stubFetcher{err: wantErr}, NewRegistry(), discardLogger())

	_, err := svc.Scrape(context.Background(), "https://www.amazon.com/dp/B0TEST123")
	var challengeErr *ChallengeError
	require.ErrorAs(t, err, &challengeErr)
	assert.Equal(t, 3, challengeErr.Attempts)
}

func TestServiceScrapeExtractionFailure(t *testing.T) {
	svc := NewService(
		&stubFetcher{html: `<html><body><h1 class="product-title">No Price Here</h1></body></html>`},
		NewRegistry(),
		discardLogger(),
	)

	_, err := svc.Scrape(context.Background(), "https://shop.example.com/item")
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "price", extractionErr.Field)
}

func TestServiceScrapeRejectsZeroPrice(t *testing.T) {
	html := `<html><body>
	<h1 class="product-title">Promo Item</h1>
	<span class="price">$0.00</span>
</body></html>`

	svc := NewService(&stubFetcher{html: html}, NewRegistry(), discardLogger())

	_, err := svc.Scrape(context.Background(), "https://shop.example.com/promo")
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "price", validationErr.Field)
}

func TestServiceScrapeProducesValidRecords(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	registry := NewRegistry()

	for i := 0; i < 25; i++ {
		cents := rng.Intn(9999900) + 1
		price := float64(cents) / 100

		html := fmt.Sprintf(`<html>
<head><title>Item %d - Shop</title></head>
<body>
	<h1 class="product-title">Item %d</h1>
	<span class="price">$%.2f</span>
</body>
</html>`, i, i, price)

		svc := NewService(&stubFetcher{html: html}, registry, discardLogger())

		record, err := svc.Scrape(context.Background(), fmt.Sprintf("https://shop.example.com/item/%d", i))
		require.NoError(t, err)
		assert.Greater(t, record.Price, 0.0)
		assert.NotEmpty(t, record.Name)
		assert.Contains(t, currency.Codes, record.Currency)
		assert.InDelta(t, price, record.Price, 0.005)
	}
}
