package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

type stubStore struct {
	histories map[string][]*models.ProductRecord
	urls      []string
	err       error
}

func (s *stubStore) GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.histories[url], nil
}

func (s *stubStore) GetTrackedURLs(ctx context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.urls, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(url string, price float64, age time.Duration) *models.ProductRecord {
	return &models.ProductRecord{
		URL:          url,
		Name:         "Wireless Headphones",
		Price:        price,
		Currency:     "USD",
		MainImageURL: "https://img.example.com/headphones.jpg",
		Timestamp:    time.Now().UTC().Add(-age),
	}
}

func TestAnalyzeProduct(t *testing.T) {
	const url = "https://shop.example.com/headphones"

	tests := []struct {
		name        string
		history     []*models.ProductRecord
		threshold   float64
		wantAlert   bool
		wantOld     float64
		wantNew     float64
		wantDropPct float64
	}{
		{
			name:      "no history",
			history:   nil,
			wantAlert: false,
		},
		{
			name: "single record",
			history: []*models.ProductRecord{
				record(url, 100, time.Hour),
			},
			wantAlert: false,
		},
		{
			name: "drop below threshold",
			history: []*models.ProductRecord{
				record(url, 100, 24*time.Hour),
				record(url, 96, time.Hour),
			},
			wantAlert: false,
		},
		{
			name: "drop exactly at threshold",
			history: []*models.ProductRecord{
				record(url, 100, 24*time.Hour),
				record(url, 95, time.Hour),
			},
			wantAlert:   true,
			wantOld:     100,
			wantNew:     95,
			wantDropPct: 5,
		},
		{
			name: "thirty day high beats previous",
			history: []*models.ProductRecord{
				record(url, 200, 20*24*time.Hour),
				record(url, 100, 24*time.Hour),
				record(url, 95, time.Hour),
			},
			wantAlert:   true,
			wantOld:     200,
			wantNew:     95,
			wantDropPct: 52.5,
		},
		{
			name: "old high outside window ignored",
			history: []*models.ProductRecord{
				record(url, 200, 40*24*time.Hour),
				record(url, 100, 24*time.Hour),
				record(url, 95, time.Hour),
			},
			wantAlert:   true,
			wantOld:     100,
			wantNew:     95,
			wantDropPct: 5,
		},
		{
			name: "rise against previous but below recent high",
			history: []*models.ProductRecord{
				record(url, 150, 5*24*time.Hour),
				record(url, 90, 24*time.Hour),
				record(url, 100, time.Hour),
			},
			wantAlert:   true,
			wantOld:     150,
			wantNew:     100,
			wantDropPct: 100 * (150.0 - 100.0) / 150.0,
		},
		{
			name: "price rise only",
			history: []*models.ProductRecord{
				record(url, 90, 24*time.Hour),
				record(url, 100, time.Hour),
			},
			wantAlert: false,
		},
		{
			name: "custom threshold",
			history: []*models.ProductRecord{
				record(url, 100, 24*time.Hour),
				record(url, 85, time.Hour),
			},
			threshold: 20,
			wantAlert: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{histories: map[string][]*models.ProductRecord{url: tt.history}}
			analyzer := NewAnalyzer(store, tt.threshold, discardLogger())

			alert, err := analyzer.AnalyzeProduct(context.Background(), url)
			require.NoError(t, err)

			if !tt.wantAlert {
				assert.Nil(t, alert)
				return
			}

			require.NotNil(t, alert)
			assert.Equal(t, url, alert.ProductURL)
			assert.Equal(t, "Wireless Headphones", alert.ProductName)
			assert.Equal(t, "USD", alert.Currency)
			assert.InDelta(t, tt.wantOld, alert.OldPrice, 0.001)
			assert.InDelta(t, tt.wantNew, alert.NewPrice, 0.001)
			assert.InDelta(t, tt.wantDropPct, alert.DropPercentage, 0.001)
		})
	}
}

func TestAnalyzeProductStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	analyzer := NewAnalyzer(store, 0, discardLogger())

	alert, err := analyzer.AnalyzeProduct(context.Background(), "https://shop.example.com/x")
	assert.Error(t, err)
	assert.Nil(t, alert)
}

func TestAnalyzeAll(t *testing.T) {
	dropped := "https://shop.example.com/dropped"
	steady := "https://shop.example.com/steady"

	store := &stubStore{
		urls: []string{dropped, steady},
		histories: map[string][]*models.ProductRecord{
			dropped: {
				record(dropped, 100, 24*time.Hour),
				record(dropped, 80, time.Hour),
			},
			steady: {
				record(steady, 50, 24*time.Hour),
				record(steady, 50, time.Hour),
			},
		},
	}

	analyzer := NewAnalyzer(store, 0, discardLogger())

	alerts, err := analyzer.AnalyzeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, dropped, alerts[0].ProductURL)
	assert.InDelta(t, 20.0, alerts[0].DropPercentage, 0.001)
}

func TestDropPercentage(t *testing.T) {
	tests := []struct {
		name     string
		old      float64
		new      float64
		expected float64
	}{
		{name: "ten percent", old: 100, new: 90, expected: 10},
		{name: "rise yields zero", old: 90, new: 100, expected: 0},
		{name: "equal yields zero", old: 100, new: 100, expected: 0},
		{name: "zero reference", old: 0, new: 50, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, dropPercentage(tt.old, tt.new), 0.001)
		})
	}
}
