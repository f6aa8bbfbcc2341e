package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAlert() *models.PriceAlert {
	return &models.PriceAlert{
		ProductName:    "Sony WH-1000XM5",
		ProductURL:     "https://www.amazon.in/dp/B09XS7JWHH",
		OldPrice:       29990,
		NewPrice:       26990,
		DropPercentage: 10.0,
		Currency:       "INR",
		ImageURL:       "https://m.media-amazon.com/images/I/xm5.jpg",
	}
}

func TestDiscordNotify(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []webhookPayload
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))

		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(server.URL, discardLogger())

	err := notifier.Notify(context.Background(), []*models.PriceAlert{sampleAlert()})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "Price Tracker", p.Username)
	require.Len(t, p.Embeds, 1)

	e := p.Embeds[0]
	assert.Equal(t, "Price Drop: Sony WH-1000XM5", e.Title)
	assert.Equal(t, "Price dropped from INR 29990.00 to INR 26990.00 (10.0% drop)", e.Description)
	assert.Equal(t, "https://www.amazon.in/dp/B09XS7JWHH", e.URL)
	assert.Equal(t, embedColor, e.Color)

	require.Len(t, e.Fields, 3)
	assert.Equal(t, "Old Price", e.Fields[0].Name)
	assert.Equal(t, "INR 29990.00", e.Fields[0].Value)
	assert.True(t, e.Fields[0].Inline)
	assert.Equal(t, "New Price", e.Fields[1].Name)
	assert.Equal(t, "INR 26990.00", e.Fields[1].Value)
	assert.Equal(t, "Discount", e.Fields[2].Name)
	assert.Equal(t, "10.0%", e.Fields[2].Value)

	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://m.media-amazon.com/images/I/xm5.jpg", e.Thumbnail.URL)
}

func TestDiscordNotifyOmitsEmptyThumbnail(t *testing.T) {
	var captured []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		captured, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	alert := sampleAlert()
	alert.ImageURL = ""

	notifier := NewDiscordNotifier(server.URL, discardLogger())
	require.NoError(t, notifier.Notify(context.Background(), []*models.PriceAlert{alert}))

	assert.NotContains(t, string(captured), "thumbnail")
}

func TestDiscordNotifyWebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(server.URL, discardLogger())

	err := notifier.Notify(context.Background(), []*models.PriceAlert{sampleAlert(), sampleAlert()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 discord alerts failed")
}

func TestDiscordNotifyContinuesAfterFailure(t *testing.T) {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewDiscordNotifier(server.URL, discardLogger())

	err := notifier.Notify(context.Background(), []*models.PriceAlert{sampleAlert(), sampleAlert()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 discord alerts failed")
	assert.Equal(t, 2, calls)
}

type recordingNotifier struct {
	name    string
	err     error
	batches [][]*models.PriceAlert
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, alerts []*models.PriceAlert) error {
	r.batches = append(r.batches, alerts)
	return r.err
}

func TestDispatcherFansOut(t *testing.T) {
	first := &recordingNotifier{name: "first"}
	second := &recordingNotifier{name: "second"}

	d := NewDispatcher(discardLogger(), first, second)
	alerts := []*models.PriceAlert{sampleAlert()}

	d.Dispatch(context.Background(), alerts)

	require.Len(t, first.batches, 1)
	require.Len(t, second.batches, 1)
	assert.Equal(t, alerts, first.batches[0])
}

func TestDispatcherContinuesOnFailure(t *testing.T) {
	failing := &recordingNotifier{name: "failing", err: assert.AnError}
	healthy := &recordingNotifier{name: "healthy"}

	d := NewDispatcher(discardLogger(), failing, healthy)
	d.Dispatch(context.Background(), []*models.PriceAlert{sampleAlert()})

	assert.Len(t, failing.batches, 1)
	assert.Len(t, healthy.batches, 1)
}

func TestDispatcherSkipsEmptyBatch(t *testing.T) {
	n := &recordingNotifier{name: "quiet"}

	d := NewDispatcher(discardLogger(), n)
	d.Dispatch(context.Background(), nil)

	assert.Empty(t, n.batches)
}
