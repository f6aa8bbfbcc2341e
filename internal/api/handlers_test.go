package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/database"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/schedule"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/scraper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubScraper struct {
	rec *models.ProductRecord
	err error
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (*models.ProductRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rec != nil {
		return s.rec, nil
	}
	return &models.ProductRecord{
		URL:       url,
		Name:      "Test Product",
		Price:     49.99,
		Currency:  "USD",
		Timestamp: time.Now().UTC(),
	}, nil
}

type stubStore struct {
	products  []*models.TrackedProduct
	product   *models.TrackedProduct
	latest    map[string]*models.ProductRecord
	history   []*models.ProductRecord
	saved     []*models.ProductRecord
	saveErr   error
	listErr   error
	deleteOK  bool
	deleteErr error
	statusErr error
	statusSet map[string]string
	counts    map[string]int
}

func (s *stubStore) GetAllProducts(ctx context.Context) ([]*models.TrackedProduct, error) {
	return s.products, s.listErr
}

func (s *stubStore) GetProduct(ctx context.Context, url string) (*models.TrackedProduct, error) {
	return s.product, nil
}

func (s *stubStore) GetLatest(ctx context.Context, url string) (*models.ProductRecord, error) {
	return s.latest[url], nil
}

func (s *stubStore) GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error) {
	return s.history, nil
}

func (s *stubStore) SaveRecord(ctx context.Context, rec *models.ProductRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *stubStore) DeleteProduct(ctx context.Context, url string) (bool, error) {
	return s.deleteOK, s.deleteErr
}

func (s *stubStore) SetProductStatus(ctx context.Context, url, status string) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	if s.statusSet == nil {
		s.statusSet = make(map[string]string)
	}
	s.statusSet[url] = status
	return nil
}

func (s *stubStore) CountProductsByStatus(ctx context.Context) (map[string]int, error) {
	return s.counts, nil
}

type stubChecker struct {
	started chan struct{}
	release chan struct{}
}

func (c *stubChecker) CheckAll(ctx context.Context) (*schedule.Stats, error) {
	if c.started != nil {
		close(c.started)
	}
	if c.release != nil {
		<-c.release
	}
	return &schedule.Stats{Checked: 1}, nil
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

type stubRedis struct{ err error }

func (s *stubRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

type stubOutbox struct {
	pending    int64
	deadLetter int64
}

func (o *stubOutbox) GetPendingCount(ctx context.Context) (int64, error) {
	return o.pending, nil
}

func (o *stubOutbox) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return o.deadLetter, nil
}

func newTestHandlers(scr Scraper, store Store, checker CheckRunner) *Handlers {
	if scr == nil {
		scr = &stubScraper{}
	}
	if store == nil {
		store = &stubStore{}
	}
	if checker == nil {
		checker = &stubChecker{}
	}
	return NewHandlers(scr, store, checker, &stubPinger{}, &stubRedis{}, &stubOutbox{}, discardLogger())
}

func TestTrackProduct(t *testing.T) {
	store := &stubStore{}
	h := newTestHandlers(nil, store, nil)

	body := strings.NewReader(`{"url": "https://store.example.com/widget"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	w := httptest.NewRecorder()

	h.TrackProduct(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rec models.ProductRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "https://store.example.com/widget", rec.URL)
	assert.Equal(t, 49.99, rec.Price)

	require.Len(t, store.saved, 1)
}

func TestTrackProductBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"url": `},
		{name: "missing url", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(nil, nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.TrackProduct(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTrackProductScrapeErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid input",
			err:  &scraper.InvalidInputError{URL: "ftp://x", Reason: "unsupported scheme"},
			want: http.StatusBadRequest,
		},
		{
			name: "challenge",
			err:  &scraper.ChallengeError{URL: "https://x", Attempts: 3},
			want: http.StatusBadGateway,
		},
		{
			name: "fetch",
			err:  &scraper.FetchError{URL: "https://x", Attempts: 3, Err: errors.New("timeout")},
			want: http.StatusBadGateway,
		},
		{
			name: "extraction",
			err:  &scraper.ExtractionError{Strategy: "generic", Field: "price"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "validation",
			err:  &models.ValidationError{Field: "price", Reason: "must be positive"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&stubScraper{err: tt.err}, nil, nil)
			body := strings.NewReader(`{"url": "https://store.example.com/widget"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
			w := httptest.NewRecorder()

			h.TrackProduct(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestTrackProductSaveError(t *testing.T) {
	store := &stubStore{saveErr: errors.New("disk full")}
	h := newTestHandlers(nil, store, nil)

	body := strings.NewReader(`{"url": "https://store.example.com/widget"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	w := httptest.NewRecorder()

	h.TrackProduct(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListProducts(t *testing.T) {
	now := time.Now().UTC()
	store := &stubStore{
		products: []*models.TrackedProduct{
			{URL: "https://store.example.com/a", Name: "A", Status: models.StatusActive},
			{URL: "https://store.example.com/b", Name: "B", Status: models.StatusPaused},
		},
		latest: map[string]*models.ProductRecord{
			"https://store.example.com/a": {URL: "https://store.example.com/a", Price: 19.99, Timestamp: now},
		},
	}
	h := newTestHandlers(nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	w := httptest.NewRecorder()

	h.ListProducts(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var summaries []*ProductSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summaries))
	require.Len(t, summaries, 2)

	require.NotNil(t, summaries[0].LatestPrice)
	assert.Equal(t, 19.99, *summaries[0].LatestPrice)
	assert.Nil(t, summaries[1].LatestPrice)
}

func TestGetProductHistory(t *testing.T) {
	url := "https://store.example.com/widget"
	store := &stubStore{
		product: &models.TrackedProduct{URL: url, Name: "Widget", Status: models.StatusActive},
		history: []*models.ProductRecord{
			{URL: url, Price: 100},
			{URL: url, Price: 90},
		},
	}
	h := newTestHandlers(nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/history?url="+url, nil)
	w := httptest.NewRecorder()

	h.GetProductHistory(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Widget", resp.Product.Name)
	require.Len(t, resp.History, 2)
	assert.Equal(t, 100.0, resp.History[0].Price)
}

func TestGetProductHistoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		store  *stubStore
		want   int
	}{
		{
			name:   "missing url",
			target: "/api/v1/products/history",
			store:  &stubStore{},
			want:   http.StatusBadRequest,
		},
		{
			name:   "bad limit",
			target: "/api/v1/products/history?url=https://x&limit=many",
			store:  &stubStore{},
			want:   http.StatusBadRequest,
		},
		{
			name:   "unknown product",
			target: "/api/v1/products/history?url=https://x",
			store:  &stubStore{},
			want:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(nil, tt.store, nil)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()

			h.GetProductHistory(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestUntrackProduct(t *testing.T) {
	h := newTestHandlers(nil, &stubStore{deleteOK: true}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products?url=https://store.example.com/widget", nil)
	w := httptest.NewRecorder()

	h.UntrackProduct(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "deleted", resp["status"])
}

func TestUntrackProductNotFound(t *testing.T) {
	h := newTestHandlers(nil, &stubStore{deleteOK: false}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products?url=https://store.example.com/missing", nil)
	w := httptest.NewRecorder()

	h.UntrackProduct(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseAndResumeProduct(t *testing.T) {
	url := "https://store.example.com/widget"
	store := &stubStore{}
	h := newTestHandlers(nil, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/pause?url="+url, nil)
	w := httptest.NewRecorder()
	h.PauseProduct(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPaused, store.statusSet[url])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/products/resume?url="+url, nil)
	w = httptest.NewRecorder()
	h.ResumeProduct(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusActive, store.statusSet[url])
}

func TestPauseProductNotTracked(t *testing.T) {
	store := &stubStore{statusErr: fmt.Errorf("%w: https://x", database.ErrNotTracked)}
	h := newTestHandlers(nil, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/pause?url=https://x", nil)
	w := httptest.NewRecorder()
	h.PauseProduct(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunCheck(t *testing.T) {
	checker := &stubChecker{started: make(chan struct{}), release: make(chan struct{})}
	h := newTestHandlers(nil, nil, checker)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/check", nil)
	w := httptest.NewRecorder()
	h.RunCheck(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-checker.started:
	case <-time.After(time.Second):
		t.Fatal("check run never started")
	}

	// A second trigger while the first is in flight is rejected.
	w = httptest.NewRecorder()
	h.RunCheck(w, httptest.NewRequest(http.MethodPost, "/api/v1/check", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(checker.release)
}

func TestHealth(t *testing.T) {
	store := &stubStore{counts: map[string]int{"active": 3, "paused": 1}}
	h := newTestHandlers(nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "products")
	assert.Contains(t, health, "outbox")
}

func TestHealthDatabaseDown(t *testing.T) {
	h := NewHandlers(&stubScraper{}, &stubStore{}, &stubChecker{},
		&stubPinger{err: errors.New("connection refused")}, &stubRedis{}, &stubOutbox{}, discardLogger())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "error", health["status"])
}

func TestHealthRedisDown(t *testing.T) {
	h := NewHandlers(&stubScraper{}, &stubStore{}, &stubChecker{},
		&stubPinger{}, &stubRedis{err: errors.New("connection refused")}, &stubOutbox{}, discardLogger())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthDeadLetterBacklog(t *testing.T) {
	h := NewHandlers(&stubScraper{}, &stubStore{}, &stubChecker{},
		&stubPinger{}, &stubRedis{}, &stubOutbox{deadLetter: 150}, discardLogger())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "error", health["status"])
}

func TestHealthPendingBacklogWarning(t *testing.T) {
	h := NewHandlers(&stubScraper{}, &stubStore{}, &stubChecker{},
		&stubPinger{}, &stubRedis{}, &stubOutbox{pending: 5000}, discardLogger())

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "warning", health["status"])
}
