package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/database"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/schedule"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/scraper"
)

// Scraper fetches and extracts a single product record on demand.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ProductRecord, error)
}

// Store is the slice of the database layer the handlers need.
type Store interface {
	GetAllProducts(ctx context.Context) ([]*models.TrackedProduct, error)
	GetProduct(ctx context.Context, url string) (*models.TrackedProduct, error)
	GetLatest(ctx context.Context, url string) (*models.ProductRecord, error)
	GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error)
	SaveRecord(ctx context.Context, rec *models.ProductRecord) error
	DeleteProduct(ctx context.Context, url string) (bool, error)
	SetProductStatus(ctx context.Context, url, status string) error
	CountProductsByStatus(ctx context.Context) (map[string]int, error)
}

// CheckRunner triggers a full check run over the tracked products.
type CheckRunner interface {
	CheckAll(ctx context.Context) (*schedule.Stats, error)
}

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger reports Redis liveness.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// OutboxMonitor exposes the relay's backlog counters.
type OutboxMonitor interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	scraper Scraper
	store   Store
	checker CheckRunner
	db      Pinger
	redis   RedisPinger
	outbox  OutboxMonitor
	logger  *slog.Logger

	checkMu sync.Mutex
}

func NewHandlers(scr Scraper, store Store, checker CheckRunner, db Pinger, redisClient RedisPinger, outbox OutboxMonitor, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: scr,
		store:   store,
		checker: checker,
		db:      db,
		redis:   redisClient,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
	}
}

// TrackRequest asks the tracker to start following a product URL.
type TrackRequest struct {
	URL string `json:"url"`
}

// TrackProduct scrapes the URL once and stores the result, which both
// creates the watchlist entry and records the first price point.
func (h *Handlers) TrackProduct(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	rec, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("on-demand scrape failed", "url", req.URL, "error", err)
		h.respondError(w, scrapeStatus(err), err.Error())
		return
	}

	if err := h.store.SaveRecord(r.Context(), rec); err != nil {
		h.logger.Error("failed to save record", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to save product")
		return
	}

	h.respondJSON(w, http.StatusCreated, rec)
}

// ProductSummary is a watchlist entry together with its newest price.
type ProductSummary struct {
	*models.TrackedProduct
	LatestPrice *float64   `json:"latest_price,omitempty"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
}

// ListProducts returns every tracked product with its latest price.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.GetAllProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	summaries := make([]*ProductSummary, 0, len(products))
	for _, p := range products {
		summary := &ProductSummary{TrackedProduct: p}
		if latest, err := h.store.GetLatest(r.Context(), p.URL); err == nil && latest != nil {
			summary.LatestPrice = &latest.Price
			summary.CheckedAt = &latest.Timestamp
		}
		summaries = append(summaries, summary)
	}

	h.respondJSON(w, http.StatusOK, summaries)
}

// HistoryResponse pairs a product with its ordered price history.
type HistoryResponse struct {
	Product *models.TrackedProduct  `json:"product"`
	History []*models.ProductRecord `json:"history"`
}

// GetProductHistory returns the stored price points for one URL,
// oldest first.
func (h *Handlers) GetProductHistory(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	product, err := h.store.GetProduct(r.Context(), url)
	if err != nil {
		h.logger.Error("failed to load product", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not tracked")
		return
	}

	history, err := h.store.GetHistory(r.Context(), url, limit)
	if err != nil {
		h.logger.Error("failed to load history", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	h.respondJSON(w, http.StatusOK, HistoryResponse{Product: product, History: history})
}

// UntrackProduct removes a product and its history.
func (h *Handlers) UntrackProduct(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	deleted, err := h.store.DeleteProduct(r.Context(), url)
	if err != nil {
		h.logger.Error("failed to delete product", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	if !deleted {
		h.respondError(w, http.StatusNotFound, "product not tracked")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "url": url})
}

// PauseProduct stops scheduled checks for a URL without losing its
// history.
func (h *Handlers) PauseProduct(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusPaused)
}

// ResumeProduct puts a paused or failing product back into rotation.
func (h *Handlers) ResumeProduct(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusActive)
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	if err := h.store.SetProductStatus(r.Context(), url, status); err != nil {
		if errors.Is(err, database.ErrNotTracked) {
			h.respondError(w, http.StatusNotFound, "product not tracked")
			return
		}
		h.logger.Error("failed to set product status", "url", url, "status", status, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": status, "url": url})
}

// RunCheck starts a full check run in the background. Only one run may
// be in flight at a time.
func (h *Handlers) RunCheck(w http.ResponseWriter, r *http.Request) {
	if !h.checkMu.TryLock() {
		h.respondError(w, http.StatusConflict, "a check run is already in progress")
		return
	}

	// Detached from the request context so writing the response does
	// not cancel the run.
	go func() {
		defer h.checkMu.Unlock()
		stats, err := h.checker.CheckAll(context.Background())
		if err != nil {
			h.logger.Error("manual check run failed", "error", err)
			return
		}
		h.logger.Info("manual check run finished",
			"checked", stats.Checked, "failed", stats.Failed, "alerts", stats.Alerts)
	}()

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "check started"})
}

// Health reports liveness of the database, Redis, and the outbox
// backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		health["status"] = "error"
		health["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else if counts, err := h.store.CountProductsByStatus(ctx); err == nil {
		health["products"] = counts
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		health["status"] = "error"
		health["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	pending, _ := h.outbox.GetPendingCount(ctx)
	deadLetter, _ := h.outbox.GetDeadLetterCount(ctx)
	health["outbox"] = map[string]int64{"pending": pending, "dead_letter": deadLetter}

	if pending > 1000 && status == http.StatusOK {
		health["status"] = "warning"
		health["message"] = "high number of pending outbox events"
	}
	if deadLetter > 100 {
		health["status"] = "error"
		health["message"] = "high number of dead letter events"
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, health)
}

// scrapeStatus maps a scrape failure to an HTTP status code.
func scrapeStatus(err error) int {
	var (
		invalidErr    *scraper.InvalidInputError
		challengeErr  *scraper.ChallengeError
		fetchErr      *scraper.FetchError
		extractionErr *scraper.ExtractionError
		validationErr *models.ValidationError
	)

	switch {
	case errors.As(err, &invalidErr):
		return http.StatusBadRequest
	case errors.As(err, &challengeErr):
		return http.StatusBadGateway
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &extractionErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
