package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/database"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypePriceDropDetected is published when a tracked product's
	// price falls past the alert threshold.
	EventTypePriceDropDetected EventType = "PRICE_DROP_DETECTED"
)

// PriceDropPayload is the event body stream consumers receive.
type PriceDropPayload struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Timestamp      time.Time `json:"timestamp"`
	ProductName    string    `json:"product_name"`
	ProductURL     string    `json:"product_url"`
	OldPrice       float64   `json:"old_price"`
	NewPrice       float64   `json:"new_price"`
	DropPercentage float64   `json:"drop_percentage"`
	Currency       string    `json:"currency"`
	ImageURL       string    `json:"image_url,omitempty"`
	Source         string    `json:"source"`
}

// NewPriceDropPayload builds a fully populated event payload from a
// detected alert.
func NewPriceDropPayload(alert *models.PriceAlert) *PriceDropPayload {
	return &PriceDropPayload{
		EventID:        uuid.New().String(),
		EventType:      string(EventTypePriceDropDetected),
		Timestamp:      time.Now().UTC(),
		ProductName:    alert.ProductName,
		ProductURL:     alert.ProductURL,
		OldPrice:       alert.OldPrice,
		NewPrice:       alert.NewPrice,
		DropPercentage: alert.DropPercentage,
		Currency:       alert.Currency,
		ImageURL:       alert.ImageURL,
		Source:         "price-tracker",
	}
}

// Publisher records alert events in the transactional outbox. The
// relay delivers them to the alert stream with retries, so a generated
// alert survives process crashes and Redis outages.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	stream string
	logger *slog.Logger
}

// NewPublisher creates a publisher targeting the given Redis stream.
// An empty stream name falls back to the default alert stream.
func NewPublisher(db *database.DB, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db, 0),
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishPriceDrop records a PRICE_DROP_DETECTED event in the outbox.
// The relay delivers it to the alert stream asynchronously.
func (p *Publisher) PublishPriceDrop(ctx context.Context, alert *models.PriceAlert) error {
	payload := NewPriceDropPayload(alert)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   alert.ProductURL,
		EventType:     string(EventTypePriceDropDetected),
		Payload:       data,
		TargetStream:  p.stream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"url", alert.ProductURL,
		"drop_pct", alert.DropPercentage,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
