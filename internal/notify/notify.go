package notify

import (
	"context"
	"log/slog"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// Notifier delivers a batch of price alerts to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alerts []*models.PriceAlert) error
}

// Dispatcher fans alerts out to every configured channel. A failing
// channel never blocks the others.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger.With("component", "notify"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, alerts []*models.PriceAlert) {
	if len(alerts) == 0 {
		return
	}

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alerts); err != nil {
			d.logger.Error("notification failed",
				"notifier", n.Name(),
				"alerts", len(alerts),
				"error", err)
			continue
		}
		d.logger.Info("notifications sent",
			"notifier", n.Name(),
			"alerts", len(alerts))
	}
}
