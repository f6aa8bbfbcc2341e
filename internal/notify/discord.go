package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// embedColor is the tracker's accent green.
const embedColor = 0x4CAF50

// DiscordNotifier posts one webhook embed per alert.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

func NewDiscordNotifier(webhookURL string, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "discord"),
	}
}

func (n *DiscordNotifier) Name() string {
	return "discord"
}

func (n *DiscordNotifier) Notify(ctx context.Context, alerts []*models.PriceAlert) error {
	var failed int
	for _, alert := range alerts {
		if err := n.send(ctx, alert); err != nil {
			n.logger.Error("failed to send discord alert",
				"url", alert.ProductURL,
				"error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d discord alerts failed", failed, len(alerts))
	}
	return nil
}

func (n *DiscordNotifier) send(ctx context.Context, alert *models.PriceAlert) error {
	payload := buildWebhookPayload(alert)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Thumbnail   *thumbnail   `json:"thumbnail,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type thumbnail struct {
	URL string `json:"url"`
}

func buildWebhookPayload(alert *models.PriceAlert) webhookPayload {
	e := embed{
		Title: "Price Drop: " + alert.ProductName,
		Description: fmt.Sprintf("Price dropped from %s %.2f to %s %.2f (%.1f%% drop)",
			alert.Currency, alert.OldPrice, alert.Currency, alert.NewPrice, alert.DropPercentage),
		URL:   alert.ProductURL,
		Color: embedColor,
		Fields: []embedField{
			{Name: "Old Price", Value: fmt.Sprintf("%s %.2f", alert.Currency, alert.OldPrice), Inline: true},
			{Name: "New Price", Value: fmt.Sprintf("%s %.2f", alert.Currency, alert.NewPrice), Inline: true},
			{Name: "Discount", Value: fmt.Sprintf("%.1f%%", alert.DropPercentage), Inline: true},
		},
	}

	if alert.ImageURL != "" {
		e.Thumbnail = &thumbnail{URL: alert.ImageURL}
	}

	return webhookPayload{
		Username: "Price Tracker",
		Embeds:   []embed{e},
	}
}
