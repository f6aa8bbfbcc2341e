package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/config"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// ReportStore provides the data the email report is built from.
type ReportStore interface {
	GetAllProducts(ctx context.Context) ([]*models.TrackedProduct, error)
	GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error)
}

// EmailNotifier mails a full tracking report whenever alerts fire.
// Individual alerts are not mailed separately; the report shows every
// product with its current, lowest and highest price.
type EmailNotifier struct {
	cfg    config.EmailConfig
	store  ReportStore
	logger *slog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, store ReportStore, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		store:  store,
		logger: logger.With("component", "email"),
	}
}

func (n *EmailNotifier) Name() string {
	return "email"
}

func (n *EmailNotifier) Notify(ctx context.Context, alerts []*models.PriceAlert) error {
	return n.SendReport(ctx)
}

// SendReport builds and mails the tracking report. Sending is skipped
// without error when there is nothing to report.
func (n *EmailNotifier) SendReport(ctx context.Context) error {
	subject, body, err := n.buildReport(ctx)
	if err != nil {
		return err
	}
	if body == "" {
		n.logger.Info("no products to report, skipping email")
		return nil
	}

	if err := n.send(subject, body); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	n.logger.Info("price report sent", "recipients", len(n.cfg.To))
	return nil
}

func (n *EmailNotifier) buildReport(ctx context.Context) (subject, body string, err error) {
	products, err := n.store.GetAllProducts(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) == 0 {
		return "", "", nil
	}

	now := time.Now()
	subject = "Price Tracker Report - " + now.Format("2006-01-02")

	var b strings.Builder
	b.WriteString(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
.container { max-width: 800px; margin: 0 auto; padding: 20px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f2f2f2; }
tr:nth-child(even) { background-color: #f9f9f9; }
.price-down { color: green; font-weight: bold; }
.price-up { color: red; }
</style>
</head>
<body>
<div class="header">
<h1>Price Tracker Report</h1>
<p>Generated on ` + now.Format("2006-01-02 15:04") + `</p>
</div>
<div class="container">
<h2>Currently Tracked Products</h2>
<table>
<tr><th>Product</th><th>Current Price</th><th>Lowest Price</th><th>Highest Price</th><th>Price Change</th><th>Last Updated</th></tr>
`)

	var rows int
	for _, product := range products {
		history, err := n.store.GetHistory(ctx, product.URL, 0)
		if err != nil {
			n.logger.Warn("failed to load history for report", "url", product.URL, "error", err)
			continue
		}
		if len(history) == 0 {
			continue
		}

		latest := history[len(history)-1]
		first := history[0]
		lowest, highest := latest, latest
		for _, rec := range history {
			if rec.Price < lowest.Price {
				lowest = rec
			}
			if rec.Price > highest.Price {
				highest = rec
			}
		}

		change := latest.Price - first.Price
		var changePct float64
		if first.Price > 0 {
			changePct = change / first.Price * 100
		}

		changeStr := "No change"
		changeClass := ""
		switch {
		case change < 0:
			changeStr = fmt.Sprintf("&darr; %.2f (%.1f%%)", -change, -changePct)
			changeClass = "price-down"
		case change > 0:
			changeStr = fmt.Sprintf("&uarr; %.2f (%.1f%%)", change, changePct)
			changeClass = "price-up"
		}

		fmt.Fprintf(&b, `<tr><td><a href="%s">%s</a></td><td>%s %.2f</td><td>%s %.2f</td><td>%s %.2f</td><td class="%s">%s</td><td>%s</td></tr>
`,
			product.URL, latest.Name,
			latest.Currency, latest.Price,
			lowest.Currency, lowest.Price,
			highest.Currency, highest.Price,
			changeClass, changeStr,
			latest.Timestamp.Format("2006-01-02 15:04"))
		rows++
	}

	if rows == 0 {
		return "", "", nil
	}

	b.WriteString(`</table>
<p>This report shows the current status of all products you're tracking.</p>
</div>
</body>
</html>
`)

	return subject, b.String(), nil
}

func (n *EmailNotifier) send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	return smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, []byte(msg.String()))
}
