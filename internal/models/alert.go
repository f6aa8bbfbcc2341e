package models

// PriceAlert is the derived payload produced when a tracked product's
// price drops past the configured threshold. Alerts are consumed by
// notifiers and published to the alert stream; they never carry raw
// scrape data.
type PriceAlert struct {
	ProductName    string  `json:"product_name"`
	ProductURL     string  `json:"product_url"`
	OldPrice       float64 `json:"old_price"`
	NewPrice       float64 `json:"new_price"`
	DropPercentage float64 `json:"drop_percentage"`
	Currency       string  `json:"currency"`
	ImageURL       string  `json:"image_url,omitempty"`
}
