package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

func TestNewPriceDropPayload(t *testing.T) {
	alert := &models.PriceAlert{
		ProductName:    "Sony WH-1000XM5",
		ProductURL:     "https://www.amazon.in/dp/B09XS7JWHH",
		OldPrice:       29990,
		NewPrice:       26990,
		DropPercentage: 10.003,
		Currency:       "INR",
		ImageURL:       "https://m.media-amazon.com/images/I/xm5.jpg",
	}

	payload := NewPriceDropPayload(alert)

	_, err := uuid.Parse(payload.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "PRICE_DROP_DETECTED", payload.EventType)
	assert.WithinDuration(t, time.Now().UTC(), payload.Timestamp, time.Second)
	assert.Equal(t, "price-tracker", payload.Source)

	assert.Equal(t, alert.ProductName, payload.ProductName)
	assert.Equal(t, alert.ProductURL, payload.ProductURL)
	assert.Equal(t, alert.OldPrice, payload.OldPrice)
	assert.Equal(t, alert.NewPrice, payload.NewPrice)
	assert.Equal(t, alert.DropPercentage, payload.DropPercentage)
	assert.Equal(t, alert.Currency, payload.Currency)
	assert.Equal(t, alert.ImageURL, payload.ImageURL)
}

func TestPriceDropPayloadJSON(t *testing.T) {
	payload := NewPriceDropPayload(&models.PriceAlert{
		ProductName:    "Echo Dot",
		ProductURL:     "https://www.amazon.in/dp/B0ECHODOT",
		OldPrice:       4999,
		NewPrice:       3999,
		DropPercentage: 20.004,
		Currency:       "INR",
	})

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Equal(t, "PRICE_DROP_DETECTED", fields["event_type"])
	assert.Equal(t, "Echo Dot", fields["product_name"])
	assert.Equal(t, "https://www.amazon.in/dp/B0ECHODOT", fields["product_url"])
	assert.Equal(t, 4999.0, fields["old_price"])
	assert.Equal(t, 3999.0, fields["new_price"])
	assert.Equal(t, "INR", fields["currency"])
	assert.Equal(t, "price-tracker", fields["source"])
	assert.NotEmpty(t, fields["event_id"])
	assert.NotEmpty(t, fields["timestamp"])

	// Empty image must be omitted, not serialized as "".
	_, present := fields["image_url"]
	assert.False(t, present)
}

func TestPayloadIDsAreUnique(t *testing.T) {
	alert := &models.PriceAlert{ProductURL: "https://shop.example.com/widget"}

	a := NewPriceDropPayload(alert)
	b := NewPriceDropPayload(alert)
	assert.NotEqual(t, a.EventID, b.EventID)
}
