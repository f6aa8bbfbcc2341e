package models

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/currency"
)

// Tracking status of a product in the watchlist.
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusFailing = "failing"
)

// FailingThreshold is the number of consecutive scrape failures after
// which a tracked product is marked failing and skipped by scheduled
// checks until a manual scrape succeeds again.
const FailingThreshold = 5

// RawFields is the unvalidated extraction result a strategy produces
// from one document: price already parsed to a decimal, currency as
// detected (glyph or locale fallback), image optional.
type RawFields struct {
	Name     string
	Price    float64
	Currency string
	ImageURL string
}

// ProductRecord is the validated, canonical output of one successful
// scrape. Records are immutable once constructed; build them through
// NewProductRecord only.
type ProductRecord struct {
	URL          string    `json:"url" validate:"required,url"`
	Name         string    `json:"name" validate:"required"`
	Price        float64   `json:"price" validate:"gt=0"`
	Currency     string    `json:"currency" validate:"required,oneof=USD EUR GBP JPY INR"`
	MainImageURL string    `json:"main_image_url,omitempty" validate:"omitempty,url"`
	Timestamp    time.Time `json:"timestamp"`
}

// TrackedProduct is a watchlist entry with its most recent known state.
// Products are keyed by URL; the price history lives in separate
// ProductRecord rows.
type TrackedProduct struct {
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	MainImageURL string    `json:"main_image_url,omitempty"`
	Status       string    `json:"status"`
	FailureCount int       `json:"failure_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidationError reports a record that violates the output contract.
// It aborts the scrape for that URL; partial records are never emitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewProductRecord builds a validated record from raw extraction
// output. Unknown currency codes are remapped to USD rather than
// rejected, an unusable image URL is dropped (the field is optional),
// and a zero timestamp defaults to the current time. Hard violations
// (bad URL, empty name, non-positive price) return a ValidationError.
func NewProductRecord(raw *RawFields, sourceURL string, ts time.Time) (*ProductRecord, error) {
	code := raw.Currency
	if !currency.IsSupported(code) {
		code = "USD"
	}

	image := raw.ImageURL
	if image != "" {
		if u, err := url.Parse(image); err != nil || !u.IsAbs() {
			image = ""
		}
	}

	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec := &ProductRecord{
		URL:          sourceURL,
		Name:         strings.TrimSpace(raw.Name),
		Price:        raw.Price,
		Currency:     code,
		MainImageURL: image,
		Timestamp:    ts,
	}

	if math.IsNaN(rec.Price) || math.IsInf(rec.Price, 0) {
		return nil, &ValidationError{Field: "price", Reason: "must be a finite number"}
	}

	if err := validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, toValidationError(fieldErrs[0])
		}
		return nil, &ValidationError{Field: "record", Reason: err.Error()}
	}

	return rec, nil
}

func toValidationError(fe validator.FieldError) *ValidationError {
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = "must be greater than " + fe.Param()
	case "url":
		reason = "must be a valid absolute URL"
	case "oneof":
		reason = "must be one of " + fe.Param()
	default:
		reason = "failed " + fe.Tag() + " constraint"
	}
	return &ValidationError{Field: fe.Field(), Reason: reason}
}
