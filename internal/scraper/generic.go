package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/currency"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// GenericStrategy extracts product fields from arbitrary storefronts by
// probing selector lists collected from common shop templates. It is
// the registry fallback, so it must never depend on any one site's
// markup.
type GenericStrategy struct {
	priceSelectors []string
	titleSelectors []string
	imageSelectors []string
}

func NewGenericStrategy() *GenericStrategy {
	return &GenericStrategy{
		// Bare whole-price nodes are not probed here; the
		// whole/fraction pair handles them so the fraction is kept.
		priceSelectors: []string{
			".price",
			".product-price",
			".offer-price",
			".price-current",
			".actual-price",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			".a-price",
			".a-price .a-offscreen",
			".priceToPay .a-offscreen",
			".apexPriceToPay .a-offscreen",
			"#price_inside_buybox",
			"span.a-size-medium.a-color-price",
			"[data-testid='product-price']",
			".product-price-value",
			".current-price",
		},
		titleSelectors: []string{
			"h1.product-title",
			"h1.product-name",
			"h1.product_title",
			"#productTitle",
			".product-name",
			".product-title",
			"[data-testid='product-title']",
			".title",
		},
		imageSelectors: []string{
			".product-image img",
			".product-main-image img",
			"#main-image",
			"#product-image",
			".gallery-image",
			"[data-testid='product-image']",
			".main-product-image",
		},
	}
}

func (s *GenericStrategy) Name() string { return "generic" }

func (s *GenericStrategy) Extract(doc *goquery.Document, src *Source) (*models.RawFields, error) {
	price, code, err := s.extractPrice(doc, src)
	if err != nil {
		return nil, err
	}

	name, err := s.extractTitle(doc)
	if err != nil {
		return nil, err
	}

	return &models.RawFields{
		Name:     name,
		Price:    price,
		Currency: code,
		ImageURL: s.extractImage(doc),
	}, nil
}

// extractPrice walks the selector list and returns the first element
// whose text parses as an amount. A selector hit with unparseable text
// does not stop the walk. When no selector yields a price, a split
// whole/fraction element pair is tried before giving up.
func (s *GenericStrategy) extractPrice(doc *goquery.Document, src *Source) (float64, string, error) {
	for _, sel := range s.priceSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		price, err := currency.ParseAmount(text)
		if err != nil {
			continue
		}
		return price, currency.Detect(text, src.Host), nil
	}

	if price, code, ok := wholeFractionPrice(doc, src.Host); ok {
		return price, code, nil
	}

	return 0, "", &ExtractionError{Strategy: s.Name(), Field: "price"}
}

func (s *GenericStrategy) extractTitle(doc *goquery.Document) (string, error) {
	for _, sel := range s.titleSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text, nil
		}
	}
	if text := strings.TrimSpace(doc.Find("title").First().Text()); text != "" {
		return text, nil
	}
	return "", &ExtractionError{Strategy: s.Name(), Field: "title"}
}

func (s *GenericStrategy) extractImage(doc *goquery.Document) string {
	for _, sel := range s.imageSelectors {
		node := doc.Find(sel).First()
		if src, ok := node.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
		if src, ok := node.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
	}
	return ""
}

// wholeFractionPrice handles templates that render a price as separate
// whole and fraction nodes. The currency comes from an adjacent symbol
// node when present, otherwise from the store's host.
func wholeFractionPrice(doc *goquery.Document, host string) (float64, string, bool) {
	whole := strings.TrimSpace(doc.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(doc.Find("span.a-price-fraction").First().Text())
	if whole == "" || fraction == "" {
		return 0, "", false
	}

	// Some templates render the decimal point inside the whole node.
	whole = strings.TrimSuffix(strings.ReplaceAll(whole, ",", ""), ".")

	price, err := strconv.ParseFloat(whole+"."+fraction, 64)
	if err != nil {
		return 0, "", false
	}

	if symbol := strings.TrimSpace(doc.Find("span.a-price-symbol").First().Text()); symbol != "" {
		return price, currency.CodeForSymbol(symbol), true
	}
	return price, currency.CodeForHost(host), true
}
