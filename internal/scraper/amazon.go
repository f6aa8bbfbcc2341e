package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/currency"
	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// AmazonStrategy extracts product fields from Amazon storefronts. The
// price hunt runs four tiers, each less reliable than the last: the
// selector list, the split whole/fraction pair, price fields embedded
// in the raw markup (JSON blobs and inline spans the DOM walk misses),
// and finally the buy-new purchase option section. The first tier that
// parses wins.
type AmazonStrategy struct {
	priceSelectors   []string
	embeddedPatterns []embeddedPattern
}

// embeddedPattern pairs a raw-markup price pattern with the currency it
// implies. An empty code means the currency is inferred from the store
// host instead.
type embeddedPattern struct {
	re   *regexp.Regexp
	code string
}

func NewAmazonStrategy() *AmazonStrategy {
	return &AmazonStrategy{
		priceSelectors: []string{
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			".a-price .a-offscreen",
			"#price_inside_buybox",
			".apexPriceToPay .a-offscreen",
			".priceToPay .a-offscreen",
			"#apex_desktop .a-offscreen",
			"#corePriceDisplay_desktop_feature_div .a-offscreen",
			"span.a-size-medium.a-color-price",
			"span.a-color-price",
		},
		embeddedPatterns: []embeddedPattern{
			{re: regexp.MustCompile(`"priceAmount":\s*(\d+(?:\.\d+)?)`)},
			{re: regexp.MustCompile(`"formattedPrice":\s*"₹\s*(\d+(?:,\d+)*(?:\.\d+)?)"`), code: "INR"},
			{re: regexp.MustCompile(`"buyingPrice":\s*"₹\s*(\d+(?:,\d+)*(?:\.\d+)?)"`), code: "INR"},
			{re: regexp.MustCompile(`id="priceblock_ourprice"[^>]*>₹\s*(\d+(?:,\d+)*(?:\.\d+)?)`), code: "INR"},
			{re: regexp.MustCompile(`class="a-price-whole">(\d+(?:,\d+)*)</span><span class="a-price-fraction">(\d+)`)},
			{re: regexp.MustCompile(`₹\s*(\d+(?:,\d+)*(?:\.\d+)?)`), code: "INR"},
		},
	}
}

func (s *AmazonStrategy) Name() string { return "amazon" }

func (s *AmazonStrategy) Extract(doc *goquery.Document, src *Source) (*models.RawFields, error) {
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

func (s *AmazonStrategy) extractPrice(doc *goquery.Document, src *Source) (float64, string, error) {
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

	if price, code, ok := s.embeddedPrice(src); ok {
		return price, code, nil
	}

	if price, code, ok := s.buyNewPrice(doc, src.Host); ok {
		return price, code, nil
	}

	return 0, "", &ExtractionError{Strategy: s.Name(), Field: "price"}
}

// embeddedPrice pattern-matches price fields in the raw markup. Amazon
// keeps pricing in JSON blobs inside the page, so this recovers prices
// the rendered DOM does not expose as selectable text.
func (s *AmazonStrategy) embeddedPrice(src *Source) (float64, string, bool) {
	for _, p := range s.embeddedPatterns {
		m := p.re.FindStringSubmatch(src.HTML)
		if m == nil {
			continue
		}

		raw := strings.ReplaceAll(m[1], ",", "")
		if len(m) > 2 && m[2] != "" {
			raw = raw + "." + m[2]
		}

		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}

		code := p.code
		if code == "" {
			code = currency.CodeForHost(src.Host)
		}
		return price, code, true
	}
	return 0, "", false
}

// buyNewPrice inspects the buy-new purchase option section, the last
// place a price reliably appears on listings without a buy box.
func (s *AmazonStrategy) buyNewPrice(doc *goquery.Document, host string) (float64, string, bool) {
	text := strings.TrimSpace(doc.Find("#buyNewSection .a-color-price").First().Text())
	if text == "" {
		return 0, "", false
	}

	price, err := currency.ParseAmount(text)
	if err != nil {
		return 0, "", false
	}
	return price, currency.Detect(text, host), true
}

func (s *AmazonStrategy) extractTitle(doc *goquery.Document) (string, error) {
	if text := strings.TrimSpace(doc.Find("#productTitle").First().Text()); text != "" {
		return text, nil
	}

	if text := strings.TrimSpace(doc.Find("title").First().Text()); text != "" {
		// Page titles usually end with " : Amazon.com".
		if i := strings.Index(text, " : "); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text != "" {
			return text, nil
		}
	}

	return "", &ExtractionError{Strategy: s.Name(), Field: "title"}
}

func (s *AmazonStrategy) extractImage(doc *goquery.Document) string {
	node := doc.Find("#landingImage").First()
	if node.Length() == 0 {
		node = doc.Find("#imgBlkFront").First()
	}
	if node.Length() > 0 {
		if src, ok := node.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
		if raw, ok := node.Attr("data-a-dynamic-image"); ok {
			if u := firstDynamicImageURL(raw); u != "" {
				return u
			}
		}
	}

	for _, sel := range []string{"#main-image", "#imgTagWrapperId img"} {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
	}
	return ""
}

// firstDynamicImageURL returns the first URL key of Amazon's
// data-a-dynamic-image JSON attribute. Decoding into a map would lose
// the attribute's key order, so the tokens are read directly.
func firstDynamicImageURL(raw string) string {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ""
	}

	tok, err = dec.Token()
	if err != nil {
		return ""
	}
	key, _ := tok.(string)
	return key
}
