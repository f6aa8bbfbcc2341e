package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// Source describes the page a strategy extracts from. HTML carries the
// unparsed body for strategies whose deeper fallback tiers pattern-match
// the raw markup.
type Source struct {
	URL  string
	Host string
	HTML string
}

// Strategy extracts raw product fields from a parsed storefront page.
// Implementations return ExtractionError when no tier can locate a
// required field; the optional image degrades to empty instead.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document, src *Source) (*models.RawFields, error)
}

// Registry maps store domains to extraction strategies. Matching is a
// substring test of each registered domain fragment against the URL
// host, in registration order, so the first registered match wins.
// Unmatched hosts resolve to the generic strategy; resolution never
// fails.
//
// The registry is populated once at startup and read-only afterward,
// which makes it safe to share across scrape workers.
type Registry struct {
	entries  []registryEntry
	fallback Strategy
}

type registryEntry struct {
	domains  []string
	strategy Strategy
}

// NewRegistry builds the default strategy table.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewGenericStrategy()}
	r.Register(NewAmazonStrategy(), "amazon.com", "amazon.in")
	return r
}

// Register appends a strategy for one or more domain fragments.
func (r *Registry) Register(s Strategy, domains ...string) {
	r.entries = append(r.entries, registryEntry{domains: domains, strategy: s})
}

// ForURL resolves the strategy for a product URL. Unknown and
// unparseable hosts fall back to the generic strategy.
func (r *Registry) ForURL(rawURL string) Strategy {
	host := hostOf(rawURL)
	for _, e := range r.entries {
		for _, d := range e.domains {
			if strings.Contains(host, d) {
				return e.strategy
			}
		}
	}
	return r.fallback
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
