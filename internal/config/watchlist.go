package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Watchlist is a YAML seed file of product URLs to track, imported at
// startup or through the CLI.
type Watchlist struct {
	Products []WatchlistEntry `yaml:"products"`
}

type WatchlistEntry struct {
	URL  string `yaml:"url"`
	Note string `yaml:"note,omitempty"`
}

// LoadWatchlist reads and parses a watchlist file, returning the
// product URLs in file order. Entries without a URL are skipped.
func LoadWatchlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist %s: %w", path, err)
	}

	urls := make([]string, 0, len(wl.Products))
	for _, p := range wl.Products {
		if p.URL != "" {
			urls = append(urls, p.URL)
		}
	}
	return urls, nil
}
