package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/config"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
	defaultTimeout     = 30 * time.Second

	retryReferer = "https://www.google.com/"
)

// defaultUserAgents mimics a small population of current desktop
// browsers. One is chosen at random per attempt; a challenge response
// forces a different one on the next attempt.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// browserHeaders accompanies every request so the fetch resembles a
// browser navigation. Accept-Encoding is left to the transport so
// bodies arrive transparently decompressed.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
}

// challengeMarkers are the literal substrings a bot-mitigation page
// carries in place of real content, matched case-insensitively.
var challengeMarkers = []string{"captcha", "robot check"}

// Fetcher retrieves raw page content over HTTP with rotating browser
// identities, linear retry backoff, and bot-challenge detection. It
// keeps no per-URL state; a shared instance is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	userAgents  []string
	logger      *slog.Logger
}

func NewFetcher(cfg config.ScraperConfig, logger *slog.Logger) *Fetcher {
	maxAttempts := cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = defaultRetryDelay
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}

	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		userAgents:  agents,
		logger:      logger.With("component", "fetcher"),
	}
}

// Fetch retrieves the raw HTML for a URL. Network and HTTP failures
// are retried up to the attempt limit, sleeping retryDelay times the
// number of attempts already made between tries. A 2xx body containing
// a challenge marker is never returned as content: the browser
// identity is rotated and the attempt budget consumed instead. The
// error reports whether the URL ultimately failed on transport
// (FetchError) or on bot mitigation (ChallengeError).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := validateInput(rawURL); err != nil {
		return "", err
	}

	userAgent := f.pickUserAgent("")
	challenged := false
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, f.retryDelay*time.Duration(attempt-1)); err != nil {
				return "", err
			}
			if !challenged {
				userAgent = f.pickUserAgent("")
			}
		}

		f.logger.Info("fetching page", "url", rawURL, "attempt", attempt, "max_attempts", f.maxAttempts)

		body, err := f.do(ctx, rawURL, userAgent, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			challenged = false
			lastErr = err
			f.logger.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt, "error", err)
			continue
		}

		if marker := detectChallenge(body); marker != "" {
			challenged = true
			lastErr = fmt.Errorf("challenge marker %q in response body", marker)
			f.logger.Warn("bot challenge detected", "url", rawURL, "attempt", attempt, "marker", marker)
			userAgent = f.pickUserAgent(userAgent)
			continue
		}

		return body, nil
	}

	if challenged {
		return "", &ChallengeError{URL: rawURL, Attempts: f.maxAttempts}
	}
	return "", &FetchError{URL: rawURL, Attempts: f.maxAttempts, Err: lastErr}
}

func (f *Fetcher) do(ctx context.Context, rawURL, userAgent string, attempt int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", userAgent)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if attempt > 1 {
		req.Header.Set("Referer", retryReferer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) pickUserAgent(exclude string) string {
	if len(f.userAgents) == 1 {
		return f.userAgents[0]
	}
	for {
		ua := f.userAgents[rand.Intn(len(f.userAgents))]
		if ua != exclude {
			return ua
		}
	}
}

func validateInput(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidInputError{URL: rawURL, Reason: "malformed URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidInputError{URL: rawURL, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &InvalidInputError{URL: rawURL, Reason: "missing host"}
	}
	return nil
}

func detectChallenge(body string) string {
	lower := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
