package scraper

import "fmt"

// InvalidInputError reports a URL rejected before any network access.
type InvalidInputError struct {
	URL    string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input URL %q: %s", e.URL, e.Reason)
}

// FetchError reports a network or HTTP failure that survived every
// retry attempt.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChallengeError reports bot mitigation that was still blocking the
// page after every identity rotation. Distinct from FetchError so
// callers can apply a longer cool-down before rescheduling the URL.
type ChallengeError struct {
	URL      string
	Attempts int
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("bot challenge persisted for %s after %d attempts", e.URL, e.Attempts)
}

// ExtractionError reports a required field that no tier of the chosen
// strategy could locate in the document.
type ExtractionError struct {
	Strategy string
	Field    string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s strategy could not extract %s", e.Strategy, e.Field)
}
