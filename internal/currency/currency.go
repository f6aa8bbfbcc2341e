package currency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Codes is the fixed set of currencies the tracker emits. Anything a
// strategy detects outside this set is remapped to USD during
// validation.
var Codes = []string{"USD", "EUR", "GBP", "JPY", "INR"}

var symbolCodes = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var (
	symbolPattern  = regexp.MustCompile(`[$€£¥₹]`)
	residuePattern = regexp.MustCompile(`[^\d.,]`)
	amountPattern  = regexp.MustCompile(`[\d,]+\.?\d*`)
)

// maxPlainLength is the longest cleaned price string taken at face
// value. Longer strings are almost always several prices concatenated
// by the template, so only the first amount group is kept.
const maxPlainLength = 8

// CodeForSymbol maps a currency glyph to its 3-letter code. Unknown
// symbols fall back to USD.
func CodeForSymbol(symbol string) string {
	if code, ok := symbolCodes[symbol]; ok {
		return code
	}
	return "USD"
}

// Detect scans price text for a currency glyph and maps it to a code.
// Text without a glyph falls back to the source host's country TLD,
// then USD.
func Detect(text, host string) string {
	if sym := symbolPattern.FindString(text); sym != "" {
		return CodeForSymbol(sym)
	}
	return CodeForHost(host)
}

// CodeForHost infers a currency from the country-coded TLD of a
// hostname. Hosts without a recognized country suffix map to USD.
func CodeForHost(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.HasSuffix(host, ".in"):
		return "INR"
	case strings.HasSuffix(host, ".uk"):
		return "GBP"
	case strings.HasSuffix(host, ".de"),
		strings.HasSuffix(host, ".fr"),
		strings.HasSuffix(host, ".it"),
		strings.HasSuffix(host, ".es"):
		return "EUR"
	default:
		return "USD"
	}
}

// IsSupported reports whether code is one of the fixed currency codes.
func IsSupported(code string) bool {
	for _, c := range Codes {
		if c == code {
			return true
		}
	}
	return false
}

// ParseAmount converts extracted price text into a decimal value.
//
// The cleaning pipeline strips currency glyphs and any character that
// is not a digit or separator, then repairs two markup quirks before
// parsing: price text a template rendered twice back-to-back in the
// same node (the cleaned string splits into two identical halves), and
// text that concatenates several amounts (implausibly long, keep the
// first amount group). Parse failures are returned as errors, never
// coerced to zero.
func ParseAmount(text string) (float64, error) {
	cleaned := symbolPattern.ReplaceAllString(text, "")
	cleaned = residuePattern.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric content in price text %q", text)
	}

	if half := len(cleaned) / 2; half > 0 && cleaned[:half] == cleaned[half:] {
		cleaned = cleaned[:half]
	} else if len(cleaned) > maxPlainLength {
		if m := amountPattern.FindString(cleaned); m != "" {
			cleaned = m
		}
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price text %q", text)
	}
	return value, nil
}
