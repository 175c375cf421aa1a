package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var currencyTextRe = regexp.MustCompile(`\s*(EUR|USD|GBP|HT|TTC)\s*$`)

// placeholder tokens suppliers use for "no price available"
var pricePlaceholders = map[string]bool{
	"nc":   true,
	"n/a":  true,
	"na":   true,
	"-":    true,
	"—":    true,
	"--":   true,
	"null": true,
}

// NormalizePrice parses a raw supplier price cell into minor units (cents).
// Handles "12.99", "12,99", "1.299,00", "1 234,56 €" and placeholder tokens.
// Returns nil for placeholders, unparseable input and non-positive values.
func NormalizePrice(raw string) *int64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	if pricePlaceholders[strings.ToLower(cleaned)] {
		return nil
	}

	// Remove currency symbols and thousands-separator spaces
	cleaned = strings.Map(func(r rune) rune {
		if r == '€' || r == '$' || r == '£' || r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, cleaned)

	cleaned = currencyTextRe.ReplaceAllString(strings.ToUpper(cleaned), "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}

	// Determine decimal separator: whichever of '.' and ',' appears last is
	// the decimal point, the other is a thousands separator.
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	if lastComma > lastDot {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else if lastDot > lastComma {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	value, err := parseFloat(cleaned)
	if err != nil {
		return nil
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return nil
	}

	cents := int64(math.Round(value * 100))
	if cents <= 0 {
		return nil
	}
	return &cents
}

// parseFloat parses the whole string or fails. Anything left over
// after the number ("12,50 kg", "12x50") is an error, never a partial
// value.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// FormatCents formats minor units as a decimal string (e.g., 1250 -> "12.50")
func FormatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100.0)
}
