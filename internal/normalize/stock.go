package normalize

import (
	"strconv"
	"strings"
)

// NormalizeStock derives a stock quantity from a raw quantity cell, falling
// back to a textual availability/status cell when the quantity is not numeric.
// Returns nil when nothing can be determined.
func NormalizeStock(quantityRaw, statusRaw string) *int {
	qty := strings.TrimSpace(quantityRaw)
	if qty != "" {
		if n, err := strconv.Atoi(qty); err == nil && n >= 0 {
			return &n
		}
		if v := stockFromText(qty); v != nil {
			return v
		}
	}

	status := strings.TrimSpace(statusRaw)
	if status != "" {
		if v := stockFromText(status); v != nil {
			return v
		}
	}

	return nil
}

// stockFromText interprets availability wording. "non disponible" must be
// checked before "disponible" because of the substring overlap.
func stockFromText(s string) *int {
	text := strings.ToLower(strings.TrimSpace(s))

	zero, one := 0, 1

	switch {
	case strings.Contains(text, "non disponible"),
		strings.Contains(text, "indisponible"),
		strings.Contains(text, "rupture"),
		text == "nc":
		return &zero
	case strings.Contains(text, "disponible"),
		strings.Contains(text, "en stock"):
		return &one
	}

	return nil
}
