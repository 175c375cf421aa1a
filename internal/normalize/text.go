package normalize

import (
	"html"
	"strings"
)

// NormalizeText cleans a raw free-text cell: trims, collapses internal
// whitespace runs, decodes HTML entities and truncates to maxLen runes.
// Returns "" when nothing usable remains.
func NormalizeText(raw string, maxLen int) string {
	s := html.UnescapeString(raw)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	if maxLen > 0 {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = strings.TrimSpace(string(runes[:maxLen]))
		}
	}

	return s
}
