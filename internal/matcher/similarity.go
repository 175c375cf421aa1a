package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveDiacritics strips combining marks so "Évian" compares equal to "Evian"
func RemoveDiacritics(s string) string {
	result, _, err := transform.String(diacriticRemover, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizeName prepares a product name for fuzzy comparison:
// lowercase, diacritics stripped, punctuation collapsed to spaces.
func NormalizeName(s string) string {
	s = strings.ToLower(RemoveDiacritics(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// levenshtein computes edit distance between two strings using two rows
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// NameSimilarity returns a similarity score in [0, 1] between two
// normalized product names. 1.0 means identical, 0.0 means nothing in
// common. Based on edit distance relative to the longer name.
func NameSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}

	dist := levenshtein(a, b)
	return float64(longer-dist) / float64(longer)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
