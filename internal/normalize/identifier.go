package normalize

import "regexp"

var (
	identifierSeparatorRe = regexp.MustCompile(`[\s\-]`)
	thirteenDigitsRe      = regexp.MustCompile(`^[0-9]{13}$`)
	allZerosRe            = regexp.MustCompile(`^0+$`)
)

// NormalizeIdentifier validates a raw EAN-13 cell value.
// Returns the cleaned 13-digit code, or "" for anything that is not a
// checksum-valid EAN-13. Invalid identifiers never fail the row, they are
// simply dropped.
func NormalizeIdentifier(raw string) string {
	code := identifierSeparatorRe.ReplaceAllString(raw, "")
	if code == "" {
		return ""
	}

	if !thirteenDigitsRe.MatchString(code) {
		return ""
	}

	// Placeholder codes (all zeros) carry a valid checksum but identify nothing
	if allZerosRe.MatchString(code) {
		return ""
	}

	if !ValidEAN13CheckDigit(code) {
		return ""
	}

	return code
}

// ValidEAN13CheckDigit verifies the weighted mod-10 check digit of a
// 13-digit code: digits at even positions count once, odd positions count three times.
func ValidEAN13CheckDigit(code string) bool {
	if len(code) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(code[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - (sum % 10)) % 10
	return int(code[12]-'0') == check
}
