package matcher

import (
	"testing"

	"github.com/merchantiq/catalog-service/internal/database"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"widget a", "widget a", 1.0},
		{"", "", 0.0},
		{"widget", "", 0.0},
		{"abcd", "wxyz", 0.0},
	}
	for _, tt := range tests {
		if got := NameSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("NameSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	// One edit in a ten-rune name scores 0.9
	if got := NameSimilarity("widget abc", "widget abd"); got != 0.9 {
		t.Errorf("NameSimilarity one edit = %v, want 0.9", got)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Évian  1,5L", "evian 1 5l"},
		{"  Widget-A ", "widget a"},
		{"CAFÉ", "cafe"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"widget", "widget", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func strp(s string) *string { return &s }

func testIndex(candidates []candidate) *candidateIndex {
	index := &candidateIndex{
		byEAN:       make(map[string]int64),
		byReference: make(map[string]int64),
	}
	for _, c := range candidates {
		if c.ean != "" {
			if _, seen := index.byEAN[c.ean]; !seen {
				index.byEAN[c.ean] = c.id
			}
		}
		if c.reference != "" {
			if _, seen := index.byReference[c.reference]; !seen {
				index.byReference[c.reference] = c.id
			}
		}
		index.all = append(index.all, c)
	}
	return index
}

func TestFindMatchExactBeatsFuzzy(t *testing.T) {
	// Analysis 1 holds the exact identifier; analysis 2 is a near-perfect
	// name match. The identifier tier must always win.
	index := testIndex([]candidate{
		{id: 1, ean: "4006381333931", title: "completely different product"},
		{id: 2, title: "widget deluxe a"},
	})

	product := database.SupplierProduct{
		EAN:  strp("4006381333931"),
		Name: strp("Widget Deluxe A"),
	}

	id, method, confidence := findMatch(index, DefaultFuzzyThreshold, product)
	if method != database.MatchMethodExact {
		t.Fatalf("method = %q, want %q", method, database.MatchMethodExact)
	}
	if id != 1 {
		t.Errorf("analysis id = %d, want 1", id)
	}
	if confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", confidence)
	}
}

func TestFindMatchFuzzyAboveThreshold(t *testing.T) {
	index := testIndex([]candidate{
		{id: 7, title: "cafe moulu arabica 250g"},
	})

	product := database.SupplierProduct{Name: strp("Café Moulu Arabica 250G")}

	id, method, confidence := findMatch(index, DefaultFuzzyThreshold, product)
	if method != database.MatchMethodFuzzy {
		t.Fatalf("method = %q, want %q", method, database.MatchMethodFuzzy)
	}
	if id != 7 {
		t.Errorf("analysis id = %d, want 7", id)
	}
	if confidence <= DefaultFuzzyThreshold || confidence > 1.0 {
		t.Errorf("confidence = %v, want in (0.8, 1.0]", confidence)
	}
}

func TestFindMatchThresholdIsStrict(t *testing.T) {
	// similarity exactly at the threshold must not link
	index := testIndex([]candidate{
		{id: 3, title: "abcdefghij"},
	})

	// "abcdefghXX" vs "abcdefghij": distance 2 over length 10 = 0.8 exactly
	product := database.SupplierProduct{Name: strp("abcdefghxx")}

	_, method, _ := findMatch(index, 0.8, product)
	if method != "" {
		t.Errorf("method = %q, want no match at exactly the threshold", method)
	}
}

func TestFindMatchTieBreaksOnLowestID(t *testing.T) {
	// Two identical titles: the lower analysis id wins regardless of order
	index := testIndex([]candidate{
		{id: 9, title: "widget premium"},
		{id: 4, title: "widget premium"},
	})

	product := database.SupplierProduct{Name: strp("Widget Premium")}

	id, method, _ := findMatch(index, DefaultFuzzyThreshold, product)
	if method != database.MatchMethodFuzzy {
		t.Fatalf("method = %q, want fuzzy", method)
	}
	if id != 4 {
		t.Errorf("analysis id = %d, want 4 (lowest id tie-break)", id)
	}
}

func TestFindMatchNoName(t *testing.T) {
	index := testIndex([]candidate{
		{id: 1, title: "widget"},
	})

	_, method, _ := findMatch(index, DefaultFuzzyThreshold, database.SupplierProduct{})
	if method != "" {
		t.Errorf("method = %q, want no match for product without identifier or name", method)
	}
}
