package mapping

import "testing"

func TestDetectMappingFrenchHeaders(t *testing.T) {
	headers := []string{"Code EAN", "Désignation", "PAU HT", "Qte"}
	m := DetectMapping(headers)

	expect := map[Field]int{
		FieldEAN:           0,
		FieldName:          1,
		FieldPurchasePrice: 2,
		FieldStockQuantity: 3,
	}
	for field, want := range expect {
		got, ok := m.Column(field)
		if !ok {
			t.Errorf("field %s: not detected, want column %d", field, want)
			continue
		}
		if got != want {
			t.Errorf("field %s: got column %d, want %d", field, got, want)
		}
	}
	for _, field := range []Field{FieldReference, FieldBrand, FieldIndicativePrice, FieldStockStatus} {
		if col, ok := m.Column(field); ok {
			t.Errorf("field %s: unexpectedly mapped to column %d", field, col)
		}
	}
}

func TestDetectMappingPriceSpecificity(t *testing.T) {
	// The generic "prix" alias must not steal the indicative price column.
	headers := []string{"Prix indicatif", "Prix achat", "Référence"}
	m := DetectMapping(headers)

	if col, ok := m.Column(FieldPurchasePrice); !ok || col != 1 {
		t.Errorf("purchase price: got (%d, %v), want column 1", col, ok)
	}
	if col, ok := m.Column(FieldIndicativePrice); !ok || col != 0 {
		t.Errorf("indicative price: got (%d, %v), want column 0", col, ok)
	}
	if col, ok := m.Column(FieldReference); !ok || col != 2 {
		t.Errorf("reference: got (%d, %v), want column 2", col, ok)
	}
}

func TestDetectMappingEmptyAndUnknownHeaders(t *testing.T) {
	m := DetectMapping([]string{"", "Colonne interne", "Marque"})
	if col, ok := m.Column(FieldBrand); !ok || col != 2 {
		t.Errorf("brand: got (%d, %v), want column 2", col, ok)
	}
	if m.HasIdentifier() {
		t.Error("mapping without ean or reference reports an identifier")
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Désignation", "designation"},
		{"  Code-EAN ", "code ean"},
		{"PRIX D'ACHAT (HT)", "prix d achat ht"},
		{"Qté", "qte"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMappingSetClearAndHasIdentifier(t *testing.T) {
	m := make(Mapping)
	if m.HasIdentifier() {
		t.Error("empty mapping reports an identifier")
	}
	m.Set(FieldReference, 4)
	if !m.HasIdentifier() {
		t.Error("mapping with reference column reports no identifier")
	}
	m.Clear(FieldReference)
	if _, ok := m.Column(FieldReference); ok {
		t.Error("cleared field still resolves to a column")
	}
}
