package feed

import (
	"testing"

	"github.com/merchantiq/catalog-service/internal/mapping"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Delimiter
	}{
		{
			"semicolon",
			"Code EAN;Désignation;PAU HT\n4006381333931;Widget A;12,50\n;Widget B;NC\n",
			DelimiterSemicolon,
		},
		{
			"comma",
			"ean,name,price\n4006381333931,Widget A,12.50\n",
			DelimiterComma,
		},
		{
			"tab",
			"ean\tname\tprice\n4006381333931\tWidget A\t12.50\n",
			DelimiterTab,
		},
		{
			"semicolon beats commas inside values",
			"ref;name;price\nA1;\"Widget, small\";10,50\nA2;\"Widget, large\";12,99\nA3;Widget;9,00\nA4;Gadget;1,00\nA5;Thing;2,00\n",
			DelimiterSemicolon,
		},
		{"empty defaults to comma", "", DelimiterComma},
	}

	for _, tt := range tests {
		if got := DetectDelimiter(tt.content); got != tt.want {
			t.Errorf("%s: DetectDelimiter = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	data := []byte("Code EAN;Désignation;PAU HT;Qte\n4006381333931;Widget A;\"12,50\";7\n;Widget B;NC;Non disponible\n")

	grid, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	if len(grid.Headers) != 4 {
		t.Fatalf("headers = %v, want 4 columns", grid.Headers)
	}
	if grid.Headers[1] != "Désignation" {
		t.Errorf("header 1 = %q, want Désignation", grid.Headers[1])
	}
	if grid.RowCount() != 2 {
		t.Fatalf("rows = %d, want 2", grid.RowCount())
	}
	if grid.Rows[0][2] != "12,50" {
		t.Errorf("quoted cell = %q, want 12,50", grid.Rows[0][2])
	}
}

func TestParseCSVWindows1252(t *testing.T) {
	// "Désignation" with the é as a single 0xE9 byte
	data := append([]byte("Code EAN;D"), 0xE9)
	data = append(data, []byte("signation\n4006381333931;Widget\n")...)

	grid, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if grid.Headers[1] != "Désignation" {
		t.Errorf("header 1 = %q, want Désignation after charset decode", grid.Headers[1])
	}
}

func TestGridChunk(t *testing.T) {
	grid := &Grid{Rows: [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}}

	chunks := grid.Chunk(2)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Errorf("chunk sizes = %d/%d/%d, want 2/2/1", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	if got := (&Grid{}).Chunk(2); got != nil {
		t.Errorf("empty grid chunks = %v, want nil", got)
	}
}

func TestParseAPIFeed(t *testing.T) {
	payload := []byte(`[
		{"identifiers": {"ean13": "4006381333931"}, "label": "Widget A", "pricing": {"unit": 12.5}, "stock": 7},
		{"identifiers": {}, "label": "Widget B", "pricing": {}, "stock": null}
	]`)

	paths := FieldPaths{
		mapping.FieldEAN:           "identifiers.ean13",
		mapping.FieldName:          "label",
		mapping.FieldPurchasePrice: "pricing.unit",
		mapping.FieldStockQuantity: "stock",
	}

	grid, m, err := ParseAPIFeed(payload, paths)
	if err != nil {
		t.Fatalf("ParseAPIFeed: %v", err)
	}

	if grid.RowCount() != 2 {
		t.Fatalf("rows = %d, want 2", grid.RowCount())
	}

	col, ok := m.Column(mapping.FieldEAN)
	if !ok {
		t.Fatal("ean column not mapped")
	}
	if grid.Rows[0][col] != "4006381333931" {
		t.Errorf("ean cell = %q, want 4006381333931", grid.Rows[0][col])
	}

	priceCol, _ := m.Column(mapping.FieldPurchasePrice)
	if grid.Rows[0][priceCol] != "12.5" {
		t.Errorf("price cell = %q, want 12.5", grid.Rows[0][priceCol])
	}

	// Missing nested values degrade to empty cells
	if grid.Rows[1][col] != "" {
		t.Errorf("missing ean cell = %q, want empty", grid.Rows[1][col])
	}
}

func TestDetectEncoding(t *testing.T) {
	if enc := DetectEncoding([]byte("plain ascii")); enc != EncodingUTF8 {
		t.Errorf("ascii = %q, want utf-8", enc)
	}
	if enc := DetectEncoding([]byte{0xEF, 0xBB, 0xBF, 'a'}); enc != EncodingUTF8 {
		t.Errorf("bom = %q, want utf-8", enc)
	}
	if enc := DetectEncoding([]byte{'D', 0xE9, 's'}); enc != EncodingWindows1252 {
		t.Errorf("latin bytes = %q, want windows-1252", enc)
	}
}
