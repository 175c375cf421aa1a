// Package importer owns the chunked import lifecycle: preparing raw
// grid rows into normalized records, upserting them into the supplier
// product set and tracking per-job progress.
package importer

import (
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/merchantiq/catalog-service/internal/normalize"
)

// Field length limits applied during normalization.
const (
	maxNameLen      = 255
	maxBrandLen     = 100
	maxCategoryLen  = 150
	maxReferenceLen = 100
)

// Record is one normalized supplier row ready for upsert. Nil fields
// mean the value was absent or unparseable; they never overwrite
// existing data.
type Record struct {
	EAN             *string
	Reference       *string
	Name            *string
	Brand           *string
	Category        *string
	PurchasePrice   *int64 // Cents
	IndicativePrice *int64 // Cents
	StockQuantity   *int
}

// HasKey reports whether the record carries anything usable to key or
// identify it. Rows without a key are rejected.
func (r Record) HasKey() bool {
	return r.EAN != nil || r.Reference != nil || r.Name != nil
}

// PreparedRow pairs a normalized record with its source position
type PreparedRow struct {
	RowNumber int // 1-based position in the source file, excluding the header
	Record    Record
}

// RejectedRow is a row that produced no record
type RejectedRow struct {
	RowNumber int
	Cells     []string
	Reason    string
}

// PrepareRows normalizes a chunk of raw rows using the column mapping.
// Malformed individual fields degrade to nil; a row is rejected only
// when it ends up with no identifier, no reference and no name. The
// firstRowNumber is the 1-based file position of rows[0].
func PrepareRows(rows [][]string, m mapping.Mapping, firstRowNumber int) ([]PreparedRow, []RejectedRow) {
	prepared := make([]PreparedRow, 0, len(rows))
	rejected := make([]RejectedRow, 0)

	for i, row := range rows {
		rowNumber := firstRowNumber + i
		record := prepareRecord(row, m)
		if !record.HasKey() {
			rejected = append(rejected, RejectedRow{
				RowNumber: rowNumber,
				Cells:     row,
				Reason:    "row has no identifier, reference or name",
			})
			continue
		}
		prepared = append(prepared, PreparedRow{RowNumber: rowNumber, Record: record})
	}

	return prepared, rejected
}

func prepareRecord(row []string, m mapping.Mapping) Record {
	var r Record

	if raw, ok := cell(row, m, mapping.FieldEAN); ok {
		if ean := normalize.NormalizeIdentifier(raw); ean != "" {
			r.EAN = &ean
		}
	}
	if raw, ok := cell(row, m, mapping.FieldReference); ok {
		if ref := normalize.NormalizeText(raw, maxReferenceLen); ref != "" {
			r.Reference = &ref
		}
	}
	if raw, ok := cell(row, m, mapping.FieldName); ok {
		if name := normalize.NormalizeText(raw, maxNameLen); name != "" {
			r.Name = &name
		}
	}
	if raw, ok := cell(row, m, mapping.FieldBrand); ok {
		if brand := normalize.NormalizeText(raw, maxBrandLen); brand != "" {
			r.Brand = &brand
		}
	}
	if raw, ok := cell(row, m, mapping.FieldCategory); ok {
		if cat := normalize.NormalizeText(raw, maxCategoryLen); cat != "" {
			r.Category = &cat
		}
	}

	if raw, ok := cell(row, m, mapping.FieldPurchasePrice); ok {
		r.PurchasePrice = normalize.NormalizePrice(raw)
	}
	if raw, ok := cell(row, m, mapping.FieldIndicativePrice); ok {
		r.IndicativePrice = normalize.NormalizePrice(raw)
		// Fallback column: only consulted when the primary price
		// column parsed to nothing
		if r.PurchasePrice == nil {
			r.PurchasePrice = r.IndicativePrice
		}
	}

	quantityRaw, _ := cell(row, m, mapping.FieldStockQuantity)
	statusRaw, _ := cell(row, m, mapping.FieldStockStatus)
	r.StockQuantity = normalize.NormalizeStock(quantityRaw, statusRaw)

	return r
}

// cell reads a mapped column from a row, tolerating short rows
func cell(row []string, m mapping.Mapping, field mapping.Field) (string, bool) {
	col, ok := m.Column(field)
	if !ok || col < 0 || col >= len(row) {
		return "", false
	}
	return row[col], true
}
