package mapping

// Field identifies a canonical column in the supplier product schema.
// The set is closed: field mappings are type-checked, not free-form strings.
type Field string

const (
	FieldEAN             Field = "ean"
	FieldReference       Field = "reference"
	FieldName            Field = "product_name"
	FieldBrand           Field = "brand"
	FieldCategory        Field = "category"
	FieldPurchasePrice   Field = "purchase_price"
	FieldIndicativePrice Field = "indicative_price"
	FieldStockQuantity   Field = "stock_quantity"
	FieldStockStatus     Field = "stock_status"
)

// AllFields lists every canonical field in detection order. More specific
// fields come first so that shared alias fragments resolve predictably.
func AllFields() []Field {
	return []Field{
		FieldEAN,
		FieldReference,
		FieldName,
		FieldBrand,
		FieldCategory,
		FieldPurchasePrice,
		FieldIndicativePrice,
		FieldStockQuantity,
		FieldStockStatus,
	}
}

// Mapping maps canonical fields to zero-based column indices.
// A missing or nil entry means the field is not present in the file.
type Mapping map[Field]*int

// Column returns the mapped column index for a field.
func (m Mapping) Column(f Field) (int, bool) {
	idx, ok := m[f]
	if !ok || idx == nil {
		return 0, false
	}
	return *idx, true
}

// Set overrides the mapping for a single field. Used by callers that
// correct the auto-detected mapping before an import starts.
func (m Mapping) Set(f Field, column int) {
	c := column
	m[f] = &c
}

// Clear removes the mapping for a field.
func (m Mapping) Clear(f Field) {
	m[f] = nil
}
