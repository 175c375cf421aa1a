package database

import (
	"time"
)

// Import job lifecycle statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Supplier product enrichment statuses. Owned by the queue coordinator
// and downstream enrichment workers, never by the import engine.
const (
	EnrichmentStatusPending   = "pending"
	EnrichmentStatusEnriching = "enriching"
	EnrichmentStatusCompleted = "completed"
	EnrichmentStatusFailed    = "failed"
)

// Enrichment queue entry statuses.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// Enrichment queue priorities.
const (
	QueuePriorityNormal = "normal"
	QueuePriorityHigh   = "high"
	QueuePriorityUrgent = "urgent"
)

// Product link match methods.
const (
	MatchMethodExact = "exact_identifier"
	MatchMethodFuzzy = "fuzzy_name"
)

// SupplierProduct is one row of supplier catalog data, scoped to the
// supplier and the account that imported it.
type SupplierProduct struct {
	ID               string     `json:"id"` // CUID2
	SupplierID       string     `json:"supplier_id"`
	UserID           string     `json:"user_id"`
	EAN              *string    `json:"ean"`       // Normalized EAN-13, nil when absent or invalid
	Reference        *string    `json:"reference"` // Supplier's own article code
	Name             *string    `json:"name"`
	Brand            *string    `json:"brand"`
	Category         *string    `json:"category"`
	PurchasePrice    *int64     `json:"purchase_price"`    // Cents
	IndicativePrice  *int64     `json:"indicative_price"`  // Cents, suggested retail
	StockQuantity    *int       `json:"stock_quantity"`
	EnrichmentStatus string     `json:"enrichment_status"` // pending | enriching | completed | failed
	ImportJobID      *string    `json:"import_job_id"`     // Job that last touched this row
	LastImportedAt   *time.Time `json:"last_imported_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ImportJob tracks one supplier file import across its chunks.
type ImportJob struct {
	ID              string     `json:"id"` // CUID2, "imp_" prefix
	SupplierID      string     `json:"supplier_id"`
	UserID          string     `json:"user_id"`
	Filename        string     `json:"filename"`
	Status          string     `json:"status"` // pending | processing | completed | failed
	TotalRows       int        `json:"total_rows"`
	TotalChunks     int        `json:"total_chunks"`
	ChunkSize       int        `json:"chunk_size"` // Rows per chunk, fixed at creation
	CompletedChunks int        `json:"completed_chunks"`
	ProcessedRows   int        `json:"processed_rows"` // Monotonic, never exceeds total_rows
	NewProducts     int        `json:"new_products"`
	UpdatedProducts int        `json:"updated_products"`
	MatchedProducts int        `json:"matched_products"`
	FailedRows      int        `json:"failed_rows"`
	ColumnMapping   *string    `json:"column_mapping"` // JSON field->column snapshot
	ErrorMessage    *string    `json:"error_message"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ImportJobChunk is the committed-chunk ledger. One row per chunk that
// has been applied to a job, keyed by (job_id, chunk_index) so a
// replayed chunk cannot increment the job counters twice.
type ImportJobChunk struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	ChunkIndex   int       `json:"chunk_index"`
	RowCount     int       `json:"row_count"`
	NewCount     int       `json:"new_count"`
	UpdatedCount int       `json:"updated_count"`
	FailedCount  int       `json:"failed_count"`
	CommittedAt  time.Time `json:"committed_at"`
}

// FailedRow records a single rejected row with enough context to show
// the operator what was wrong with it.
type FailedRow struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	RowNumber int       `json:"row_number"` // 1-based position in the source file
	RawData   string    `json:"raw_data"`   // JSON array of the original cells
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductAnalysis is a catalog product candidate that supplier rows are
// matched against. Populated by the catalog side, read-only here.
type ProductAnalysis struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	EAN       *string   `json:"ean"`
	Reference *string   `json:"reference"`
	Title     *string   `json:"title"`
	Brand     *string   `json:"brand"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductLink connects a supplier product to a catalog analysis with
// the method and confidence that produced the link.
type ProductLink struct {
	ID                string    `json:"id"` // CUID2, "lnk_" prefix
	SupplierProductID string    `json:"supplier_product_id"`
	AnalysisID        int64     `json:"analysis_id"`
	UserID            string    `json:"user_id"`
	MatchMethod       string    `json:"match_method"` // exact_identifier | fuzzy_name
	Confidence        float64   `json:"confidence"`   // 0..1
	CreatedAt         time.Time `json:"created_at"`
}

// EnrichmentQueueEntry is one unit of downstream enrichment work for a
// linked supplier product.
type EnrichmentQueueEntry struct {
	ID                string     `json:"id"` // CUID2, "enq_" prefix
	SupplierProductID string     `json:"supplier_product_id"`
	UserID            string     `json:"user_id"`
	EnrichmentTypes   []string   `json:"enrichment_types"` // Requested enrichment kinds
	Status            string     `json:"status"`           // pending | processing | completed | failed
	Priority          string     `json:"priority"`         // normal | high | urgent
	Attempts          int        `json:"attempts"`
	LastError         *string    `json:"last_error"`
	LockedAt          *time.Time `json:"locked_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DeadLetterEntry holds a chunk that exhausted its retry budget, with
// the payload needed to replay it after the underlying cause is fixed.
type DeadLetterEntry struct {
	ID            string     `json:"id"` // CUID2, "dlq_" prefix
	JobID         string     `json:"job_id"`
	ChunkIndex    int        `json:"chunk_index"`
	ChunkOffset   int        `json:"chunk_offset"` // First row covered by the chunk, 0-based
	ChunkLimit    int        `json:"chunk_limit"`  // Row count the chunk covers
	Source        string     `json:"source"`       // 'upload', 'api_feed'
	CorrelationID *string    `json:"correlation_id"`
	Payload       string     `json:"payload"` // JSON chunk rows + mapping
	ErrorMessage  string     `json:"error_message"`
	ErrorCode     *string    `json:"error_code"`
	Attempts      int        `json:"attempts"`
	Resolved      bool       `json:"resolved"`
	ResolvedBy    *string    `json:"resolved_by"`
	ResolvedAt    *time.Time `json:"resolved_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Alert is an operator-facing notification raised by the queue
// coordinator when thresholds are crossed.
type Alert struct {
	ID        int64     `json:"id"`
	Severity  string    `json:"severity"` // info | warning | critical
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Action    *string   `json:"action"` // Suggested operator action
	CreatedAt time.Time `json:"created_at"`
}
