// Package enrichqueue coordinates downstream enrichment work. It only
// creates and repairs queue entries; enrichment workers consume them
// out of process.
package enrichqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/pkg/cuid2"
)

// DefaultEnrichmentTypes is requested when the caller does not name
// specific enrichment kinds.
var DefaultEnrichmentTypes = []string{"content", "marketplace"}

// EnqueueInput describes one enrichment request
type EnqueueInput struct {
	SupplierProductID string
	UserID            string
	EnrichmentTypes   []string // Defaults to DefaultEnrichmentTypes
	Priority          string   // Defaults to normal
}

// EnqueueResult reports whether a new entry was created
type EnqueueResult struct {
	EntryID string
	Created bool // False when a non-terminal entry already exists
}

// Enqueue inserts a pending queue entry for a supplier product. A
// product with an entry already in pending or processing keeps that
// entry, but its priority is raised when the incoming request outranks
// it. Priority never drops, so repeat calls at lower priority are
// no-ops.
func Enqueue(ctx context.Context, db *pgxpool.Pool, input EnqueueInput) (*EnqueueResult, error) {
	if input.SupplierProductID == "" {
		return nil, fmt.Errorf("supplier product id is required")
	}
	if input.Priority == "" {
		input.Priority = database.QueuePriorityNormal
	}
	types := input.EnrichmentTypes
	if len(types) == 0 {
		types = DefaultEnrichmentTypes
	}

	entryID := cuid2.GenerateQueueEntryID()

	var id string
	var created bool
	err := db.QueryRow(ctx, `
		INSERT INTO enrichment_queue (id, supplier_product_id, user_id, enrichment_types, status, priority, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, 0, now(), now())
		ON CONFLICT (supplier_product_id) WHERE status IN ('pending', 'processing')
		DO UPDATE SET priority = EXCLUDED.priority, updated_at = now()
		WHERE array_position(ARRAY['normal', 'high', 'urgent'], EXCLUDED.priority)
			> array_position(ARRAY['normal', 'high', 'urgent'], enrichment_queue.priority)
		RETURNING id, (xmax = 0) AS inserted
	`, entryID, input.SupplierProductID, input.UserID, types, input.Priority).Scan(&id, &created)

	if err == pgx.ErrNoRows {
		// An active entry already holds this priority or better
		err = db.QueryRow(ctx, `
			SELECT id FROM enrichment_queue
			WHERE supplier_product_id = $1 AND status IN ('pending', 'processing')
			LIMIT 1
		`, input.SupplierProductID).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("lookup existing entry: %w", err)
		}
		return &EnqueueResult{EntryID: id, Created: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}

	return &EnqueueResult{EntryID: id, Created: created}, nil
}

// Stats summarizes the queue for the status surface
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Urgent     int `json:"urgent"` // Non-terminal entries at urgent priority
}

// GetStats returns entry counts by status
func GetStats(ctx context.Context, db *pgxpool.Pool) (*Stats, error) {
	var s Stats
	err := db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'processing') AND priority = 'urgent')
		FROM enrichment_queue
	`).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed, &s.Urgent)
	if err != nil {
		return nil, fmt.Errorf("query queue stats: %w", err)
	}
	return &s, nil
}
