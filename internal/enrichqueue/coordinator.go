package enrichqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/merchantiq/catalog-service/internal/alerts"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/metrics"
)

const (
	// repairBatchSize bounds how many orphans are repaired per statement batch
	repairBatchSize = 50
	// repairBatchDelay spaces repair batches to bound database load
	repairBatchDelay = 100 * time.Millisecond
)

// CoordinatorConfig tunes the reconciliation sweep
type CoordinatorConfig struct {
	StuckThreshold time.Duration // Products older than this count as stuck
	HighWaterMark  int           // Orphan count that triggers a systemic alert
}

// ReconcileResult reports one reconciliation sweep
type ReconcileResult struct {
	OrphansFound    int
	OrphansRepaired int
	StuckFound      int
	StuckRepaired   int
	AlertRaised     bool
}

// DetectOrphans finds supplier products stuck in enriching with no
// live queue entry tracking them. These are products whose entry was
// lost, e.g. a worker crashed after flipping the status but before
// committing the queue row.
func DetectOrphans(ctx context.Context, db *pgxpool.Pool) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT sp.id
		FROM supplier_products sp
		WHERE sp.enrichment_status = 'enriching'
		AND NOT EXISTS (
			SELECT 1 FROM enrichment_queue eq
			WHERE eq.supplier_product_id = sp.id
			AND eq.status IN ('pending', 'processing')
		)
		ORDER BY sp.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query orphans: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DetectStuck finds enriching products whose last update is older than
// the threshold, whether or not a queue entry still exists. These get
// urgent priority on repair.
func DetectStuck(ctx context.Context, db *pgxpool.Pool, threshold time.Duration) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT id
		FROM supplier_products
		WHERE enrichment_status = 'enriching'
		AND updated_at < now() - ($1 * interval '1 second')
		ORDER BY id
	`, threshold.Seconds())
	if err != nil {
		return nil, fmt.Errorf("query stuck products: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// RepairOrphans resets each product to pending and gives it a fresh
// queue entry at the given priority. Repairs run in fixed-size batches
// with a small delay in between so a large sweep does not saturate the
// database.
func RepairOrphans(ctx context.Context, db *pgxpool.Pool, productIDs []string, priority string) (int, error) {
	if priority == "" {
		priority = database.QueuePriorityHigh
	}

	repaired := 0
	for start := 0; start < len(productIDs); start += repairBatchSize {
		end := start + repairBatchSize
		if end > len(productIDs) {
			end = len(productIDs)
		}
		batch := productIDs[start:end]

		for _, productID := range batch {
			if err := repairOne(ctx, db, productID, priority); err != nil {
				log.Error().
					Err(err).
					Str("supplier_product_id", productID).
					Msg("orphan repair failed")
				continue
			}
			repaired++
		}

		if end < len(productIDs) {
			select {
			case <-ctx.Done():
				return repaired, ctx.Err()
			case <-time.After(repairBatchDelay):
			}
		}
	}

	return repaired, nil
}

// repairOne resets the product and enqueues it. The status reset comes
// first so a crash between the two leaves the product in pending,
// where the normal enqueue path can pick it up, not back in the orphan
// state.
func repairOne(ctx context.Context, db *pgxpool.Pool, productID, priority string) error {
	var userID string
	err := db.QueryRow(ctx, `
		UPDATE supplier_products
		SET enrichment_status = 'pending', updated_at = now()
		WHERE id = $1
		RETURNING user_id
	`, productID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("reset product status: %w", err)
	}

	_, err = Enqueue(ctx, db, EnqueueInput{
		SupplierProductID: productID,
		UserID:            userID,
		Priority:          priority,
	})
	if err != nil {
		return fmt.Errorf("enqueue repair entry: %w", err)
	}

	return nil
}

// Reconcile runs one full coordinator sweep: repair orphans, then
// stuck products at urgent priority. An orphan count above the high
// water mark additionally raises a critical alert, since mass orphaning
// signals a systemic failure rather than isolated worker races.
func Reconcile(ctx context.Context, db *pgxpool.Pool, cfg CoordinatorConfig) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	orphans, err := DetectOrphans(ctx, db)
	if err != nil {
		return nil, err
	}
	result.OrphansFound = len(orphans)

	if cfg.HighWaterMark > 0 && len(orphans) > cfg.HighWaterMark {
		result.AlertRaised = true
		action := "inspect enrichment workers and queue consumer health"
		if err := alerts.Raise(ctx, db, alerts.SeverityCritical,
			"enrichment orphan high-water mark exceeded",
			fmt.Sprintf("%d orphaned products found in one sweep (high-water mark %d)", len(orphans), cfg.HighWaterMark),
			&action,
		); err != nil {
			log.Error().Err(err).Msg("failed to raise orphan alert")
		}
	}

	repaired, err := RepairOrphans(ctx, db, orphans, database.QueuePriorityHigh)
	result.OrphansRepaired = repaired
	metrics.QueueRepairs.WithLabelValues("orphan").Add(float64(repaired))
	if err != nil {
		return result, err
	}

	if cfg.StuckThreshold > 0 {
		stuck, err := DetectStuck(ctx, db, cfg.StuckThreshold)
		if err != nil {
			return result, err
		}
		result.StuckFound = len(stuck)

		repaired, err := RepairOrphans(ctx, db, stuck, database.QueuePriorityUrgent)
		result.StuckRepaired = repaired
		metrics.QueueRepairs.WithLabelValues("stuck").Add(float64(repaired))
		if err != nil {
			return result, err
		}
	}

	if result.OrphansFound > 0 || result.StuckFound > 0 {
		log.Info().
			Int("orphans_found", result.OrphansFound).
			Int("orphans_repaired", result.OrphansRepaired).
			Int("stuck_found", result.StuckFound).
			Int("stuck_repaired", result.StuckRepaired).
			Bool("alert_raised", result.AlertRaised).
			Msg("queue reconciliation sweep completed")
	}

	return result, nil
}
