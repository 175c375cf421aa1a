package importer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchantiq/catalog-service/internal/pkg/cuid2"
)

// UpsertOutcome classifies what an upsert did
type UpsertOutcome string

const (
	OutcomeCreated  UpsertOutcome = "created"
	OutcomeUpdated  UpsertOutcome = "updated"
	OutcomeRejected UpsertOutcome = "rejected"
)

// UpsertRow applies one normalized record to the supplier's product
// set, scoped to (supplier, user). Lookup key priority: EAN, then
// reference, then name. On update only non-nil incoming fields
// overwrite stored values, so a sparse row never nulls out data a
// previous import provided. Safe under concurrent invocation for
// different rows; two workers hitting the same key resolve through the
// database's conflict handling, last write wins.
func UpsertRow(ctx context.Context, db *pgxpool.Pool, supplierID, userID, jobID string, r Record) (UpsertOutcome, error) {
	var conflictTarget string
	switch {
	case r.EAN != nil:
		conflictTarget = "(supplier_id, user_id, ean) WHERE ean IS NOT NULL"
	case r.Reference != nil:
		conflictTarget = "(supplier_id, user_id, reference) WHERE ean IS NULL AND reference IS NOT NULL"
	case r.Name != nil:
		conflictTarget = "(supplier_id, user_id, name) WHERE ean IS NULL AND reference IS NULL"
	default:
		return OutcomeRejected, nil
	}

	query := `
		INSERT INTO supplier_products (
			id, supplier_id, user_id, ean, reference, name, brand, category,
			purchase_price, indicative_price, stock_quantity,
			enrichment_status, import_job_id, last_imported_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			'pending', $12, now(), now(), now()
		)
		ON CONFLICT ` + conflictTarget + ` DO UPDATE SET
			reference = COALESCE(EXCLUDED.reference, supplier_products.reference),
			name = COALESCE(EXCLUDED.name, supplier_products.name),
			brand = COALESCE(EXCLUDED.brand, supplier_products.brand),
			category = COALESCE(EXCLUDED.category, supplier_products.category),
			purchase_price = COALESCE(EXCLUDED.purchase_price, supplier_products.purchase_price),
			indicative_price = COALESCE(EXCLUDED.indicative_price, supplier_products.indicative_price),
			stock_quantity = COALESCE(EXCLUDED.stock_quantity, supplier_products.stock_quantity),
			import_job_id = EXCLUDED.import_job_id,
			last_imported_at = now(),
			updated_at = now()
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := db.QueryRow(ctx, query,
		cuid2.GenerateProductID(), supplierID, userID,
		r.EAN, r.Reference, r.Name, r.Brand, r.Category,
		r.PurchasePrice, r.IndicativePrice, r.StockQuantity,
		jobID,
	).Scan(&inserted)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("upsert supplier product: %w", err)
	}

	if inserted {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}
