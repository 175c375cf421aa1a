package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/dlq"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/merchantiq/catalog-service/internal/matcher"
)

// setupTestDB creates a test database container for integration testing
func setupTestDB(ctx context.Context, t testing.TB) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/test?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "connect")

	require.NoError(t, runTestMigrations(ctx, pool), "migrate")

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

// runTestMigrations sets up the schema for testing
func runTestMigrations(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE supplier_products (
			id TEXT PRIMARY KEY,
			supplier_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			ean TEXT,
			reference TEXT,
			name TEXT,
			brand TEXT,
			category TEXT,
			purchase_price BIGINT,
			indicative_price BIGINT,
			stock_quantity INTEGER,
			enrichment_status TEXT NOT NULL DEFAULT 'pending',
			import_job_id TEXT,
			last_imported_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX uq_supplier_products_ean
			ON supplier_products (supplier_id, user_id, ean) WHERE ean IS NOT NULL;
		CREATE UNIQUE INDEX uq_supplier_products_reference
			ON supplier_products (supplier_id, user_id, reference) WHERE ean IS NULL AND reference IS NOT NULL;
		CREATE UNIQUE INDEX uq_supplier_products_name
			ON supplier_products (supplier_id, user_id, name) WHERE ean IS NULL AND reference IS NULL;

		CREATE TABLE import_jobs (
			id TEXT PRIMARY KEY,
			supplier_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			status TEXT NOT NULL,
			total_rows INTEGER NOT NULL DEFAULT 0,
			total_chunks INTEGER NOT NULL DEFAULT 0,
			chunk_size INTEGER NOT NULL DEFAULT 0,
			completed_chunks INTEGER NOT NULL DEFAULT 0,
			processed_rows INTEGER NOT NULL DEFAULT 0,
			new_products INTEGER NOT NULL DEFAULT 0,
			updated_products INTEGER NOT NULL DEFAULT 0,
			matched_products INTEGER NOT NULL DEFAULT 0,
			failed_rows INTEGER NOT NULL DEFAULT 0,
			column_mapping TEXT,
			error_message TEXT,
			source_file_id TEXT,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE import_job_chunks (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES import_jobs(id),
			chunk_index INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			new_count INTEGER NOT NULL,
			updated_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (job_id, chunk_index)
		);

		CREATE TABLE failed_rows (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL,
			row_number INTEGER NOT NULL,
			raw_data TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (job_id, row_number)
		);

		CREATE TABLE product_analyses (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			ean TEXT,
			reference TEXT,
			title TEXT,
			brand TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE product_links (
			id TEXT PRIMARY KEY,
			supplier_product_id TEXT NOT NULL UNIQUE,
			analysis_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			match_method TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE enrichment_queue (
			id TEXT PRIMARY KEY,
			supplier_product_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			enrichment_types TEXT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			locked_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX uq_enrichment_queue_active
			ON enrichment_queue (supplier_product_id) WHERE status IN ('pending', 'processing');

		CREATE TABLE dead_letter_entries (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_offset INTEGER NOT NULL,
			chunk_limit INTEGER NOT NULL,
			source TEXT NOT NULL,
			correlation_id TEXT,
			payload TEXT NOT NULL,
			error_message TEXT NOT NULL,
			error_code TEXT,
			attempts INTEGER NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT false,
			resolved_by TEXT,
			resolved_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE alerts (
			id BIGSERIAL PRIMARY KEY,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			action TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

func testMapping() mapping.Mapping {
	m := make(mapping.Mapping)
	m.Set(mapping.FieldEAN, 0)
	m.Set(mapping.FieldName, 1)
	m.Set(mapping.FieldPurchasePrice, 2)
	m.Set(mapping.FieldStockQuantity, 3)
	return m
}

func TestImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	job, err := CreateJob(ctx, db, CreateJobInput{
		SupplierID: "sup-acme",
		UserID:     "user-1",
		Filename:   "catalogue.csv",
		TotalRows:  3,
		ChunkSize:  10,
		Mapping:    testMapping(),
	})
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.TotalChunks)

	rows := [][]string{
		{"4006381333931", "Widget A", "12,50", "7"},
		{"", "Widget B", "NC", "Non disponible"},
		{"", "", "", ""},
	}

	result, err := ProcessChunk(ctx, db, ProcessChunkInput{
		JobID:      job.ID,
		ChunkIndex: 0,
		Rows:       rows,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Replayed)
	assert.Equal(t, database.JobStatusCompleted, result.JobStatus)

	job, err = GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.ProcessedRows)
	assert.Equal(t, 2, job.NewProducts)
	assert.Equal(t, 1, job.FailedRows)
	assert.NotNil(t, job.CompletedAt)

	// Widget A's values survived normalization
	var price int64
	var stock int
	err = db.QueryRow(ctx, `
		SELECT purchase_price, stock_quantity FROM supplier_products WHERE ean = '4006381333931'
	`).Scan(&price, &stock)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), price)
	assert.Equal(t, 7, stock)

	// The empty row landed in failed_rows
	failed, total, err := ListFailedRows(ctx, db, job.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].RowNumber)

	// A completed job accepts no further chunks
	_, err = ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 0, Rows: rows})
	assert.ErrorIs(t, err, ErrJobNotProcessing)
}

func TestChunkReplayDoesNotDriftCounters(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	job, err := CreateJob(ctx, db, CreateJobInput{
		SupplierID: "sup-acme",
		UserID:     "user-1",
		Filename:   "catalogue.csv",
		TotalRows:  4,
		ChunkSize:  2,
		Mapping:    testMapping(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, job.TotalChunks)

	chunk0 := [][]string{
		{"4006381333931", "Widget A", "10,00", "1"},
		{"3017620422003", "Widget B", "20,00", "2"},
	}

	first, err := ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 0, Rows: chunk0})
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, 2, first.Created)

	// Duplicate delivery of the same chunk index: rows re-upsert to the
	// same state, counters stay where they were
	second, err := ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 0, Rows: chunk0})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, database.JobStatusProcessing, second.JobStatus)

	job, err = GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProcessedRows)
	assert.Equal(t, 2, job.NewProducts)
	assert.Equal(t, 1, job.CompletedChunks)

	// Only two products exist
	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM supplier_products`).Scan(&count))
	assert.Equal(t, 2, count)

	// The remaining chunk completes the job exactly once
	chunk1 := [][]string{
		{"4006381333931", "Widget A", "10,00", "1"},
		{"", "Widget C", "5,00", "3"},
	}
	last, err := ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 1, Rows: chunk1})
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusCompleted, last.JobStatus)
	assert.Equal(t, 1, last.Updated)

	job, err = GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.ProcessedRows)
}

func TestUpsertRowIdempotentAndPartial(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	ean := "4006381333931"
	name := "Widget A"
	brand := "Acme"
	full := Record{EAN: &ean, Name: &name, Brand: &brand, PurchasePrice: cents(1250)}

	outcome, err := UpsertRow(ctx, db, "sup-acme", "user-1", "job-1", full)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	outcome, err = UpsertRow(ctx, db, "sup-acme", "user-1", "job-1", full)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	// A sparse follow-up never nulls out known fields
	newPrice := int64(1399)
	sparse := Record{EAN: &ean, PurchasePrice: &newPrice}
	outcome, err = UpsertRow(ctx, db, "sup-acme", "user-1", "job-2", sparse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	var gotName, gotBrand string
	var gotPrice int64
	err = db.QueryRow(ctx, `
		SELECT name, brand, purchase_price FROM supplier_products
		WHERE supplier_id = 'sup-acme' AND user_id = 'user-1' AND ean = $1
	`, ean).Scan(&gotName, &gotBrand, &gotPrice)
	require.NoError(t, err)
	assert.Equal(t, "Widget A", gotName)
	assert.Equal(t, "Acme", gotBrand)
	assert.Equal(t, int64(1399), gotPrice)

	// Same EAN under a different user is a separate product
	outcome, err = UpsertRow(ctx, db, "sup-acme", "user-2", "job-3", full)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestMatcherLinksAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	_, err := db.Exec(ctx, `
		INSERT INTO product_analyses (user_id, ean, title) VALUES
			('user-1', '4006381333931', 'Widget A Deluxe'),
			('user-1', NULL, 'Organic Green Tea 100g')
	`)
	require.NoError(t, err)

	ean := "4006381333931"
	nameA := "Widget A"
	_, err = UpsertRow(ctx, db, "sup-acme", "user-1", "job-1", Record{EAN: &ean, Name: &nameA})
	require.NoError(t, err)

	nameB := "Organic Green Tea 100 g"
	_, err = UpsertRow(ctx, db, "sup-acme", "user-1", "job-1", Record{Name: &nameB})
	require.NoError(t, err)

	result, err := matcher.MatchSupplierProducts(ctx, db, matcher.MatchInput{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExactMatches)
	assert.Equal(t, 1, result.FuzzyMatches)
	assert.Equal(t, 2, result.Enqueued)

	var links int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM product_links`).Scan(&links))
	assert.Equal(t, 2, links)

	// Re-running produces no new links and no duplicates
	again, err := matcher.MatchSupplierProducts(ctx, db, matcher.MatchInput{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.ExactMatches)
	assert.Equal(t, 0, again.FuzzyMatches)

	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM product_links`).Scan(&links))
	assert.Equal(t, 2, links)
}

func TestOrphanRepair(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	// A product stuck in enriching with no queue entry tracking it
	_, err := db.Exec(ctx, `
		INSERT INTO supplier_products (id, supplier_id, user_id, name, enrichment_status)
		VALUES ('sup_orphan1', 'sup-acme', 'user-1', 'Widget A', 'enriching')
	`)
	require.NoError(t, err)

	orphans, err := enrichqueue.DetectOrphans(ctx, db)
	require.NoError(t, err)
	require.Equal(t, []string{"sup_orphan1"}, orphans)

	repaired, err := enrichqueue.RepairOrphans(ctx, db, orphans, database.QueuePriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	var status string
	require.NoError(t, db.QueryRow(ctx,
		`SELECT enrichment_status FROM supplier_products WHERE id = 'sup_orphan1'`).Scan(&status))
	assert.Equal(t, database.EnrichmentStatusPending, status)

	var priority string
	require.NoError(t, db.QueryRow(ctx, `
		SELECT priority FROM enrichment_queue
		WHERE supplier_product_id = 'sup_orphan1' AND status = 'pending'
	`).Scan(&priority))
	assert.Equal(t, database.QueuePriorityHigh, priority)

	// Repaired products do not reappear
	orphans, err = enrichqueue.DetectOrphans(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestReconcileRaisesAlertAboveHighWaterMark(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := db.Exec(ctx, `
			INSERT INTO supplier_products (id, supplier_id, user_id, name, enrichment_status)
			VALUES ($1, 'sup-acme', 'user-1', $2, 'enriching')
		`, fmt.Sprintf("sup_o%d", i), fmt.Sprintf("Widget %d", i))
		require.NoError(t, err)
	}

	result, err := enrichqueue.Reconcile(ctx, db, enrichqueue.CoordinatorConfig{
		StuckThreshold: time.Hour,
		HighWaterMark:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.OrphansFound)
	assert.Equal(t, 3, result.OrphansRepaired)
	assert.True(t, result.AlertRaised)

	var alertCount int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE severity = 'critical'`).Scan(&alertCount))
	assert.Equal(t, 1, alertCount)
}

func TestStuckRepairEscalatesLiveEntryPriority(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	// A product stuck in enriching for two hours, still tracked by a
	// live queue entry at normal priority
	_, err := db.Exec(ctx, `
		INSERT INTO supplier_products (id, supplier_id, user_id, name, enrichment_status, updated_at)
		VALUES ('sup_stuck1', 'sup-acme', 'user-1', 'Widget A', 'enriching', now() - interval '2 hours')
	`)
	require.NoError(t, err)

	res, err := enrichqueue.Enqueue(ctx, db, enrichqueue.EnqueueInput{
		SupplierProductID: "sup_stuck1",
		UserID:            "user-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)

	result, err := enrichqueue.Reconcile(ctx, db, enrichqueue.CoordinatorConfig{
		StuckThreshold: time.Hour,
		HighWaterMark:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.OrphansFound)
	assert.Equal(t, 1, result.StuckFound)
	assert.Equal(t, 1, result.StuckRepaired)

	// The existing entry was escalated, not duplicated
	var entries int
	require.NoError(t, db.QueryRow(ctx, `
		SELECT COUNT(*) FROM enrichment_queue
		WHERE supplier_product_id = 'sup_stuck1' AND status IN ('pending', 'processing')
	`).Scan(&entries))
	assert.Equal(t, 1, entries)

	var priority string
	require.NoError(t, db.QueryRow(ctx, `
		SELECT priority FROM enrichment_queue
		WHERE supplier_product_id = 'sup_stuck1' AND status IN ('pending', 'processing')
	`).Scan(&priority))
	assert.Equal(t, database.QueuePriorityUrgent, priority)

	var status string
	require.NoError(t, db.QueryRow(ctx,
		`SELECT enrichment_status FROM supplier_products WHERE id = 'sup_stuck1'`).Scan(&status))
	assert.Equal(t, database.EnrichmentStatusPending, status)

	// A later normal-priority request never downgrades it
	res, err = enrichqueue.Enqueue(ctx, db, enrichqueue.EnqueueInput{
		SupplierProductID: "sup_stuck1",
		UserID:            "user-1",
		Priority:          database.QueuePriorityNormal,
	})
	require.NoError(t, err)
	assert.False(t, res.Created)

	require.NoError(t, db.QueryRow(ctx, `
		SELECT priority FROM enrichment_queue
		WHERE supplier_product_id = 'sup_stuck1' AND status IN ('pending', 'processing')
	`).Scan(&priority))
	assert.Equal(t, database.QueuePriorityUrgent, priority)
}

func TestFailedRowNumbersWithShortFinalChunk(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	// 4 rows at chunk size 3 leaves a short final chunk
	job, err := CreateJob(ctx, db, CreateJobInput{
		SupplierID: "sup-acme",
		UserID:     "user-1",
		Filename:   "catalogue.csv",
		TotalRows:  4,
		ChunkSize:  3,
		Mapping:    testMapping(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, job.TotalChunks)
	assert.Equal(t, 3, job.ChunkSize)

	chunk0 := [][]string{
		{"4006381333931", "Widget A", "10,00", "1"},
		{"3017620422003", "Widget B", "20,00", "2"},
		{"", "", "", ""},
	}
	first, err := ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 0, Rows: chunk0})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)

	chunk1 := [][]string{
		{"", "", "", ""},
	}
	last, err := ProcessChunk(ctx, db, ProcessChunkInput{JobID: job.ID, ChunkIndex: 1, Rows: chunk1})
	require.NoError(t, err)
	assert.Equal(t, 1, last.Failed)
	assert.Equal(t, database.JobStatusCompleted, last.JobStatus)

	// The final chunk's row is numbered from the job's chunk size, so
	// both rejected rows survive with their file positions
	failed, total, err := ListFailedRows(ctx, db, job.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, failed, 2)
	assert.Equal(t, 3, failed[0].RowNumber)
	assert.Equal(t, 4, failed[1].RowNumber)
}

func TestDeadLetterRetryFlow(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(ctx, t)
	defer cleanup()

	job, err := CreateJob(ctx, db, CreateJobInput{
		SupplierID: "sup-acme",
		UserID:     "user-1",
		Filename:   "catalogue.csv",
		TotalRows:  1,
		ChunkSize:  10,
		Mapping:    testMapping(),
	})
	require.NoError(t, err)

	// Dead-letter the chunk as the retry runner would
	err = deadLetterChunk(ctx, db, ProcessChunkInput{
		JobID:      job.ID,
		ChunkIndex: 0,
		Rows:       [][]string{{"4006381333931", "Widget A", "9,99", "1"}},
	}, DefaultRetryConfig(), fmt.Errorf("connection reset"))
	require.NoError(t, err)

	entries, total, err := dlq.ListEntries(ctx, db, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	entry := entries[0]
	assert.False(t, entry.Resolved)
	assert.Equal(t, "connection reset", entry.ErrorMessage)

	// Operator retry replays the chunk and resolves the entry
	err = dlq.RetryChunk(ctx, db, entry.ID, "ops@merchantiq", func(ctx context.Context, e *database.DeadLetterEntry) error {
		return ReplayDeadLetteredChunk(ctx, db, e)
	})
	require.NoError(t, err)

	resolved, err := dlq.GetEntry(ctx, db, entry.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "ops@merchantiq", *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	job, err = GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobStatusCompleted, job.Status)

	// Resolving twice is rejected
	err = dlq.MarkResolved(ctx, db, entry.ID, "ops@merchantiq")
	assert.ErrorIs(t, err, dlq.ErrEntryResolved)
}
