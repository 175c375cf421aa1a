package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/merchantiq/catalog-service/internal/matcher"
	"github.com/merchantiq/catalog-service/internal/metrics"
	"github.com/merchantiq/catalog-service/internal/pkg/cuid2"
)

// DefaultChunkSize bounds rows per chunk to keep single invocations
// inside platform execution deadlines.
const DefaultChunkSize = 250

var (
	// ErrJobNotFound is returned for unknown job IDs
	ErrJobNotFound = errors.New("import job not found")
	// ErrJobNotProcessing is returned when a chunk targets a job that
	// is pending, completed or failed. This usually indicates a
	// caller-side orchestration bug, so it is surfaced synchronously.
	ErrJobNotProcessing = errors.New("import job is not in processing state")
)

// CreateJobInput describes a new import run
type CreateJobInput struct {
	SupplierID string
	UserID     string
	Filename   string
	TotalRows  int
	ChunkSize  int // Defaults to DefaultChunkSize
	Mapping    mapping.Mapping
}

// CreateJob registers an import job in processing state with counters
// at zero. The column mapping is snapshotted on the job so chunk
// submissions and DLQ replays use the same mapping the import started
// with.
func CreateJob(ctx context.Context, db *pgxpool.Pool, input CreateJobInput) (*database.ImportJob, error) {
	if input.TotalRows < 0 {
		return nil, fmt.Errorf("total rows must not be negative")
	}
	chunkSize := input.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	totalChunks := (input.TotalRows + chunkSize - 1) / chunkSize

	mappingJSON, err := json.Marshal(input.Mapping)
	if err != nil {
		return nil, fmt.Errorf("marshal column mapping: %w", err)
	}
	mappingStr := string(mappingJSON)

	job := &database.ImportJob{
		ID:            cuid2.GenerateImportJobID(),
		SupplierID:    input.SupplierID,
		UserID:        input.UserID,
		Filename:      input.Filename,
		Status:        database.JobStatusProcessing,
		TotalRows:     input.TotalRows,
		TotalChunks:   totalChunks,
		ChunkSize:     chunkSize,
		ColumnMapping: &mappingStr,
	}

	err = db.QueryRow(ctx, `
		INSERT INTO import_jobs (
			id, supplier_id, user_id, filename, status,
			total_rows, total_chunks, chunk_size, column_mapping,
			started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), now())
		RETURNING started_at, created_at, updated_at
	`, job.ID, job.SupplierID, job.UserID, job.Filename, job.Status,
		job.TotalRows, job.TotalChunks, job.ChunkSize, job.ColumnMapping,
	).Scan(&job.StartedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert import job: %w", err)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("supplier_id", job.SupplierID).
		Int("total_rows", job.TotalRows).
		Int("total_chunks", job.TotalChunks).
		Msg("import job created")

	return job, nil
}

const jobColumns = `
	id, supplier_id, user_id, filename, status,
	total_rows, total_chunks, chunk_size, completed_chunks, processed_rows,
	new_products, updated_products, matched_products, failed_rows,
	column_mapping, error_message, started_at, completed_at,
	created_at, updated_at`

func scanJob(row pgx.Row) (*database.ImportJob, error) {
	var j database.ImportJob
	err := row.Scan(
		&j.ID, &j.SupplierID, &j.UserID, &j.Filename, &j.Status,
		&j.TotalRows, &j.TotalChunks, &j.ChunkSize, &j.CompletedChunks, &j.ProcessedRows,
		&j.NewProducts, &j.UpdatedProducts, &j.MatchedProducts, &j.FailedRows,
		&j.ColumnMapping, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob retrieves a job by ID
func GetJob(ctx context.Context, db *pgxpool.Pool, jobID string) (*database.ImportJob, error) {
	job, err := scanJob(db.QueryRow(ctx,
		`SELECT`+jobColumns+` FROM import_jobs WHERE id = $1`, jobID))
	if err == pgx.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query import job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs for a user, newest first
func ListJobs(ctx context.Context, db *pgxpool.Pool, userID string, limit, offset int) ([]database.ImportJob, int, error) {
	var total int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM import_jobs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT`+jobColumns+`
		FROM import_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]database.ImportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, total, rows.Err()
}

// FailJob moves a job to failed with an error message. Terminal.
func FailJob(ctx context.Context, db *pgxpool.Pool, jobID, message string) error {
	_, err := db.Exec(ctx, `
		UPDATE import_jobs
		SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, jobID, message)
	if err != nil {
		return fmt.Errorf("fail import job: %w", err)
	}
	metrics.JobsCompleted.WithLabelValues(database.JobStatusFailed).Inc()
	return nil
}

// ProcessChunkInput is one chunk submission
type ProcessChunkInput struct {
	JobID      string
	ChunkIndex int
	Rows       [][]string
	// Mapping overrides the job's snapshotted mapping when non-nil
	Mapping mapping.Mapping
}

// ChunkResult reports what one chunk invocation did
type ChunkResult struct {
	Processed int    `json:"processed"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Matched   int    `json:"matched"`
	Failed    int    `json:"failed"`
	Replayed  bool   `json:"replayed"` // Chunk index was already committed; counters untouched
	JobStatus string `json:"job_status"`
}

// ProcessChunk applies one chunk of raw rows to a job. Chunk delivery
// is at-least-once: row upserts are idempotent per key, and the
// committed-chunk ledger keeps job counters correct when the same
// chunk index is delivered twice. A failed row never aborts the rest
// of its chunk. After the upserts, a matching pass links the touched
// supplier's unlinked products.
func ProcessChunk(ctx context.Context, db *pgxpool.Pool, input ProcessChunkInput) (*ChunkResult, error) {
	start := time.Now()
	defer func() { metrics.ChunkDuration.Observe(time.Since(start).Seconds()) }()

	job, err := GetJob(ctx, db, input.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != database.JobStatusProcessing {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotProcessing, job.ID, job.Status)
	}
	if input.ChunkIndex < 0 || (job.TotalChunks > 0 && input.ChunkIndex >= job.TotalChunks) {
		return nil, fmt.Errorf("chunk index %d out of range for job %s (%d chunks)", input.ChunkIndex, job.ID, job.TotalChunks)
	}

	m := input.Mapping
	if m == nil {
		m = make(mapping.Mapping)
		if job.ColumnMapping != nil {
			if err := json.Unmarshal([]byte(*job.ColumnMapping), &m); err != nil {
				return nil, fmt.Errorf("decode job column mapping: %w", err)
			}
		}
	}

	// Rows are numbered from the chunk's nominal offset in the file
	chunkSize := chunkSizeOf(job)
	firstRowNumber := input.ChunkIndex*chunkSize + 1

	prepared, rejected := PrepareRows(input.Rows, m, firstRowNumber)

	result := &ChunkResult{Processed: len(input.Rows)}

	for _, rej := range rejected {
		result.Failed++
		recordFailedRow(ctx, db, job.ID, rej)
	}

	for _, row := range prepared {
		outcome, err := UpsertRow(ctx, db, job.SupplierID, job.UserID, job.ID, row.Record)
		if err != nil {
			result.Failed++
			recordFailedRow(ctx, db, job.ID, RejectedRow{
				RowNumber: row.RowNumber,
				Cells:     nil,
				Reason:    err.Error(),
			})
			continue
		}
		switch outcome {
		case OutcomeCreated:
			result.Created++
		case OutcomeUpdated:
			result.Updated++
		default:
			result.Failed++
		}
	}

	matchRes, err := matcher.MatchSupplierProducts(ctx, db, matcher.MatchInput{
		UserID:     job.UserID,
		SupplierID: job.SupplierID,
	})
	if err != nil {
		// Matching failures do not fail the chunk; the next chunk or a
		// standalone sweep picks the products up again
		log.Warn().Err(err).Str("job_id", job.ID).Msg("post-chunk matching pass failed")
	} else {
		result.Matched = matchRes.ExactMatches + matchRes.FuzzyMatches
	}

	status, replayed, err := commitChunk(ctx, db, job, input.ChunkIndex, result)
	if err != nil {
		return nil, err
	}
	result.Replayed = replayed
	result.JobStatus = status

	if replayed {
		metrics.ChunksProcessed.WithLabelValues("replayed").Inc()
	} else {
		metrics.ChunksProcessed.WithLabelValues("committed").Inc()
		metrics.RowsProcessed.WithLabelValues("created").Add(float64(result.Created))
		metrics.RowsProcessed.WithLabelValues("updated").Add(float64(result.Updated))
		metrics.RowsProcessed.WithLabelValues("rejected").Add(float64(result.Failed))
		if status == database.JobStatusCompleted {
			metrics.JobsCompleted.WithLabelValues(database.JobStatusCompleted).Inc()
		}
	}

	log.Debug().
		Str("job_id", job.ID).
		Int("chunk_index", input.ChunkIndex).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Bool("replayed", replayed).
		Msg("chunk processed")

	return result, nil
}

// commitChunk records the chunk in the ledger and, for a first-time
// commit, folds its counts into the job and completes the job when
// every row is accounted for. A replayed chunk index hits the ledger
// conflict and leaves the counters alone.
func commitChunk(ctx context.Context, db *pgxpool.Pool, job *database.ImportJob, chunkIndex int, result *ChunkResult) (string, bool, error) {
	var status string
	replayed := false

	err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO import_job_chunks (job_id, chunk_index, row_count, new_count, updated_count, failed_count, committed_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (job_id, chunk_index) DO NOTHING
		`, job.ID, chunkIndex, result.Processed, result.Created, result.Updated, result.Failed)
		if err != nil {
			return fmt.Errorf("record chunk: %w", err)
		}

		if tag.RowsAffected() == 0 {
			replayed = true
			return tx.QueryRow(ctx,
				`SELECT status FROM import_jobs WHERE id = $1`, job.ID).Scan(&status)
		}

		err = tx.QueryRow(ctx, `
			UPDATE import_jobs
			SET processed_rows = LEAST(processed_rows + $2, total_rows),
				completed_chunks = completed_chunks + 1,
				new_products = new_products + $3,
				updated_products = updated_products + $4,
				matched_products = matched_products + $5,
				failed_rows = failed_rows + $6,
				updated_at = now()
			WHERE id = $1
			RETURNING processed_rows, total_rows
		`, job.ID, result.Processed, result.Created, result.Updated, result.Matched, result.Failed,
		).Scan(&job.ProcessedRows, &job.TotalRows)
		if err != nil {
			return fmt.Errorf("update job counters: %w", err)
		}

		// Completion fires exactly once, on the commit that accounts
		// for the final row
		if job.ProcessedRows >= job.TotalRows {
			err = tx.QueryRow(ctx, `
				UPDATE import_jobs
				SET status = 'completed', completed_at = now(), updated_at = now()
				WHERE id = $1 AND status = 'processing'
				RETURNING status
			`, job.ID).Scan(&status)
			if err == pgx.ErrNoRows {
				// A concurrent commit already completed the job
				status = database.JobStatusCompleted
				return nil
			}
			if err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
			log.Info().
				Str("job_id", job.ID).
				Int("processed_rows", job.ProcessedRows).
				Msg("import job completed")
			return nil
		}

		status = database.JobStatusProcessing
		return nil
	})
	if err != nil {
		return "", false, err
	}

	return status, replayed, nil
}

// chunkSizeOf returns the chunk size the job was created with. Row
// numbering depends on it, so it is stored on the job; deriving it
// from total_chunks mislabels rows when the final chunk is short.
func chunkSizeOf(job *database.ImportJob) int {
	if job.ChunkSize > 0 {
		return job.ChunkSize
	}
	return DefaultChunkSize
}

// recordFailedRow stores one rejected row for the operator surface.
// Best effort; a failed insert only logs.
func recordFailedRow(ctx context.Context, db *pgxpool.Pool, jobID string, rej RejectedRow) {
	raw, err := json.Marshal(rej.Cells)
	if err != nil {
		raw = []byte("[]")
	}

	// Replayed chunks hit the conflict and keep the original record
	_, err = db.Exec(ctx, `
		INSERT INTO failed_rows (job_id, row_number, raw_data, reason, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (job_id, row_number) DO NOTHING
	`, jobID, rej.RowNumber, string(raw), rej.Reason)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Int("row", rej.RowNumber).Msg("failed to record failed row")
	}
}

// ListFailedRows returns a job's rejected rows for the operator surface
func ListFailedRows(ctx context.Context, db *pgxpool.Pool, jobID string, limit, offset int) ([]database.FailedRow, int, error) {
	var total int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM failed_rows WHERE job_id = $1`, jobID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count failed rows: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT id, job_id, row_number, raw_data, reason, created_at
		FROM failed_rows
		WHERE job_id = $1
		ORDER BY row_number
		LIMIT $2 OFFSET $3
	`, jobID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query failed rows: %w", err)
	}
	defer rows.Close()

	failed := make([]database.FailedRow, 0)
	for rows.Next() {
		var f database.FailedRow
		if err := rows.Scan(&f.ID, &f.JobID, &f.RowNumber, &f.RawData, &f.Reason, &f.CreatedAt); err != nil {
			return nil, 0, err
		}
		failed = append(failed, f)
	}

	return failed, total, rows.Err()
}

// HandleInterruptedJobs marks jobs left in processing from a previous
// run as failed. Called once at boot; a restarted service has lost the
// in-flight chunk submissions, so the orchestrating layer must restart
// those imports.
func HandleInterruptedJobs(ctx context.Context, db *pgxpool.Pool, olderThanMinutes int) (int, error) {
	tag, err := db.Exec(ctx, `
		UPDATE import_jobs
		SET status = 'failed',
			error_message = 'interrupted: service restarted while job was processing',
			completed_at = now(),
			updated_at = now()
		WHERE status = 'processing'
		AND updated_at < now() - ($1 * interval '1 minute')
	`, olderThanMinutes)
	if err != nil {
		return 0, fmt.Errorf("handle interrupted jobs: %w", err)
	}

	n := int(tag.RowsAffected())
	if n > 0 {
		log.Warn().Int("count", n).Msg("marked interrupted import jobs as failed")
	}
	return n, nil
}
