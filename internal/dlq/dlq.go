// Package dlq stores work units that exhausted their retry budget.
// Entries are never auto-deleted; resolution is always an explicit,
// auditable operator action.
package dlq

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/pkg/cuid2"
)

// ErrEntryResolved is returned when an operator action targets an
// entry that is already resolved.
var ErrEntryResolved = fmt.Errorf("dead letter entry already resolved")

// DeadLetterInput captures a permanently failed chunk
type DeadLetterInput struct {
	JobID         string
	ChunkIndex    int
	ChunkOffset   int
	ChunkLimit    int
	Source        string // 'upload', 'api_feed'
	CorrelationID *string
	Payload       string // JSON chunk rows + mapping, enough to replay
	ErrorMessage  string
	ErrorCode     *string
	Attempts      int
}

// DeadLetter records a chunk that exhausted its retries
func DeadLetter(ctx context.Context, db *pgxpool.Pool, input DeadLetterInput) (string, error) {
	id := cuid2.GenerateDeadLetterID()

	_, err := db.Exec(ctx, `
		INSERT INTO dead_letter_entries (
			id, job_id, chunk_index, chunk_offset, chunk_limit, source,
			correlation_id, payload, error_message, error_code, attempts,
			resolved, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, now())
	`, id, input.JobID, input.ChunkIndex, input.ChunkOffset, input.ChunkLimit,
		input.Source, input.CorrelationID, input.Payload, input.ErrorMessage,
		input.ErrorCode, input.Attempts)
	if err != nil {
		return "", fmt.Errorf("insert dead letter entry: %w", err)
	}

	log.Error().
		Str("entry_id", id).
		Str("job_id", input.JobID).
		Int("chunk_index", input.ChunkIndex).
		Int("attempts", input.Attempts).
		Str("error", input.ErrorMessage).
		Msg("chunk dead-lettered")

	return id, nil
}

const entryColumns = `
	id, job_id, chunk_index, chunk_offset, chunk_limit, source,
	correlation_id, payload, error_message, error_code, attempts,
	resolved, resolved_by, resolved_at, created_at`

func scanEntry(row pgx.Row) (*database.DeadLetterEntry, error) {
	var e database.DeadLetterEntry
	err := row.Scan(
		&e.ID, &e.JobID, &e.ChunkIndex, &e.ChunkOffset, &e.ChunkLimit, &e.Source,
		&e.CorrelationID, &e.Payload, &e.ErrorMessage, &e.ErrorCode, &e.Attempts,
		&e.Resolved, &e.ResolvedBy, &e.ResolvedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEntry retrieves a single entry by ID
func GetEntry(ctx context.Context, db *pgxpool.Pool, entryID string) (*database.DeadLetterEntry, error) {
	entry, err := scanEntry(db.QueryRow(ctx,
		`SELECT`+entryColumns+` FROM dead_letter_entries WHERE id = $1`, entryID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("dead letter entry not found: %s", entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("query dead letter entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries unresolved-first, newest within each group
func ListEntries(ctx context.Context, db *pgxpool.Pool, limit, offset int) ([]database.DeadLetterEntry, int, error) {
	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_entries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dead letter entries: %w", err)
	}

	rows, err := db.Query(ctx, `
		SELECT`+entryColumns+`
		FROM dead_letter_entries
		ORDER BY resolved ASC, created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query dead letter entries: %w", err)
	}
	defer rows.Close()

	entries := make([]database.DeadLetterEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}

	return entries, total, rows.Err()
}

// RetryChunk re-invokes chunk processing for an unresolved entry. The
// retry callback receives the stored entry and is expected to replay
// the chunk from its payload. The entry is marked resolved only when
// the retry succeeds.
func RetryChunk(ctx context.Context, db *pgxpool.Pool, entryID, resolver string, retry func(context.Context, *database.DeadLetterEntry) error) error {
	entry, err := GetEntry(ctx, db, entryID)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return ErrEntryResolved
	}

	if err := retry(ctx, entry); err != nil {
		_, uerr := db.Exec(ctx, `
			UPDATE dead_letter_entries
			SET attempts = attempts + 1, error_message = $2
			WHERE id = $1
		`, entryID, err.Error())
		if uerr != nil {
			log.Error().Err(uerr).Str("entry_id", entryID).Msg("failed to record retry failure")
		}
		return fmt.Errorf("retry chunk: %w", err)
	}

	return MarkResolved(ctx, db, entryID, resolver)
}

// MarkResolved acknowledges an entry without requiring a successful
// retry, recording who resolved it and when.
func MarkResolved(ctx context.Context, db *pgxpool.Pool, entryID, resolver string) error {
	tag, err := db.Exec(ctx, `
		UPDATE dead_letter_entries
		SET resolved = true, resolved_by = $2, resolved_at = now()
		WHERE id = $1 AND resolved = false
	`, entryID, resolver)
	if err != nil {
		return fmt.Errorf("resolve dead letter entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryResolved
	}

	log.Info().
		Str("entry_id", entryID).
		Str("resolved_by", resolver).
		Msg("dead letter entry resolved")

	return nil
}
