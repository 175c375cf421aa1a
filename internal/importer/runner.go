package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/dlq"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/merchantiq/catalog-service/internal/metrics"
)

// RetryConfig is the chunk retry budget before DLQ escalation. The
// max attempts value is explicit configuration, not a constant buried
// in call sites.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Source         string // Recorded on DLQ entries: 'upload', 'api_feed'
	CorrelationID  *string
}

// DefaultRetryConfig mirrors the import.chunk_max_attempts defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Source:         "upload",
	}
}

// chunkBackoff doubles the delay per attempt with 0-25% jitter
func chunkBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(2.0, float64(attempt))
	delay = math.Min(delay, float64(cfg.MaxBackoff))
	jitter := rand.Float64() * 0.25 * delay
	return time.Duration(delay + jitter)
}

// ChunkPayload is the replay envelope stored on DLQ entries
type ChunkPayload struct {
	JobID      string          `json:"job_id"`
	ChunkIndex int             `json:"chunk_index"`
	Rows       [][]string      `json:"rows"`
	Mapping    mapping.Mapping `json:"mapping,omitempty"`
}

// ProcessChunkWithRetry runs ProcessChunk under the retry budget.
// Transient failures back off exponentially; job-state errors are
// caller bugs and fail immediately without retrying. When the budget
// is exhausted the chunk is dead-lettered with its full replay payload
// and the error is returned to the caller.
func ProcessChunkWithRetry(ctx context.Context, db *pgxpool.Pool, input ProcessChunkInput, cfg RetryConfig) (*ChunkResult, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := ProcessChunk(ctx, db, input)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrJobNotProcessing) || errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		lastErr = err

		if attempt < cfg.MaxAttempts-1 {
			backoff := chunkBackoff(attempt, cfg)
			log.Warn().
				Err(err).
				Str("job_id", input.JobID).
				Int("chunk_index", input.ChunkIndex).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("chunk processing failed, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if dlErr := deadLetterChunk(ctx, db, input, cfg, lastErr); dlErr != nil {
		log.Error().Err(dlErr).Str("job_id", input.JobID).Msg("failed to dead-letter chunk")
	}

	return nil, fmt.Errorf("chunk %d of job %s failed after %d attempts: %w",
		input.ChunkIndex, input.JobID, cfg.MaxAttempts, lastErr)
}

func deadLetterChunk(ctx context.Context, db *pgxpool.Pool, input ProcessChunkInput, cfg RetryConfig, cause error) error {
	payload, err := json.Marshal(ChunkPayload{
		JobID:      input.JobID,
		ChunkIndex: input.ChunkIndex,
		Rows:       input.Rows,
		Mapping:    input.Mapping,
	})
	if err != nil {
		return fmt.Errorf("marshal chunk payload: %w", err)
	}

	job, err := GetJob(ctx, db, input.JobID)
	chunkSize := DefaultChunkSize
	if err == nil {
		chunkSize = chunkSizeOf(job)
	}

	_, err = dlq.DeadLetter(ctx, db, dlq.DeadLetterInput{
		JobID:         input.JobID,
		ChunkIndex:    input.ChunkIndex,
		ChunkOffset:   input.ChunkIndex * chunkSize,
		ChunkLimit:    len(input.Rows),
		Source:        cfg.Source,
		CorrelationID: cfg.CorrelationID,
		Payload:       string(payload),
		ErrorMessage:  cause.Error(),
		Attempts:      cfg.MaxAttempts,
	})
	if err == nil {
		metrics.DeadLettered.WithLabelValues(cfg.Source).Inc()
	}
	return err
}

// ReplayDeadLetteredChunk decodes a DLQ entry's payload and re-runs
// the chunk once, without the retry budget. Used as the retry callback
// for the DLQ operator surface.
func ReplayDeadLetteredChunk(ctx context.Context, db *pgxpool.Pool, entry *database.DeadLetterEntry) error {
	var payload ChunkPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return fmt.Errorf("decode chunk payload: %w", err)
	}

	_, err := ProcessChunk(ctx, db, ProcessChunkInput{
		JobID:      payload.JobID,
		ChunkIndex: payload.ChunkIndex,
		Rows:       payload.Rows,
		Mapping:    payload.Mapping,
	})
	return err
}
