package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/feed"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/merchantiq/catalog-service/internal/storage"
	"github.com/rs/zerolog/log"
)

// importSem limits concurrent background import goroutines to prevent resource exhaustion
var importSem = make(chan struct{}, 10) // Max 10 concurrent imports

// FileStore archives raw supplier files when set at boot. Imports
// still run when it is nil; only the audit copy is skipped.
var FileStore storage.Storage

// RetryConfigProvider supplies the chunk retry budget from config.
// Set once at boot; nil falls back to the built-in defaults.
var RetryConfigProvider func() importer.RetryConfig

// ImportChunkSize is the chunk size for requests that do not specify
// one. Overridden from config at boot.
var ImportChunkSize = importer.DefaultChunkSize

func retryConfig(source string) importer.RetryConfig {
	cfg := importer.DefaultRetryConfig()
	if RetryConfigProvider != nil {
		cfg = RetryConfigProvider()
	}
	cfg.Source = source
	return cfg
}

// StartImportRequest is the body for starting an import. The file is
// either embedded as base64 (fileBase64 + filename for format
// detection) or pre-parsed by the caller (headers + rows).
type StartImportRequest struct {
	SupplierID string `json:"supplierId" binding:"required"`
	UserID     string `json:"userId" binding:"required"`
	Filename   string `json:"filename"`
	FileBase64 string `json:"fileBase64,omitempty"`

	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// Mapping overrides header auto-detection when present.
	// Keys are field names, values are 0-based column indexes.
	Mapping map[string]int `json:"mapping,omitempty"`

	ChunkSize int `json:"chunkSize,omitempty"`
}

// ImportStartedResponse is the 202 response when an import is accepted
type ImportStartedResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	PollURL string `json:"pollUrl"`
	Message string `json:"message,omitempty"`
}

// StartImport accepts a supplier file, creates an import job and
// processes its chunks in the background.
// POST /internal/imports
// Returns 202 Accepted immediately with jobId and pollUrl.
func StartImport(c *gin.Context) {
	var req StartImportRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	grid, raw, format, err := gridFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if grid.RowCount() == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File contains no data rows"})
		return
	}

	m, err := resolveMapping(&req, grid.Headers)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	pool := database.Pool()
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ImportChunkSize
	}

	job, err := importer.CreateJob(c.Request.Context(), pool, importer.CreateJobInput{
		SupplierID: req.SupplierID,
		UserID:     req.UserID,
		Filename:   req.Filename,
		TotalRows:  grid.RowCount(),
		ChunkSize:  chunkSize,
		Mapping:    m,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create import job: %v", err),
		})
		return
	}

	if raw != nil {
		archiveSourceFile(c.Request.Context(), &req, raw, format, job.ID)
	}

	chunks := grid.Chunk(chunkSize)

	// Spawn goroutine for actual processing
	go func() {
		// Acquire semaphore slot (blocks if max concurrent reached)
		importSem <- struct{}{}
		defer func() { <-importSem }() // Release semaphore slot when done

		// Use a background context for the goroutine
		bgCtx := context.Background()
		runImportChunks(bgCtx, job.ID, chunks)
	}()

	// Return 202 Accepted immediately
	c.JSON(http.StatusAccepted, ImportStartedResponse{
		JobID:   job.ID,
		Status:  "started",
		PollURL: fmt.Sprintf("/internal/imports/%s", job.ID),
		Message: fmt.Sprintf("Import started for supplier %s (%d rows)", req.SupplierID, grid.RowCount()),
	})
}

// runImportChunks submits every chunk sequentially under the retry
// budget. A dead-lettered chunk does not stop the remaining chunks;
// the job completes through the chunk ledger once the DLQ entries are
// replayed.
func runImportChunks(ctx context.Context, jobID string, chunks [][][]string) {
	pool := database.Pool()
	cfg := retryConfig("upload")

	for i, rows := range chunks {
		_, err := importer.ProcessChunkWithRetry(ctx, pool, importer.ProcessChunkInput{
			JobID:      jobID,
			ChunkIndex: i,
			Rows:       rows,
		}, cfg)
		if err != nil {
			if errors.Is(err, importer.ErrJobNotProcessing) || errors.Is(err, importer.ErrJobNotFound) {
				log.Error().Err(err).Str("job_id", jobID).Msg("import aborted")
				return
			}
			log.Error().Err(err).
				Str("job_id", jobID).
				Int("chunk_index", i).
				Msg("chunk dead-lettered, continuing with remaining chunks")
		}
	}
}

// SubmitChunkRequest is the body for an externally orchestrated chunk
// submission. Delivery is at-least-once; replays are safe.
type SubmitChunkRequest struct {
	ChunkIndex *int           `json:"chunkIndex" binding:"required"`
	Rows       [][]string     `json:"rows" binding:"required"`
	Mapping    map[string]int `json:"mapping,omitempty"`
}

// SubmitChunk applies one chunk to an existing job synchronously.
// POST /internal/imports/:jobId/chunks
func SubmitChunk(c *gin.Context) {
	jobID := c.Param("jobId")

	var req SubmitChunkRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var m mapping.Mapping
	if len(req.Mapping) > 0 {
		m = mappingFromIndexes(req.Mapping)
	}

	result, err := importer.ProcessChunkWithRetry(c.Request.Context(), database.Pool(), importer.ProcessChunkInput{
		JobID:      jobID,
		ChunkIndex: *req.ChunkIndex,
		Rows:       req.Rows,
		Mapping:    m,
	}, retryConfig("upload"))
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		case errors.Is(err, importer.ErrJobNotProcessing):
			c.JSON(http.StatusConflict, gin.H{"error": "Import job is not accepting chunks"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("Chunk processing failed: %v", err),
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// gridFromRequest turns the request into a header+rows grid, parsing
// an embedded file when one is present. Raw bytes are returned so the
// original file can be archived.
func gridFromRequest(req *StartImportRequest) (*feed.Grid, []byte, string, error) {
	if req.FileBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.FileBase64)
		if err != nil {
			return nil, nil, "", fmt.Errorf("fileBase64 is not valid base64")
		}
		switch strings.ToLower(filepath.Ext(req.Filename)) {
		case ".xlsx", ".xls":
			grid, err := feed.ParseXLSX(data)
			return grid, data, "xlsx", err
		default:
			grid, err := feed.ParseCSV(data)
			return grid, data, "csv", err
		}
	}
	if len(req.Headers) == 0 {
		return nil, nil, "", fmt.Errorf("either fileBase64 or headers and rows are required")
	}
	return &feed.Grid{Headers: req.Headers, Rows: req.Rows}, nil, "", nil
}

// archiveSourceFile keeps the original bytes and a checksum record so
// an operator can re-run an import from exactly what the supplier
// sent. Archive failures are logged and never fail the import.
func archiveSourceFile(ctx context.Context, req *StartImportRequest, raw []byte, format, jobID string) {
	now := time.Now()
	file := &database.SourceFile{
		ID:          database.GenerateSourceFileID(),
		SupplierID:  req.SupplierID,
		UserID:      req.UserID,
		Filename:    req.Filename,
		Format:      format,
		StorageType: "local",
		Checksum:    database.CalculateChecksum(raw),
		ReceivedAt:  now,
	}
	size := int64(len(raw))
	file.FileSize = &size

	if FileStore != nil {
		key := storage.BuildSupplierFileKey(req.SupplierID, now, req.Filename)
		err := FileStore.Put(ctx, key, raw, &storage.Metadata{
			OriginalName: req.Filename,
			SupplierID:   req.SupplierID,
			UserID:       req.UserID,
			ReceivedAt:   now,
		})
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("failed to archive supplier file")
			return
		}
		file.StoragePath = key
	}

	if err := database.CreateSourceFile(ctx, file); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("failed to record source file")
		return
	}
	if err := database.LinkSourceFileToJob(ctx, file.ID, jobID); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("failed to link source file to job")
	}
}

// resolveMapping uses the explicit mapping when provided, otherwise
// auto-detects from headers. Files with no usable identifier, reference
// or name column are rejected before any job is created.
func resolveMapping(req *StartImportRequest, headers []string) (mapping.Mapping, error) {
	var m mapping.Mapping
	if len(req.Mapping) > 0 {
		m = mappingFromIndexes(req.Mapping)
	} else {
		m = mapping.DetectMapping(headers)
	}
	if _, ok := m.Column(mapping.FieldName); !ok && !m.HasIdentifier() {
		return nil, fmt.Errorf("no identifier, reference or product name column could be mapped")
	}
	return m, nil
}

func mappingFromIndexes(indexes map[string]int) mapping.Mapping {
	m := mapping.Mapping{}
	for field, col := range indexes {
		m.Set(mapping.Field(field), col)
	}
	return m
}

func parsePagination(c *gin.Context, defaultLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = defaultLimit
	}
	offset = (page - 1) * limit
	return page, limit, offset
}
