package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/feed"
	"github.com/merchantiq/catalog-service/internal/httpclient"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/merchantiq/catalog-service/internal/mapping"
)

// feedClient is shared across feed imports so the rate limiter applies
// to the process, not to individual requests.
var feedClient = httpclient.NewClient(httpclient.DefaultConfig())

// ImportFeedRequest triggers an import from a supplier's JSON API feed.
// FieldPaths maps catalog fields to dot-notation paths in the feed
// items, e.g. {"ean": "product.barcode", "product_name": "title"}.
type ImportFeedRequest struct {
	SupplierID string            `json:"supplierId" binding:"required"`
	UserID     string            `json:"userId" binding:"required"`
	FeedURL    string            `json:"feedUrl" binding:"required"`
	FieldPaths map[string]string `json:"fieldPaths" binding:"required"`
	ChunkSize  int               `json:"chunkSize,omitempty"`
}

// ImportFeed fetches a supplier API feed and runs it through the same
// chunked import pipeline as file uploads.
// POST /internal/imports/feed
// Returns 202 Accepted with jobId and pollUrl.
func ImportFeed(c *gin.Context) {
	var req ImportFeedRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	paths := feed.FieldPaths{}
	for field, path := range req.FieldPaths {
		paths[mapping.Field(field)] = path
	}
	if _, ok := paths[mapping.FieldEAN]; !ok {
		if _, ok := paths[mapping.FieldReference]; !ok {
			if _, ok := paths[mapping.FieldName]; !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error": "fieldPaths must map at least one of ean, reference or product_name",
				})
				return
			}
		}
	}

	grid, m, err := feed.FetchAPIFeed(c.Request.Context(), feedClient, req.FeedURL, paths)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("Failed to fetch supplier feed: %v", err),
		})
		return
	}
	if grid.RowCount() == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Feed contains no items"})
		return
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ImportChunkSize
	}

	job, err := importer.CreateJob(c.Request.Context(), database.Pool(), importer.CreateJobInput{
		SupplierID: req.SupplierID,
		UserID:     req.UserID,
		Filename:   req.FeedURL,
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

	chunks := grid.Chunk(chunkSize)

	go func() {
		importSem <- struct{}{}
		defer func() { <-importSem }()

		bgCtx := context.Background()
		runFeedChunks(bgCtx, job.ID, chunks)
	}()

	c.JSON(http.StatusAccepted, ImportStartedResponse{
		JobID:   job.ID,
		Status:  "started",
		PollURL: fmt.Sprintf("/internal/imports/%s", job.ID),
		Message: fmt.Sprintf("Feed import started for supplier %s (%d items)", req.SupplierID, grid.RowCount()),
	})
}

func runFeedChunks(ctx context.Context, jobID string, chunks [][][]string) {
	cfg := retryConfig("api_feed")
	pool := database.Pool()

	for i, rows := range chunks {
		_, err := importer.ProcessChunkWithRetry(ctx, pool, importer.ProcessChunkInput{
			JobID:      jobID,
			ChunkIndex: i,
			Rows:       rows,
		}, cfg)
		if err != nil {
			// Dead-lettered chunks are replayed by an operator; the
			// remaining chunks still run
			continue
		}
	}
}
