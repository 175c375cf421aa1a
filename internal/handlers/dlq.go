package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/dlq"
	"github.com/merchantiq/catalog-service/internal/importer"
)

// DeadLettersResponse is a paginated dead-letter listing, unresolved first
type DeadLettersResponse struct {
	Entries    []database.DeadLetterEntry `json:"entries"`
	Total      int                        `json:"total"`
	Page       int                        `json:"page"`
	TotalPages int                        `json:"totalPages"`
}

// ResolveRequest identifies the operator acting on a dead-letter entry
type ResolveRequest struct {
	ResolvedBy string `json:"resolvedBy" binding:"required"`
}

// ListDeadLetters returns dead-lettered chunks for operator review.
// GET /internal/dead-letters
func ListDeadLetters(c *gin.Context) {
	page, limit, offset := parsePagination(c, 50)

	entries, total, err := dlq.ListEntries(c.Request.Context(), database.Pool(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list dead letter entries"})
		return
	}

	c.JSON(http.StatusOK, DeadLettersResponse{
		Entries:    entries,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}

// GetDeadLetter returns one entry with its full replay payload.
// GET /internal/dead-letters/:entryId
func GetDeadLetter(c *gin.Context) {
	entry, err := dlq.GetEntry(c.Request.Context(), database.Pool(), c.Param("entryId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dead letter entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// RetryDeadLetter replays the stored chunk payload against its job.
// On success the entry is marked resolved; on failure the attempt is
// recorded and the entry stays open.
// POST /internal/dead-letters/:entryId/retry
func RetryDeadLetter(c *gin.Context) {
	entryID := c.Param("entryId")

	var req ResolveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resolvedBy is required"})
		return
	}

	pool := database.Pool()
	err := dlq.RetryChunk(c.Request.Context(), pool, entryID, req.ResolvedBy, func(ctx context.Context, entry *database.DeadLetterEntry) error {
		return importer.ReplayDeadLetteredChunk(ctx, pool, entry)
	})
	if err != nil {
		switch {
		case errors.Is(err, dlq.ErrEntryResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "Entry is already resolved"})
		default:
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": fmt.Sprintf("Retry failed, entry kept for further attempts: %v", err),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entryId": entryID,
		"status":  "resolved",
	})
}

// ResolveDeadLetter marks an entry resolved without replaying it, for
// chunks the operator has handled out of band.
// POST /internal/dead-letters/:entryId/resolve
func ResolveDeadLetter(c *gin.Context) {
	entryID := c.Param("entryId")

	var req ResolveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resolvedBy is required"})
		return
	}

	err := dlq.MarkResolved(c.Request.Context(), database.Pool(), entryID, req.ResolvedBy)
	if err != nil {
		if errors.Is(err, dlq.ErrEntryResolved) {
			c.JSON(http.StatusConflict, gin.H{"error": "Entry is already resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entryId": entryID,
		"status":  "resolved",
	})
}
