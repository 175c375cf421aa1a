package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/alerts"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/merchantiq/catalog-service/internal/matcher"
)

// ReconcileConfigProvider supplies the sweep thresholds from config.
// Set once at boot before routes are served.
var ReconcileConfigProvider func() enrichqueue.CoordinatorConfig

// RunMatchingRequest scopes an on-demand matching pass
type RunMatchingRequest struct {
	UserID     string `json:"userId" binding:"required"`
	SupplierID string `json:"supplierId,omitempty"`
}

// RunMatching links unlinked supplier products for a user.
// POST /internal/matching/run
func RunMatching(c *gin.Context) {
	var req RunMatchingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	result, err := matcher.MatchSupplierProducts(c.Request.Context(), database.Pool(), matcher.MatchInput{
		UserID:     req.UserID,
		SupplierID: req.SupplierID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Matching pass failed: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed":     result.Processed,
		"exactMatches":  result.ExactMatches,
		"fuzzyMatches":  result.FuzzyMatches,
		"unmatched":     result.Unmatched,
		"alreadyLinked": result.AlreadyLinked,
		"enqueued":      result.Enqueued,
	})
}

// GetQueueStats returns enrichment queue entry counts by status.
// GET /internal/queue/stats
func GetQueueStats(c *gin.Context) {
	stats, err := enrichqueue.GetStats(c.Request.Context(), database.Pool())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query queue stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ReconcileQueue runs one orphan and stuck-product sweep immediately,
// outside the background sweeper's schedule.
// POST /internal/queue/reconcile
func ReconcileQueue(c *gin.Context) {
	cfg := enrichqueue.CoordinatorConfig{
		StuckThreshold: 30 * time.Minute,
		HighWaterMark:  100,
	}
	if ReconcileConfigProvider != nil {
		cfg = ReconcileConfigProvider()
	}

	result, err := enrichqueue.Reconcile(c.Request.Context(), database.Pool(), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Reconciliation failed: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orphansFound":    result.OrphansFound,
		"orphansRepaired": result.OrphansRepaired,
		"stuckFound":      result.StuckFound,
		"stuckRepaired":   result.StuckRepaired,
		"alertRaised":     result.AlertRaised,
	})
}

// ListAlerts returns recent coordinator alerts, newest first.
// GET /internal/alerts
func ListAlerts(c *gin.Context) {
	_, limit, offset := parsePagination(c, 50)

	list, err := alerts.List(c.Request.Context(), database.Pool(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": list})
}
