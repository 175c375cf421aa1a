package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/importer"
)

// ImportJobsResponse is a paginated job listing
type ImportJobsResponse struct {
	Jobs       []database.ImportJob `json:"jobs"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"totalPages"`
}

// FailedRowsResponse is a paginated failed-row listing for one job
type FailedRowsResponse struct {
	FailedRows []database.FailedRow `json:"failedRows"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"totalPages"`
}

// GetImportJob returns one job with its progress counters.
// GET /internal/imports/:jobId
func GetImportJob(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := importer.GetJob(c.Request.Context(), database.Pool(), jobID)
	if err != nil {
		if errors.Is(err, importer.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to lookup import job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListImportJobs returns recent jobs for a user, newest first.
// GET /internal/imports?userId=...
func ListImportJobs(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter is required"})
		return
	}

	page, limit, offset := parsePagination(c, 20)

	jobs, total, err := importer.ListJobs(c.Request.Context(), database.Pool(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list import jobs"})
		return
	}

	c.JSON(http.StatusOK, ImportJobsResponse{
		Jobs:       jobs,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}

// ListJobFailedRows returns the rejected rows of one job with their
// original cell data, so an operator can fix the source file.
// GET /internal/imports/:jobId/failed-rows
func ListJobFailedRows(c *gin.Context) {
	jobID := c.Param("jobId")

	page, limit, offset := parsePagination(c, 50)

	rows, total, err := importer.ListFailedRows(c.Request.Context(), database.Pool(), jobID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list failed rows"})
		return
	}

	c.JSON(http.StatusOK, FailedRowsResponse{
		FailedRows: rows,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}
