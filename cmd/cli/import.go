package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/feed"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/spf13/cobra"
)

var (
	importSupplier  string
	importUser      string
	importChunkSize int
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a supplier product file",
	Long: `Import a local supplier file (CSV or XLSX) into the catalog. Columns are
detected automatically from the header row; rows are normalized, upserted by
identifier, matched against the product catalog and queued for enrichment.
The command runs every chunk synchronously and prints the final counters.`,
	Example: `  catalog-service import ./feeds/acme.csv --supplier sup_123 --user usr_456
  catalog-service import ./feeds/acme.xlsx --supplier sup_123 --user usr_456 --chunk-size 100`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importSupplier, "supplier", "", "Supplier ID (required)")
	importCmd.Flags().StringVar(&importUser, "user", "", "Owning user ID (required)")
	importCmd.Flags().IntVar(&importChunkSize, "chunk-size", 0, "Rows per chunk (defaults to config)")
	importCmd.MarkFlagRequired("supplier")
	importCmd.MarkFlagRequired("user")
}

func runImport(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	ctx := context.Background()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var grid *feed.Grid
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xls":
		grid, err = feed.ParseXLSX(data)
	default:
		grid, err = feed.ParseCSV(data)
	}
	if err != nil {
		return fmt.Errorf("failed to parse file: %w", err)
	}
	if grid.RowCount() == 0 {
		return fmt.Errorf("file contains no data rows")
	}

	m := mapping.DetectMapping(grid.Headers)
	if _, ok := m.Column(mapping.FieldName); !ok && !m.HasIdentifier() {
		return fmt.Errorf("no identifier, reference or product name column could be mapped")
	}

	chunkSize := importChunkSize
	if chunkSize <= 0 && cfg != nil && cfg.Import.ChunkSize > 0 {
		chunkSize = cfg.Import.ChunkSize
	}

	pool := database.Pool()
	job, err := importer.CreateJob(ctx, pool, importer.CreateJobInput{
		SupplierID: importSupplier,
		UserID:     importUser,
		Filename:   filepath.Base(filePath),
		TotalRows:  grid.RowCount(),
		ChunkSize:  chunkSize,
		Mapping:    m,
	})
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	logger.Info().
		Str("job_id", job.ID).
		Int("total_rows", job.TotalRows).
		Int("total_chunks", job.TotalChunks).
		Msg("Import job created")

	retryCfg := importer.DefaultRetryConfig()
	if cfg != nil && cfg.Import.ChunkMaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Import.ChunkMaxAttempts
		retryCfg.InitialBackoff = cfg.Import.InitialBackoff
		retryCfg.MaxBackoff = cfg.Import.MaxBackoff
	}

	for i, rows := range grid.Chunk(chunkSizeOr(job, chunkSize)) {
		_, err := importer.ProcessChunkWithRetry(ctx, pool, importer.ProcessChunkInput{
			JobID:      job.ID,
			ChunkIndex: i,
			Rows:       rows,
		}, retryCfg)
		if err != nil {
			logger.Error().Err(err).Int("chunk_index", i).Msg("Chunk failed, dead-lettered")
		}
	}

	final, err := importer.GetJob(ctx, pool, job.ID)
	if err != nil {
		return fmt.Errorf("failed to reload job: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Job\t%s\n", final.ID)
	fmt.Fprintf(w, "Status\t%s\n", final.Status)
	fmt.Fprintf(w, "Processed rows\t%d / %d\n", final.ProcessedRows, final.TotalRows)
	fmt.Fprintf(w, "New products\t%d\n", final.NewProducts)
	fmt.Fprintf(w, "Updated products\t%d\n", final.UpdatedProducts)
	fmt.Fprintf(w, "Matched products\t%d\n", final.MatchedProducts)
	fmt.Fprintf(w, "Failed rows\t%d\n", final.FailedRows)
	w.Flush()

	return nil
}

func chunkSizeOr(job *database.ImportJob, requested int) int {
	if requested > 0 {
		return requested
	}
	if job.ChunkSize > 0 {
		return job.ChunkSize
	}
	return importer.DefaultChunkSize
}
