package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/dlq"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/spf13/cobra"
)

var (
	dlqLimit    int
	dlqResolver string
)

// dlqCmd groups dead letter queue operator commands
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead letter queue operations",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered chunks, unresolved first",
	RunE:  runDlqList,
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry <entryId>",
	Short: "Replay a dead-lettered chunk against its job",
	Long: `Replay the stored chunk payload against its import job. Row upserts are
idempotent and chunk counters are ledgered, so a retry never double-counts.
On success the entry is marked resolved; on failure the attempt is recorded
and the entry stays open.`,
	Args: cobra.ExactArgs(1),
	RunE: runDlqRetry,
}

var dlqResolveCmd = &cobra.Command{
	Use:   "resolve <entryId>",
	Short: "Mark an entry resolved without replaying it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDlqResolve,
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)
	dlqCmd.AddCommand(dlqResolveCmd)

	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 50, "Max entries to list")
	dlqRetryCmd.Flags().StringVar(&dlqResolver, "by", "cli", "Operator identity recorded on resolution")
	dlqResolveCmd.Flags().StringVar(&dlqResolver, "by", "cli", "Operator identity recorded on resolution")
}

func runDlqList(cmd *cobra.Command, args []string) error {
	entries, total, err := dlq.ListEntries(context.Background(), database.Pool(), dlqLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter entries: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJob\tChunk\tSource\tAttempts\tResolved\tCreated\tError")
	for _, e := range entries {
		errMsg := e.ErrorMessage
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%t\t%s\t%s\n",
			e.ID, e.JobID, e.ChunkIndex, e.Source, e.Attempts, e.Resolved,
			e.CreatedAt.Format(time.RFC3339), errMsg)
	}
	w.Flush()
	fmt.Printf("\n%d of %d entries\n", len(entries), total)

	return nil
}

func runDlqRetry(cmd *cobra.Command, args []string) error {
	entryID := args[0]
	ctx := context.Background()
	pool := database.Pool()

	err := dlq.RetryChunk(ctx, pool, entryID, dlqResolver, func(ctx context.Context, entry *database.DeadLetterEntry) error {
		return importer.ReplayDeadLetteredChunk(ctx, pool, entry)
	})
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}

	logger.Info().Str("entry_id", entryID).Msg("Entry replayed and resolved")
	return nil
}

func runDlqResolve(cmd *cobra.Command, args []string) error {
	entryID := args[0]

	if err := dlq.MarkResolved(context.Background(), database.Pool(), entryID, dlqResolver); err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	logger.Info().Str("entry_id", entryID).Msg("Entry resolved")
	return nil
}
