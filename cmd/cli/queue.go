package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/spf13/cobra"
)

// queueCmd groups enrichment queue maintenance commands
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Enrichment queue maintenance",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show enrichment queue entry counts by status",
	RunE:  runQueueStats,
}

var queueReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair orphaned and stuck products now",
	Long: `Run one reconciliation sweep immediately: products stuck in enriching
with no live queue entry are reset and re-queued at high priority, and
products enriching for longer than the stuck threshold are re-queued at
urgent priority.`,
	RunE: runQueueReconcile,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueReconcileCmd)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	stats, err := enrichqueue.GetStats(context.Background(), database.Pool())
	if err != nil {
		return fmt.Errorf("failed to query queue stats: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Pending\t%d\n", stats.Pending)
	fmt.Fprintf(w, "Processing\t%d\n", stats.Processing)
	fmt.Fprintf(w, "Completed\t%d\n", stats.Completed)
	fmt.Fprintf(w, "Failed\t%d\n", stats.Failed)
	fmt.Fprintf(w, "Urgent (open)\t%d\n", stats.Urgent)
	w.Flush()

	return nil
}

func runQueueReconcile(cmd *cobra.Command, args []string) error {
	coordinatorCfg := enrichqueue.CoordinatorConfig{}
	if cfg != nil {
		coordinatorCfg.StuckThreshold = cfg.Queue.StuckThreshold
		coordinatorCfg.HighWaterMark = cfg.Queue.HighWaterMark
	}

	result, err := enrichqueue.Reconcile(context.Background(), database.Pool(), coordinatorCfg)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Orphans found\t%d\n", result.OrphansFound)
	fmt.Fprintf(w, "Orphans repaired\t%d\n", result.OrphansRepaired)
	fmt.Fprintf(w, "Stuck found\t%d\n", result.StuckFound)
	fmt.Fprintf(w, "Stuck repaired\t%d\n", result.StuckRepaired)
	fmt.Fprintf(w, "Alert raised\t%t\n", result.AlertRaised)
	w.Flush()

	return nil
}
