package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/matcher"
	"github.com/spf13/cobra"
)

var (
	matchUser     string
	matchSupplier string
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a matching pass over unlinked supplier products",
	Long: `Link unlinked supplier products to catalog products for a user. Exact
identifier matches are tried first, then fuzzy name matches above the
configured similarity threshold. Newly linked products are queued for
enrichment.`,
	Example: `  catalog-service match --user usr_456
  catalog-service match --user usr_456 --supplier sup_123`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&matchUser, "user", "", "Owning user ID (required)")
	matchCmd.Flags().StringVar(&matchSupplier, "supplier", "", "Restrict to one supplier")
	matchCmd.MarkFlagRequired("user")
}

func runMatch(cmd *cobra.Command, args []string) error {
	input := matcher.MatchInput{
		UserID:     matchUser,
		SupplierID: matchSupplier,
	}
	if cfg != nil {
		input.FuzzyThreshold = cfg.Matching.FuzzyThreshold
		input.BatchSize = cfg.Matching.BatchSize
	}

	result, err := matcher.MatchSupplierProducts(context.Background(), database.Pool(), input)
	if err != nil {
		return fmt.Errorf("matching pass failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Processed\t%d\n", result.Processed)
	fmt.Fprintf(w, "Exact matches\t%d\n", result.ExactMatches)
	fmt.Fprintf(w, "Fuzzy matches\t%d\n", result.FuzzyMatches)
	fmt.Fprintf(w, "Unmatched\t%d\n", result.Unmatched)
	fmt.Fprintf(w, "Already linked\t%d\n", result.AlreadyLinked)
	fmt.Fprintf(w, "Enqueued\t%d\n", result.Enqueued)
	w.Flush()

	return nil
}
