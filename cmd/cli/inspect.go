package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/merchantiq/catalog-service/internal/feed"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/merchantiq/catalog-service/internal/mapping"
	"github.com/spf13/cobra"
)

var inspectOutput string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Inspect a supplier file without importing it",
	Long: `Parse a local supplier file (CSV or XLSX), show the detected delimiter,
encoding and column mapping, and run the normalization pass without writing
anything. Use it to verify how a file will be interpreted before importing.`,
	Example: `  catalog-service inspect ./feeds/acme.csv
  catalog-service inspect ./feeds/acme.xlsx --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectOutput, "output", "table", "Output format: table or json")
}

type inspectReport struct {
	Rows     int               `json:"rows"`
	Headers  []string          `json:"headers"`
	Mapping  map[string]int    `json:"mapping"`
	Prepared int               `json:"prepared"`
	Rejected int               `json:"rejected"`
	Samples  []inspectedSample `json:"samples,omitempty"`
}

type inspectedSample struct {
	RowNumber int     `json:"rowNumber"`
	EAN       *string `json:"ean"`
	Reference *string `json:"reference"`
	Name      *string `json:"name"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	filePath := args[0]

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

	m := mapping.DetectMapping(grid.Headers)
	prepared, rejected := importer.PrepareRows(grid.Rows, m, 1)

	report := inspectReport{
		Rows:     grid.RowCount(),
		Headers:  grid.Headers,
		Mapping:  map[string]int{},
		Prepared: len(prepared),
		Rejected: len(rejected),
	}
	for _, field := range mapping.AllFields() {
		if col, ok := m.Column(field); ok {
			report.Mapping[string(field)] = col
		}
	}
	for i, row := range prepared {
		if i >= 5 {
			break
		}
		report.Samples = append(report.Samples, inspectedSample{
			RowNumber: row.RowNumber,
			EAN:       row.Record.EAN,
			Reference: row.Record.Reference,
			Name:      row.Record.Name,
		})
	}

	if inspectOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Rows\t%d\n", report.Rows)
	fmt.Fprintf(w, "Prepared\t%d\n", report.Prepared)
	fmt.Fprintf(w, "Rejected\t%d\n", report.Rejected)
	fmt.Fprintln(w, "Field\tColumn\tHeader")
	for _, field := range mapping.AllFields() {
		if col, ok := m.Column(field); ok {
			header := ""
			if col < len(grid.Headers) {
				header = grid.Headers[col]
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", field, col, header)
		}
	}
	w.Flush()

	return nil
}
