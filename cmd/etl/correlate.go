package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/region-health-etl/internal/analysis"
	"github.com/couchcryptid/region-health-etl/internal/table"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Print correlation views over the region table",
	Long: "Reads the table written by prepare and prints, for each view, the number of regions, " +
		"Pearson r, r squared, and the least-squares slope and intercept. Regions whose health " +
		"metric is suppressed are left out of that view.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("table")
		if path == "" {
			path = cfg.OutputPath
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		withPoints, _ := cmd.Flags().GetBool("points")

		records, err := table.ReadFile(path)
		if err != nil {
			return fmt.Errorf("correlate: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "Table has no regions.")
			return nil
		}

		results := analysis.Views(records)
		if asJSON {
			return writeResultsJSON(os.Stdout, results, withPoints)
		}
		formatResults(os.Stdout, results)
		return nil
	},
}

func init() {
	correlateCmd.Flags().String("table", "", "table to read (default OUTPUT_PATH)")
	correlateCmd.Flags().Bool("json", false, "print results as JSON")
	correlateCmd.Flags().Bool("points", false, "include per-region points in JSON output")
	rootCmd.AddCommand(correlateCmd)
}

func formatResults(w io.Writer, results []analysis.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VIEW\tN\tR\tR²\tSLOPE\tINTERCEPT")
	for _, r := range results {
		if r.Fit.Degenerate {
			fmt.Fprintf(tw, "%s\t%d\t-\t-\t-\t-\n", r.Name, r.Fit.N)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.4g\t%.4g\n",
			r.Name, r.Fit.N, r.Fit.R, r.Fit.RSquared, r.Fit.Slope, r.Fit.Intercept)
	}
	tw.Flush() //nolint:errcheck
}

func writeResultsJSON(w io.Writer, results []analysis.Result, withPoints bool) error {
	if !withPoints {
		trimmed := make([]analysis.Result, len(results))
		for i, r := range results {
			r.Points = nil
			trimmed[i] = r
		}
		results = trimmed
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
