// Command etl builds the per-region health table and summarizes it.
//
//	etl prepare    merge the statistics and geocoded inspections into OUTPUT_PATH
//	etl correlate  print the correlation views over OUTPUT_PATH
//	etl validate   check OUTPUT_PATH for integrity problems
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/region-health-etl/internal/config"
	"github.com/couchcryptid/region-health-etl/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Region health ETL",
	Long: "Merges per-region COVID-19 case and vaccination statistics with reverse-geocoded " +
		"restaurant inspections into a single table, then summarizes how they relate.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
