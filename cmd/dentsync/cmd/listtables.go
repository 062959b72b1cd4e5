package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
)

var listTablesCmd = &cobra.Command{
	Use:   "list-tables",
	Short: "List all tables defined in configuration",
	Long: `List-tables displays every table in the configuration file along with
its replication settings, in processing order.

Example:
  dentsync list-tables --config dentsync.yaml`,
	RunE: runListTables,
}

func init() {
	rootCmd.AddCommand(listTablesCmd)
}

func runListTables(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	names := cfg.TablesByPriority()
	if len(names) == 0 {
		cmd.Printf("No tables defined in %s\n", configFile)
		return nil
	}

	cmd.Printf("Tables defined in %s (processing order):\n\n", configFile)

	for i, name := range names {
		tbl, err := cfg.GetTable(name)
		if err != nil {
			return fmt.Errorf("failed to get table %q: %w", name, err)
		}

		cmd.Printf("%d. %s\n", i+1, name)
		cmd.Printf("   Category:      %s\n", tbl.PerformanceCategory)
		cmd.Printf("   Strategy:      %s\n", tbl.ExtractionStrategy)
		cmd.Printf("   Primary Key:   %s\n", tbl.PrimaryKeyColumn())

		if len(tbl.IncrementalColumns) > 0 {
			cmd.Printf("   Incremental:   %v", tbl.IncrementalColumns)
			if tbl.PrimaryIncrementalColumn != "" {
				cmd.Printf(" (primary: %s)", tbl.PrimaryIncrementalColumn)
			}
			cmd.Println()
		} else {
			cmd.Printf("   Incremental:   (none, full refresh only)\n")
		}

		if tbl.BatchSize > 0 {
			cmd.Printf("   Batch Size:    %d (explicit)\n", tbl.BatchSize)
		}
		if tbl.EstimatedRows > 0 {
			cmd.Printf("   Est. Rows:     %d\n", tbl.EstimatedRows)
		}
		if tbl.EstimatedSizeMB > 0 {
			cmd.Printf("   Est. Size:     %.1f MB\n", tbl.EstimatedSizeMB)
		}
		if tbl.ProcessingPriority != "" {
			cmd.Printf("   Priority:      %s (rank %d)\n", tbl.ProcessingPriority, tbl.PriorityRank())
		}

		if i < len(names)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d table(s)\n", len(names))
	return nil
}
