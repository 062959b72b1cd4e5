package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/replicator"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a replication run would do without moving data",
	Long: `Plan evaluates every configured table and reports the decisions a run
would make: extraction strategy (with full-refresh reasons), computed
batch size, current watermark, and estimated pending rows.

No data is modified.

Example:
  dentsync plan --config dentsync.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.BatchSize, overrides.SkipVerify)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbManager := database.NewManager(cfg)

	ctx := context.Background()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	rep, err := replicator.New(cfg, dbManager, log)
	if err != nil {
		return fmt.Errorf("failed to create replicator: %w", err)
	}

	if err := rep.Initialize(ctx); err != nil {
		return fmt.Errorf("replicator initialization failed: %w", err)
	}

	planner := replicator.NewPlanner(dbManager.Source, cfg, rep, log)

	plans, err := planner.Plan(ctx)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	planner.DisplayPlan(plans)
	return nil
}
