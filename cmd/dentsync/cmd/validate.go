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

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
against the source database to ensure safe execution.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity (source, target)
  - Table existence on the source
  - Configured primary key and incremental column existence
  - Index coverage warnings for incremental columns

Example:
  dentsync validate --config dentsync.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	log.Info("Starting validation checks...")

	dbManager := database.NewManager(cfg)

	ctx := context.Background()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	fmt.Printf("\n=== Configuration Validation ===\n")
	fmt.Printf("Config file: %s\n", configFile)
	fmt.Printf("Tables found: %d\n\n", len(cfg.Tables))

	checker, err := replicator.NewPreflightChecker(
		dbManager.Source,
		cfg.Source.Database,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create preflight checker: %w", err)
	}

	if err := checker.RunAllChecks(ctx, cfg.Tables); err != nil {
		fmt.Printf("❌ Preflight checks failed: %v\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Println("=== Validation Complete ===")
	fmt.Println("✅ Configuration and preflight checks passed")
	return nil
}
