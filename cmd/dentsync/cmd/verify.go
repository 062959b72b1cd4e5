package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/verify"
)

var (
	verifyTables []string
	verifyMethod string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify replicated tables against the source",
	Long: `Verify compares tables between source and target without copying
anything. Count mode compares row counts; sha256 mode hashes every row
on both sides.

Examples:
  dentsync verify --method count
  dentsync verify --table patient --method sha256`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringSliceVarP(&verifyTables, "table", "t", nil,
		"Table name to verify (repeatable; default: all configured tables)")
	verifyCmd.Flags().StringVar(&verifyMethod, "method", "",
		"Verification method (count, sha256; default: from config)")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	method := verify.Method(cfg.Verification.Method)
	if verifyMethod != "" {
		method = verify.Method(verifyMethod)
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

	verifier, err := verify.NewVerifier(dbManager.Source, dbManager.Target, method, log)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}

	order := verifyTables
	if len(order) == 0 {
		order = cfg.ListTables()
	}

	stats, err := verifier.VerifyTables(ctx, cfg.Tables, order)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Verification Complete ===\n")
	fmt.Printf("Method: %s\n", stats.Method)
	fmt.Printf("Tables verified: %d\n", stats.TablesVerified)
	fmt.Printf("Passed: %d\n", stats.TablesPassed)
	fmt.Printf("Failed: %d\n", stats.TablesFailed)
	fmt.Printf("Total rows: %d\n", stats.TotalRows)

	return nil
}
