package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/lock"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/replicator"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/verify"
)

var (
	replicateTables   []string
	replicateAll      bool
	replicateForce    bool
	replicateFull     bool
	replicateCategory string
	replicatePriority int
)

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Replicate tables from source to target database",
	Long: `Replicate copies configured tables from the source practice database
into the target analytics database.

For each table the process:
  1. Decides between full refresh and incremental copy
  2. Computes a batch size from the table's performance category
  3. Pages rows across, advancing the incremental watermark
  4. Records the outcome in the copy-status table on the target
  5. Optionally verifies the copy (count or SHA256)

A failed table is recorded and skipped; the run continues with the
remaining tables.

Examples:
  dentsync replicate --all
  dentsync replicate --table patient --table appointment
  dentsync replicate --table patient --force-full
  dentsync replicate --category large
  dentsync replicate --max-priority 5`,
	RunE: runReplicate,
}

func init() {
	replicateCmd.Flags().StringSliceVarP(&replicateTables, "table", "t", nil,
		"Table name to replicate (repeatable)")
	replicateCmd.Flags().BoolVar(&replicateAll, "all", false,
		"Replicate every configured table")
	replicateCmd.Flags().BoolVar(&replicateFull, "force-full", false,
		"Force a full refresh regardless of strategy selection")
	replicateCmd.Flags().StringVar(&replicateCategory, "category", "",
		"Replicate only tables of this performance category (tiny, small, medium, large)")
	replicateCmd.Flags().IntVar(&replicatePriority, "max-priority", 0,
		"Replicate only tables with priority rank at most this value (1 is highest)")
	replicateCmd.Flags().BoolVar(&replicateForce, "force", false,
		"Force execution even if the run lock cannot be acquired (use with caution)")

	rootCmd.AddCommand(replicateCmd)
}

func runReplicate(cmd *cobra.Command, args []string) error {
	if !replicateAll && len(replicateTables) == 0 && replicateCategory == "" && replicatePriority == 0 {
		return fmt.Errorf("nothing selected: use --all, --table, --category or --max-priority")
	}

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

	log.Infow("Starting replication run",
		"config", configFile,
		"tables", replicateTables,
		"all", replicateAll,
	)

	dbManager := database.NewManager(cfg)

	// Graceful shutdown: a signal cancels the context and the run stops
	// after the table in flight.
	ctx, cancel := context.WithCancel(database.SetupSignalHandlerWithCallback(func(sig os.Signal) {
		log.Warnf("Received %s - finishing current table...", sig)
	}))
	defer cancel()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	// Serialize runs against the same target database.
	if !replicateForce {
		runLock := lock.NewRunLock(dbManager.Target, cfg.Target.Database)
		if err := runLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("a replication run is already active against %s (use --force to override)", cfg.Target.Database)
			}
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		defer runLock.ReleaseLock(context.Background())
		log.Infow("Acquired run lock", "scope", cfg.Target.Database)
	} else {
		log.Warn("Skipping run lock acquisition (--force flag used)")
	}

	rep, err := replicator.New(cfg, dbManager, log)
	if err != nil {
		return fmt.Errorf("failed to create replicator: %w", err)
	}

	if err := rep.Initialize(ctx); err != nil {
		return fmt.Errorf("replicator initialization failed: %w", err)
	}

	var results map[string]bool
	switch {
	case replicateCategory != "":
		category := config.PerformanceCategory(replicateCategory)
		if !category.Valid() {
			return fmt.Errorf("unknown performance category %q", replicateCategory)
		}
		results = rep.CopyTablesByCategory(ctx, category)
	case replicatePriority > 0:
		results = rep.CopyTablesByPriority(ctx, replicatePriority)
	case replicateAll:
		results = rep.CopyAllTables(ctx, nil, replicateFull)
	default:
		results = rep.CopyAllTables(ctx, replicateTables, replicateFull)
	}

	if ctx.Err() != nil {
		log.Warn("Replication run cancelled by user")
	}

	var succeeded, failed []string
	for name, ok := range results {
		if ok {
			succeeded = append(succeeded, name)
		} else {
			failed = append(failed, name)
		}
	}
	sort.Strings(succeeded)
	sort.Strings(failed)

	if len(succeeded) > 0 && !cfg.Verification.SkipVerification {
		verifier, err := verify.NewVerifier(dbManager.Source, dbManager.Target,
			verify.Method(cfg.Verification.Method), log)
		if err != nil {
			return fmt.Errorf("failed to create verifier: %w", err)
		}
		if _, err := verifier.VerifyTables(ctx, cfg.Tables, succeeded); err != nil {
			return fmt.Errorf("post-copy verification failed: %w", err)
		}
	}

	fmt.Printf("\n=== Replication Complete ===\n")
	fmt.Printf("Tables processed: %d\n", len(results))
	fmt.Printf("Succeeded: %d\n", len(succeeded))
	fmt.Printf("Failed: %d\n", len(failed))
	if len(failed) > 0 {
		fmt.Printf("\nFailed tables:\n")
		for _, name := range failed {
			fmt.Printf("  - %s\n", name)
		}
		return fmt.Errorf("replication completed with %d failed tables", len(failed))
	}

	return nil
}
