package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	batchSize  int
	skipVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "dentsync",
	Short: "MySQL practice-database replicator",
	Long: `A CLI tool for replicating dental practice OLTP data from a source
MySQL server into a local analytics MySQL database.

Features:
  - Per-table full or incremental replication with watermark tracking
  - Performance-category batch sizing with runtime retuning
  - Automatic full-refresh fallback for stale or drifted tables
  - Crash-safe resume via copy-status bookkeeping on the target
  - Data verification (count and SHA256)`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dentsync.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override computed batch size (rows per page)")

	// Safety overrides
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip data verification after copy")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel   string
	LogFormat  string
	BatchSize  int
	SkipVerify bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		BatchSize:  batchSize,
		SkipVerify: skipVerify,
	}
}
