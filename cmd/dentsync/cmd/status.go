package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/replicator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show copy-status bookkeeping from the target database",
	Long: `Status reads the copy-status table on the target and prints the last
copy time, watermark, row count and outcome for every tracked table.

Only the target database is contacted.

Example:
  dentsync status --config dentsync.yaml`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if err := dbManager.ConnectTarget(ctx); err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer dbManager.Close()

	store, err := replicator.NewTrackingStore(dbManager.Target, log)
	if err != nil {
		return fmt.Errorf("failed to open tracking store: %w", err)
	}

	records, err := store.Records(ctx)
	if err != nil {
		return fmt.Errorf("failed to read copy status: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No tables have been copied yet.")
		return nil
	}

	widths := []int{24, 20, 12, 10, 22}
	headers := []string{"TABLE", "LAST COPIED", "ROWS", "STATUS", "WATERMARK"}

	var header string
	for i, h := range headers {
		header += runewidth.FillRight(h, widths[i]) + "  "
	}
	fmt.Println(color.Gray.Sprint(header))

	for _, rec := range records {
		status := string(rec.CopyStatus)
		switch rec.CopyStatus {
		case replicator.StatusSuccess:
			status = color.Green.Sprint(status)
		case replicator.StatusFailed:
			status = color.Red.Sprint(status)
		default:
			status = color.Yellow.Sprint(status)
		}

		watermark := rec.LastPrimaryValue
		if watermark == "" {
			watermark = "-"
		}

		fmt.Printf("%s  %s  %s  %s  %s\n",
			runewidth.FillRight(rec.TableName, widths[0]),
			runewidth.FillRight(rec.LastCopied.Format("2006-01-02 15:04:05"), widths[1]),
			runewidth.FillRight(fmt.Sprintf("%d", rec.RowsCopied), widths[2]),
			status+strings.Repeat(" ", padWidth(status, widths[3])),
			runewidth.FillRight(watermark, widths[4]),
		)
	}

	fmt.Printf("\nTotal: %d table(s)\n", len(records))
	return nil
}

// padWidth returns how much padding a colored cell needs to reach width.
func padWidth(colored string, width int) int {
	visible := color.ClearCode(colored)
	pad := width - runewidth.StringWidth(visible)
	if pad < 0 {
		return 0
	}
	return pad
}
