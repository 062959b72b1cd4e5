package replicator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/sqlutil"
)

// TablePlan describes what a run would do to one table, without moving rows.
type TablePlan struct {
	Table             string
	Category          config.PerformanceCategory
	Priority          int
	Strategy          config.ExtractionStrategy
	FullRefresh       bool
	FullRefreshReason string
	BatchSize         int
	Watermark         string
	WatermarkColumn   string
	PendingRows       int64 // -1 when unknown
}

// Planner produces the dry-run execution plan: per-table strategy decisions,
// batch sizes, watermarks and pending-row estimates, in processing order.
type Planner struct {
	source   *sql.DB
	cfg      *config.Config
	store    *TrackingStore
	selector *StrategySelector
	advisor  *BatchAdvisor
	copier   *BulkCopier
	logger   *logger.Logger
}

// NewPlanner creates a planner over an initialized replicator.
func NewPlanner(source *sql.DB, cfg *config.Config, r *Replicator, log *logger.Logger) *Planner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Planner{
		source:   source,
		cfg:      cfg,
		store:    r.Store(),
		selector: r.Selector(),
		advisor:  r.Advisor(),
		copier:   r.copier,
		logger:   log,
	}
}

// Plan evaluates every configured table in processing order. Estimation
// failures degrade the affected entry rather than failing the plan.
func (p *Planner) Plan(ctx context.Context) (*orderedmap.OrderedMap[string, TablePlan], error) {
	plans := orderedmap.NewOrderedMap[string, TablePlan]()

	for _, name := range p.cfg.TablesByPriority() {
		tbl := p.cfg.Tables[name]
		entry := TablePlan{
			Table:       name,
			Category:    tbl.PerformanceCategory,
			Priority:    tbl.PriorityRank(),
			BatchSize:   p.advisor.ComputeBatchSize(name, &tbl),
			PendingRows: -1,
		}

		entry.FullRefresh, entry.FullRefreshReason = p.selector.ShouldUseFullRefresh(ctx, name, &tbl)
		if entry.FullRefresh {
			entry.Strategy = config.StrategyFullTable
			entry.PendingRows = p.countAll(ctx, name)
		} else {
			entry.Strategy = p.selector.ExtractionStrategyFor(name, &tbl)

			column, err := p.copier.ResolveIncrementalColumn(&tbl)
			if err == nil {
				entry.WatermarkColumn = column
				value, recordedColumn := p.store.LastWatermark(ctx, name)
				if value != "" && recordedColumn == column {
					entry.Watermark = value
				} else {
					entry.Watermark = p.store.TargetMaxWatermark(ctx, name, column)
				}
				entry.PendingRows = p.countPending(ctx, name, column, entry.Watermark)
			}
		}

		plans.Set(name, entry)
	}

	return plans, nil
}

func (p *Planner) countAll(ctx context.Context, table string) int64 {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlutil.QuoteIdentifier(table))
	var count int64
	if err := p.source.QueryRowContext(ctx, query).Scan(&count); err != nil {
		p.logger.Warnf("Failed to estimate count for %s: %v", table, err)
		return -1
	}
	return count
}

func (p *Planner) countPending(ctx context.Context, table, column, watermark string) int64 {
	if watermark == "" {
		return p.countAll(ctx, table)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > ?",
		sqlutil.QuoteIdentifier(table), sqlutil.QuoteIdentifier(column))
	var count int64
	if err := p.source.QueryRowContext(ctx, query, watermark).Scan(&count); err != nil {
		p.logger.Warnf("Failed to estimate pending rows for %s: %v", table, err)
		return -1
	}
	return count
}

// planColumns defines the dry-run table layout.
var planColumns = []struct {
	header string
	width  int
}{
	{"TABLE", 24},
	{"CATEGORY", 10},
	{"STRATEGY", 22},
	{"BATCH", 8},
	{"PENDING", 10},
	{"WATERMARK", 22},
}

// DisplayPlan prints the dry-run execution plan to stdout.
func (p *Planner) DisplayPlan(plans *orderedmap.OrderedMap[string, TablePlan]) {
	fmt.Printf("\n%s\n\n", color.Bold.Sprint("=== Dry-Run Execution Plan ==="))

	var header string
	for _, col := range planColumns {
		header += runewidth.FillRight(col.header, col.width) + "  "
	}
	fmt.Println(color.Gray.Sprint(header))

	for el := plans.Front(); el != nil; el = el.Next() {
		entry := el.Value

		strategy := string(entry.Strategy)
		if entry.FullRefresh {
			strategy = color.Yellow.Sprint("full_table")
		}

		pending := "?"
		if entry.PendingRows >= 0 {
			pending = fmt.Sprintf("%d", entry.PendingRows)
		}

		watermark := entry.Watermark
		if watermark == "" {
			watermark = "-"
		}

		fmt.Printf("%s  %s  %s  %s  %s  %s\n",
			runewidth.FillRight(entry.Table, planColumns[0].width),
			runewidth.FillRight(string(entry.Category), planColumns[1].width),
			fillRightColored(strategy, planColumns[2].width),
			runewidth.FillRight(fmt.Sprintf("%d", entry.BatchSize), planColumns[3].width),
			runewidth.FillRight(pending, planColumns[4].width),
			runewidth.FillRight(watermark, planColumns[5].width),
		)
		if entry.FullRefresh && entry.FullRefreshReason != "" {
			fmt.Printf("  %s %s\n", color.Gray.Sprint("reason:"), entry.FullRefreshReason)
		}
	}

	fmt.Printf("\n%s\n", color.Bold.Sprint("=== End of Dry-Run ==="))
	fmt.Printf("\nNo data was modified. Use the %s command to execute.\n", color.Green.Sprint("replicate"))
}

// fillRightColored pads a possibly color-escaped cell to the display width of
// its visible text.
func fillRightColored(s string, width int) string {
	visible := color.ClearCode(s)
	pad := width - runewidth.StringWidth(visible)
	for pad > 0 {
		s += " "
		pad--
	}
	return s
}
