// Command trends shows one campaign metric across saved weekly
// snapshots, pivoted into a week x campaign table.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

func main() {
	var (
		metric     = flag.String("metric", "", "Metric to track: spend, impressions, clicks, ctr, acos, orders, roas")
		campaign   = flag.String("campaign", "", "Filter to a specific campaign name")
		weeks      = flag.Int("weeks", 8, "Number of weeks to show")
		configPath = flag.String("config", "config/campaigns.yaml", "Path to campaign config YAML")
		dbPath     = flag.String("db", "", "Snapshot database path (default from config)")
	)
	flag.Parse()

	if *metric == "" {
		fmt.Fprintln(os.Stderr, "-metric is required")
		os.Exit(2)
	}

	cfg := config.LoadOrEnv_WithPath(*configPath)
	path := *dbPath
	if path == "" {
		path = cfg.DatabasePath()
	}

	store, err := storage.NewStorage(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open snapshot database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	data, err := store.TrendData(*metric, *campaign, *weeks)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidMetric) {
			fmt.Fprintf(os.Stderr, "unknown metric %q\n", *metric)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "trend query failed: %v\n", err)
		os.Exit(1)
	}

	if len(data.Rows) == 0 {
		fmt.Println("No historical data found. Run 'report -save' first.")
		return
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	headers := append([]string{"Week"}, data.Campaigns...)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)

	for _, row := range data.Rows {
		cells := []string{row.WeekStart}
		for _, name := range data.Campaigns {
			cells = append(cells, formatValue(*metric, row.Values[name]))
		}
		tbl.Row(cells...)
	}

	fmt.Printf("%s Trend, last %d weeks\n", strings.ToUpper(*metric), *weeks)
	fmt.Println(tbl)
}

// formatValue renders one trend cell in the metric's natural unit.
func formatValue(metric string, v *float64) string {
	if v == nil {
		return "—"
	}
	switch metric {
	case "ctr", "acos":
		return fmt.Sprintf("%.2f%%", *v*100)
	case "spend":
		return fmt.Sprintf("$%.2f", *v)
	case "roas":
		return fmt.Sprintf("%.2fx", *v)
	default:
		return fmt.Sprintf("%d", int(*v))
	}
}
