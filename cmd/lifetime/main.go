// Command lifetime prints the all-time campaign summary across every
// saved weekly snapshot.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config/campaigns.yaml", "Path to campaign config YAML")
		dbPath     = flag.String("db", "", "Snapshot database path (default from config)")
	)
	flag.Parse()

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

	summary, err := store.LifetimeSummary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lifetime query failed: %v\n", err)
		os.Exit(1)
	}
	if summary == nil {
		fmt.Println("No historical data found. Run 'report -save' first.")
		return
	}

	text := fmt.Sprintf(
		"Weeks tracked: %d\nTotal spend: $%.2f\nTotal orders: %d\nTotal sales: $%.2f\nOverall ACoS: %.1f%%\nOverall ROAS: %.2fx\nAvg weekly spend: $%.2f",
		summary.WeeksTracked,
		summary.TotalSpend,
		summary.TotalOrders,
		summary.TotalSales,
		summary.OverallACOS*100,
		summary.OverallROAS,
		summary.AvgWeeklySpend,
	)

	panel := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
	fmt.Println(lipgloss.NewStyle().Bold(true).Render("Lifetime Campaign Summary"))
	fmt.Println(panel.Render(text))
}
