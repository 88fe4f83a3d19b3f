package cli

import (
	"fmt"

	"github.com/eshaffer321/kdp-ads-analytics/internal/application/report"
)

// PrintHeader prints the run header with the resolved reporting window.
func PrintHeader(r *report.Report) {
	fmt.Printf("Pull date: %s, reporting period: %s to %s\n",
		r.PullDate.Format("2006-01-02"),
		r.Window.Start.Format("2006-01-02"),
		r.Window.InclusiveEnd().Format("2006-01-02"))
}

// PrintRunSummary prints where the outputs landed and any degraded
// stages after a report run.
func PrintRunSummary(r *report.Report, markdownPath string) {
	if markdownPath != "" {
		fmt.Printf("Markdown report written to: %s\n", markdownPath)
	}
	if r.SavedSnapshotID > 0 {
		fmt.Println("Snapshot saved to database.")
	}
	for _, warning := range r.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
}
