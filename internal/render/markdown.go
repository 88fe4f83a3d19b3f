package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/application/report"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// WriteMarkdown writes the weekly report to
// <outputDir>/week-<week_end>.md, creating the directory if needed,
// and returns the written path.
func WriteMarkdown(r *report.Report, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	weekEnd := r.Window.InclusiveEnd().Format("2006-01-02")
	path := filepath.Join(outputDir, fmt.Sprintf("week-%s.md", weekEnd))

	if err := os.WriteFile(path, []byte(Markdown(r)), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown report: %w", err)
	}
	return path, nil
}

// Markdown renders the full report as a markdown document.
func Markdown(r *report.Report) string {
	weekStart := r.Window.Start.Format("2006-01-02")
	weekEnd := r.Window.InclusiveEnd().Format("2006-01-02")

	var totalSpend float64
	var totalOrders int
	for _, c := range r.Campaigns {
		totalSpend += c.Spend
		totalOrders += c.Orders
	}

	sections := []string{
		fmt.Sprintf("# Weekly Ad Report — Week of %s to %s\n\nGenerated: %s\n\n**Total Spend**: %s | **Total Orders**: %s",
			weekStart, weekEnd,
			time.Now().Format("2006-01-02 15:04"),
			fmtDollar(totalSpend), fmtInt(totalOrders)),
		campaignSection(r),
		targetSection(r, true),
		targetSection(r, false),
		searchTermSection(r),
		reconciliationSection(r),
		bidSection(r),
		actionItemsSection(r),
	}

	return strings.Join(sections, "\n\n---\n\n") + "\n"
}

// mdTable builds a pipe table from a header row and data rows.
func mdTable(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func flagList(flags []ads.Flag) string {
	var b strings.Builder
	b.WriteString("**Flags:**\n")
	for _, f := range flags {
		icon := ">"
		if f.Severity == ads.SeverityWarning {
			icon = "!!!"
		}
		fmt.Fprintf(&b, "- %s %s\n", icon, f.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func campaignSection(r *report.Report) string {
	headers := []string{"Campaign", "Spend", "Impr", "Clicks", "CTR", "Avg CPC", "Orders", "Sales", "ACoS", "ROAS"}
	rows := make([][]string, 0, len(r.Campaigns))
	for _, c := range r.Campaigns {
		spend := fmtDollar(c.Spend)
		orders := fmtInt(c.Orders)
		if c.Deltas != nil {
			spend += deltaSuffix(c.Deltas.Spend, fmtDollar)
			orders += deltaIntSuffix(c.Deltas.Orders)
		}
		rows = append(rows, []string{
			c.Campaign, spend, fmtInt(c.Impressions), fmtInt(c.Clicks), fmtPct(c.CTR),
			fmtDollar(c.AvgCPC), orders, fmtDollar(c.Sales), fmtPctPtr(c.ACOS), fmtROAS(c.ROAS),
		})
	}
	return "## 1. Campaign Summary\n\n" + mdTable(headers, rows)
}

func targetSection(r *report.Report, products bool) string {
	title := "## 2. ASIN Target Performance"
	empty := "No ASIN targeting data."
	if !products {
		title = "## 3. Keyword Performance"
		empty = "No keyword targeting data."
	}

	var rows [][]string
	var targetFlags []ads.Flag
	flagsByTarget := flagMap(r.Bids.Flags)
	for _, m := range r.Targets {
		if m.Key.IsProduct() != products {
			continue
		}
		if products {
			display := m.Key.Text
			if m.Title != "" {
				display = fmt.Sprintf("%s (%s)", m.Title, m.Key.Text)
			}
			rows = append(rows, []string{
				display, fmtInt(m.Impressions), fmtInt(m.Clicks), fmtPct(m.CTR),
				fmtDollar(m.CPC), fmtDollar(m.Spend), fmtInt(m.Orders), fmtPct(m.ConversionRate),
			})
		} else {
			rows = append(rows, []string{
				m.Key.Text, m.Key.Match, fmtInt(m.Impressions), fmtInt(m.Clicks), fmtPct(m.CTR),
				fmtDollar(m.CPC), fmtDollar(m.Spend), fmtInt(m.Orders),
			})
		}
		targetFlags = append(targetFlags, flagsByTarget[m.Key.Text]...)
	}

	if len(rows) == 0 {
		return title + "\n\n" + empty
	}

	headers := []string{"Target", "Impr", "Clicks", "CTR", "CPC", "Spend", "Orders", "Conv Rate"}
	if !products {
		headers = []string{"Keyword", "Match", "Impr", "Clicks", "CTR", "CPC", "Spend", "Orders"}
	}
	section := title + "\n\n" + mdTable(headers, rows)
	if len(targetFlags) > 0 {
		section += "\n\n" + flagList(targetFlags)
	}
	return section
}

func searchTermSection(r *report.Report) string {
	var b strings.Builder
	b.WriteString("## 4. Search Term Analysis\n")

	if note := r.Drift.TransitionNote; note != "" {
		b.WriteString("\n> " + note + "\n")
	}

	if len(r.Drift.Flags) > 0 {
		b.WriteString("\n### Drift Detected\n\n")
		for _, f := range r.Drift.Flags {
			icon := ">"
			if f.Severity == ads.SeverityWarning {
				icon = "!!!"
			}
			fmt.Fprintf(&b, "- %s %s\n", icon, f.Message)
		}
	}

	if len(r.SearchTerms) > 0 {
		b.WriteString("\n### Top Search Terms (by spend)\n\n")
		rows := make([][]string, 0, topSearchTerms)
		for i, s := range r.SearchTerms {
			if i >= topSearchTerms {
				break
			}
			rows = append(rows, []string{
				s.Term, fmtInt(s.Impressions), fmtInt(s.Clicks), fmtDollar(s.Spend), fmtInt(s.Orders),
			})
		}
		b.WriteString(mdTable([]string{"Search Term", "Impr", "Clicks", "Spend", "Orders"}, rows))
	}

	return strings.TrimRight(b.String(), "\n")
}

func reconciliationSection(r *report.Report) string {
	recon := r.Reconciliation
	if recon == nil {
		return "## 5. KDP Sales Reconciliation\n\nNo ledger data."
	}

	var b strings.Builder
	b.WriteString("## 5. KDP Sales Reconciliation\n")

	if len(recon.TitleFormat) > 0 {
		rows := make([][]string, 0, len(recon.TitleFormat))
		for _, item := range recon.TitleFormat {
			rows = append(rows, []string{
				item.Title, string(item.Format), fmtInt(item.Units), fmtDollar(item.Royalty),
			})
		}
		b.WriteString("\n" + mdTable([]string{"Title", "Format", "Units", "Royalty"}, rows) + "\n")
	}

	if recon.Paired.Count() > 0 {
		b.WriteString("\n### Paired Purchases\n\n")
		for _, p := range recon.Paired.Purchases {
			fmt.Fprintf(&b, "- %s: %s\n", p.Date.Format("2006-01-02"), p.Details)
		}
	}

	b.WriteString("\n### Attribution Gap\n\n")
	fmt.Fprintf(&b, "- **KDP Total Units**: %d\n", recon.Totals.KDPUnits)
	fmt.Fprintf(&b, "- **Ad-Attributed Orders**: %d\n", recon.Totals.AdAttributedOrders)
	fmt.Fprintf(&b, "- **Unattributed Sales**: %d (%.1f%%)\n", recon.Totals.AttributionGap, recon.Totals.AttributionGapPct)
	fmt.Fprintf(&b, "- **KDP Royalty**: %s\n", fmtDollar(recon.Totals.KDPRoyalty))
	if recon.GapNote != "" {
		b.WriteString("\n> " + recon.GapNote + "\n")
	}

	if inf := recon.AdInfluenced; inf != nil {
		b.WriteString("\n### Ad-Influenced Analysis\n\n")
		fmt.Fprintf(&b, "Since ads started (%s):\n\n", inf.AdsStart.Format("2006-01-02"))
		fmt.Fprintf(&b, "- **Total KDP units**: %d\n", inf.PostAdUnits)
		fmt.Fprintf(&b, "- **Total KDP royalty**: %s\n", fmtDollar(inf.PostAdRoyalty))
		fmt.Fprintf(&b, "- **Total ad spend**: %s\n", fmtDollar(inf.SpendSinceStart))
		fmt.Fprintf(&b, "- **Amazon-Attributed ROAS**: %s\n", fmtROAS(inf.AttributedROAS))
		fmt.Fprintf(&b, "- **Ad-Influenced ROAS**: %s (KDP royalty / ad spend)\n", fmtROAS(inf.InfluencedROAS))
		if inf.Note != "" {
			b.WriteString("\n> " + inf.Note + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func bidSection(r *report.Report) string {
	if len(r.Bids.Recommendations) == 0 {
		return "## 6. Bid Recommendations\n\nNo bid recommendation data."
	}

	headers := []string{"Target", "Campaign", "Clicks", "Orders", "Conv Rate", "Current Bid", "Max Bid"}
	rows := make([][]string, 0, len(r.Bids.Recommendations))
	for _, rec := range r.Bids.Recommendations {
		rows = append(rows, []string{
			rec.Key.Text, rec.Campaign, fmtInt(rec.Clicks), fmtInt(rec.Orders),
			fmtPct(rec.ConversionRate), fmtDollarPtr(rec.CurrentBid), fmtDollarPtr(rec.MaxProfitableBid),
		})
	}

	section := "## 6. Bid Recommendations\n\n" + mdTable(headers, rows)
	if len(r.Bids.Flags) > 0 {
		section += "\n\n" + flagList(r.Bids.Flags)
	}
	return section
}

func actionItemsSection(r *report.Report) string {
	flags := actionFlags(r)
	if len(flags) == 0 {
		return "## Action Items\n\nNo action items — all targets performing within thresholds."
	}

	var b strings.Builder
	b.WriteString("## Action Items\n")
	warnings, infos := splitBySeverity(flags)
	if len(warnings) > 0 {
		b.WriteString("\n### Warnings\n\n")
		for _, f := range warnings {
			b.WriteString("- " + f.Message + "\n")
		}
	}
	if len(infos) > 0 {
		b.WriteString("\n### Info\n\n")
		for _, f := range infos {
			b.WriteString("- " + f.Message + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
