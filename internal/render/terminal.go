package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eshaffer321/kdp-ads-analytics/internal/application/report"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// topSearchTerms caps the terms table; the full rollup still lands in
// the markdown file and the snapshot.
const topSearchTerms = 20

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)

	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Terminal renders the weekly report as styled tables and panels.
type Terminal struct {
	w io.Writer
}

// NewTerminal creates a terminal renderer writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Render writes the full report.
func (t *Terminal) Render(r *report.Report) {
	weekStart := r.Window.Start.Format("2006-01-02")
	weekEnd := r.Window.InclusiveEnd().Format("2006-01-02")

	fmt.Fprintln(t.w)
	fmt.Fprintln(t.w, bannerStyle.Render(fmt.Sprintf("Weekly Ad Report  %s to %s", weekStart, weekEnd)))
	fmt.Fprintln(t.w)

	t.campaignSummary(r)
	t.targetPerformance(r, true)
	t.targetPerformance(r, false)
	t.searchTerms(r)
	t.reconciliation(r)
	t.bids(r)
	t.actionItems(r)

	for _, warning := range r.Warnings {
		fmt.Fprintln(t.w, warningStyle.Render("Warning: "+warning))
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func (t *Terminal) section(title string) {
	fmt.Fprintln(t.w, sectionStyle.Render(title))
}

func (t *Terminal) campaignSummary(r *report.Report) {
	t.section("Campaign Summary")

	tbl := newTable("Campaign", "Spend", "Impr", "Clicks", "CTR", "Avg CPC", "Orders", "Sales", "ACoS", "ROAS")
	for _, c := range r.Campaigns {
		spend := fmtDollar(c.Spend)
		ctr := fmtPct(c.CTR)
		orders := fmtInt(c.Orders)
		if c.Deltas != nil {
			spend += deltaSuffix(c.Deltas.Spend, fmtDollar)
			ctr += deltaSuffix(c.Deltas.CTR, fmtPct)
			orders += deltaIntSuffix(c.Deltas.Orders)
		}
		tbl.Row(c.Campaign, spend, fmtInt(c.Impressions), fmtInt(c.Clicks), ctr,
			fmtDollar(c.AvgCPC), orders, fmtDollar(c.Sales), fmtPctPtr(c.ACOS), fmtROAS(c.ROAS))
	}
	fmt.Fprintln(t.w, tbl)
	fmt.Fprintln(t.w)
}

// targetPerformance renders either the ASIN target table or the
// keyword table; the two differ only in the identity columns.
func (t *Terminal) targetPerformance(r *report.Report, products bool) {
	flagsByTarget := flagMap(r.Bids.Flags)

	var tbl *table.Table
	if products {
		t.section("ASIN Target Performance")
		tbl = newTable("Target", "Impr", "Clicks", "CTR", "CPC", "Spend", "Orders", "Conv Rate", "Flags")
	} else {
		t.section("Keyword Performance")
		tbl = newTable("Keyword", "Match", "Impr", "Clicks", "CTR", "CPC", "Spend", "Orders", "Flags")
	}

	rows := 0
	for _, m := range r.Targets {
		if m.Key.IsProduct() != products {
			continue
		}
		rows++
		flags := flagKinds(flagsByTarget[m.Key.Text])
		if products {
			tbl.Row(m.DisplayName(), fmtInt(m.Impressions), fmtInt(m.Clicks), fmtPct(m.CTR),
				fmtDollar(m.CPC), fmtDollar(m.Spend), fmtInt(m.Orders), fmtPct(m.ConversionRate), flags)
		} else {
			tbl.Row(m.Key.Text, m.Key.Match, fmtInt(m.Impressions), fmtInt(m.Clicks), fmtPct(m.CTR),
				fmtDollar(m.CPC), fmtDollar(m.Spend), fmtInt(m.Orders), flags)
		}
	}

	if rows == 0 {
		if products {
			fmt.Fprintln(t.w, dimStyle.Render("No ASIN targeting data."))
		} else {
			fmt.Fprintln(t.w, dimStyle.Render("No keyword targeting data."))
		}
		fmt.Fprintln(t.w)
		return
	}
	fmt.Fprintln(t.w, tbl)
	fmt.Fprintln(t.w)
}

func (t *Terminal) searchTerms(r *report.Report) {
	t.section("Search Term Analysis")

	if note := r.Drift.TransitionNote; note != "" {
		fmt.Fprintln(t.w, dimStyle.Render(note))
	}

	if len(r.Drift.Flags) > 0 {
		fmt.Fprintln(t.w, warningStyle.Render("Drift Detected"))
		for _, f := range r.Drift.Flags {
			fmt.Fprintln(t.w, "  "+styleFor(f.Severity).Render(f.Message))
		}
	}

	if len(r.SearchTerms) == 0 {
		fmt.Fprintln(t.w, dimStyle.Render("No search term data."))
		fmt.Fprintln(t.w)
		return
	}

	tbl := newTable("Search Term", "Impr", "Clicks", "Spend", "Orders")
	for i, s := range r.SearchTerms {
		if i >= topSearchTerms {
			break
		}
		tbl.Row(s.Term, fmtInt(s.Impressions), fmtInt(s.Clicks), fmtDollar(s.Spend), fmtInt(s.Orders))
	}
	fmt.Fprintln(t.w, tbl)
	fmt.Fprintln(t.w)
}

func (t *Terminal) reconciliation(r *report.Report) {
	recon := r.Reconciliation
	if recon == nil {
		return
	}
	t.section("KDP Sales Reconciliation")

	if len(recon.TitleFormat) > 0 {
		tbl := newTable("Title", "Format", "Units", "Royalty")
		for _, item := range recon.TitleFormat {
			tbl.Row(item.Title, string(item.Format), fmtInt(item.Units), fmtDollar(item.Royalty))
		}
		fmt.Fprintln(t.w, tbl)
	}

	if recon.Paired.Count() > 0 {
		var b strings.Builder
		b.WriteString("Same-day Book 1 + Book 2 purchases (likely ad-driven):\n")
		for _, p := range recon.Paired.Purchases {
			fmt.Fprintf(&b, "  %s: %s\n", p.Date.Format("2006-01-02"), p.Details)
		}
		fmt.Fprintln(t.w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	} else if recon.Paired.Note != "" {
		fmt.Fprintln(t.w, dimStyle.Render(recon.Paired.Note))
	}

	gap := fmt.Sprintf(
		"KDP Total Units: %d\nAd-Attributed Orders: %d\nUnattributed Sales: %d (%.1f%%)\nKDP Royalty: %s",
		recon.Totals.KDPUnits,
		recon.Totals.AdAttributedOrders,
		recon.Totals.AttributionGap,
		recon.Totals.AttributionGapPct,
		fmtDollar(recon.Totals.KDPRoyalty),
	)
	if recon.GapNote != "" {
		gap += "\n\n" + dimStyle.Render(recon.GapNote)
	}
	fmt.Fprintln(t.w, panelStyle.Render(gap))

	if inf := recon.AdInfluenced; inf != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Since ads started (%s):\n", inf.AdsStart.Format("2006-01-02"))
		fmt.Fprintf(&b, "  Total KDP units (all books/formats): %d\n", inf.PostAdUnits)
		fmt.Fprintf(&b, "  Total KDP royalty: %s\n", fmtDollar(inf.PostAdRoyalty))
		fmt.Fprintf(&b, "  Total ad spend: %s\n\n", fmtDollar(inf.SpendSinceStart))
		fmt.Fprintf(&b, "  Amazon-Attributed ROAS:  %s\n", fmtROAS(inf.AttributedROAS))
		fmt.Fprintf(&b, "  Ad-Influenced ROAS:      %s  ", fmtROAS(inf.InfluencedROAS))
		b.WriteString(dimStyle.Render("(KDP royalty / ad spend)"))
		b.WriteString("\n")

		if len(inf.PostAdBreakdown) > 0 {
			b.WriteString("\n  Post-Ad Sales Breakdown:\n")
			for _, item := range inf.PostAdBreakdown {
				fmt.Fprintf(&b, "    %s (%s): %d units, %s\n",
					item.Title, item.Format, item.Units, fmtDollar(item.Royalty))
			}
		}
		if inf.Note != "" {
			b.WriteString("\n" + dimStyle.Render(inf.Note))
		}
		fmt.Fprintln(t.w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	}
	fmt.Fprintln(t.w)
}

func (t *Terminal) bids(r *report.Report) {
	t.section("Bid Recommendations")

	if len(r.Bids.Recommendations) == 0 {
		fmt.Fprintln(t.w, dimStyle.Render("No bid recommendation data."))
		fmt.Fprintln(t.w)
		return
	}

	flagsByTarget := flagMap(r.Bids.Flags)
	tbl := newTable("Target", "Campaign", "Clicks", "Orders", "Conv Rate", "Current Bid", "Max Bid", "Flags")
	for _, rec := range r.Bids.Recommendations {
		tbl.Row(rec.DisplayName(), rec.Campaign, fmtInt(rec.Clicks), fmtInt(rec.Orders),
			fmtPct(rec.ConversionRate), fmtDollarPtr(rec.CurrentBid), fmtDollarPtr(rec.MaxProfitableBid),
			flagKinds(flagsByTarget[rec.Key.Text]))
	}
	fmt.Fprintln(t.w, tbl)
	fmt.Fprintln(t.w)
}

func (t *Terminal) actionItems(r *report.Report) {
	flags := actionFlags(r)
	if len(flags) == 0 {
		fmt.Fprintln(t.w, panelStyle.Render(
			goodStyle.Render("No action items: all targets performing within thresholds.")))
		return
	}

	var b strings.Builder
	warnings, infos := splitBySeverity(flags)
	if len(warnings) > 0 {
		b.WriteString(warningStyle.Render("Warnings:") + "\n")
		for _, f := range warnings {
			b.WriteString("  - " + f.Message + "\n")
		}
	}
	if len(infos) > 0 {
		b.WriteString(infoStyle.Render("Info:") + "\n")
		for _, f := range infos {
			b.WriteString("  - " + f.Message + "\n")
		}
	}
	fmt.Fprintln(t.w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// actionFlags gathers every flag the run raised, drift first, in the
// stages' stable emission order.
func actionFlags(r *report.Report) []ads.Flag {
	flags := make([]ads.Flag, 0, len(r.Drift.Flags)+len(r.Bids.Flags))
	flags = append(flags, r.Drift.Flags...)
	flags = append(flags, r.Bids.Flags...)
	return flags
}

func splitBySeverity(flags []ads.Flag) (warnings, infos []ads.Flag) {
	for _, f := range flags {
		if f.Severity == ads.SeverityWarning {
			warnings = append(warnings, f)
		} else {
			infos = append(infos, f)
		}
	}
	return warnings, infos
}

func flagMap(flags []ads.Flag) map[string][]ads.Flag {
	byTarget := make(map[string][]ads.Flag)
	for _, f := range flags {
		byTarget[f.Target] = append(byTarget[f.Target], f)
	}
	return byTarget
}

// flagKinds renders a target's flags as colored [kind] markers.
func flagKinds(flags []ads.Flag) string {
	var b strings.Builder
	for _, f := range flags {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(styleFor(f.Severity).Render("[" + string(f.Kind) + "]"))
	}
	return b.String()
}

func styleFor(severity ads.Severity) lipgloss.Style {
	if severity == ads.SeverityWarning {
		return warningStyle
	}
	return infoStyle
}
