// Package reconcile merges ad-attributed order figures with the KDP
// royalty ledger over a reporting window. The two sources disagree by
// design: Amazon only attributes sales of the exact advertised ASIN,
// while the ledger records every sale of every format. The gap between
// them, and the ledger-based ROI since ads started, are the numbers
// this package exists to surface.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// ReconciliationError is the fatal case: reconciliation without any
// royalty data is meaningless, so an empty ledger aborts the run.
type ReconciliationError struct {
	Reason string
}

func (e *ReconciliationError) Error() string {
	return "reconciliation failed: " + e.Reason
}

// AdTotals are the window's ad-attributed figures, summed across
// campaigns by the aggregator.
type AdTotals struct {
	Orders int
	Sales  float64
	Spend  float64
}

// Config is the reconciliation context from campaign configuration.
type Config struct {
	// AdsStart is the date the ad campaigns began. Zero disables the
	// ad-influenced analysis.
	AdsStart time.Time
	// SpendSinceStart is the total ad spend from AdsStart through the
	// current window, including prior stored weeks.
	SpendSinceStart float64
	// Book1ASINs and Book2ASINs identify the two related products
	// across formats for paired-purchase detection.
	Book1ASINs []string
	Book2ASINs []string
}

// Totals is the headline reconciliation arithmetic.
type Totals struct {
	KDPUnits           int
	KDPRoyalty         float64
	AdAttributedOrders int
	AdAttributedSales  float64
	// AttributionGap is signed: positive means organic or halo demand
	// the attribution misses, negative means attribution without
	// ledger confirmation yet (timing lag). Informational either way.
	AttributionGap    int
	AttributionGapPct float64
}

// LineItem is one title x format slice of the ledger.
type LineItem struct {
	Title   string
	Format  ads.Format
	Units   int
	Royalty float64
}

// DailyLine is one date x title x format slice of the ledger.
type DailyLine struct {
	Date    time.Time
	Title   string
	Format  ads.Format
	Units   int
	Royalty float64
}

// TitleTotal sums one title across formats.
type TitleTotal struct {
	Title   string
	Units   int
	Royalty float64
}

// FormatTotal sums one format across titles.
type FormatTotal struct {
	Format  ads.Format
	Units   int
	Royalty float64
}

// Result is the full reconciliation output for one window.
type Result struct {
	Window      ads.Window
	Granularity ads.Granularity
	Totals      Totals
	// GapNote explains what the gap can and cannot mean, including
	// the monthly-granularity caveat when it applies.
	GapNote        string
	DailyBreakdown []DailyLine
	TitleFormat    []LineItem
	TitleTotals    []TitleTotal
	FormatTotals   []FormatTotal
	Paired         PairedResult
	AdInfluenced   *AdInfluenced
}

// Reconcile compares the royalty ledger against ad-attributed totals
// for the window [window.Start, window.End).
//
// Granularity is inferred from the royalty batch itself. Daily ledgers
// filter to the window exactly. Monthly ledgers cannot: the months
// overlapping the window are reported in full, with a note naming the
// approximation. The orders batch (daily ebook orders) feeds the
// paired-purchase detection and the ad-influenced estimate.
func Reconcile(royalty, orders []ads.LedgerRecord, adTotals AdTotals, window ads.Window, cfg Config) (*Result, error) {
	if len(royalty) == 0 {
		return nil, &ReconciliationError{Reason: "royalty ledger is empty"}
	}

	granularity := ads.DetectGranularity(royalty)
	inWindow := filterWindow(royalty, window, granularity)

	result := &Result{
		Window:         window,
		Granularity:    granularity,
		DailyBreakdown: dailyBreakdown(inWindow),
		TitleFormat:    titleFormatBreakdown(inWindow),
		TitleTotals:    titleTotals(inWindow),
		FormatTotals:   formatTotals(inWindow),
		Paired:         DetectPaired(orders, cfg.Book1ASINs, cfg.Book2ASINs),
		AdInfluenced:   estimateAdInfluenced(royalty, orders, adTotals, cfg),
	}

	var units int
	var royaltyTotal float64
	for _, r := range inWindow {
		units += r.Units()
		royaltyTotal += r.Royalty
	}

	gap := units - adTotals.Orders
	gapPct := 0.0
	if units > 0 {
		gapPct = float64(gap) / float64(units) * 100
	}
	result.Totals = Totals{
		KDPUnits:           units,
		KDPRoyalty:         royaltyTotal,
		AdAttributedOrders: adTotals.Orders,
		AdAttributedSales:  adTotals.Sales,
		AttributionGap:     gap,
		AttributionGapPct:  gapPct,
	}
	result.GapNote = gapNote(granularity, inWindow)

	return result, nil
}

// filterWindow selects the ledger records covering the window. Daily
// data filters exactly; monthly data keeps every month the window
// touches, since a month cannot be split.
func filterWindow(records []ads.LedgerRecord, window ads.Window, granularity ads.Granularity) []ads.LedgerRecord {
	var out []ads.LedgerRecord

	if granularity == ads.GranularityMonthly {
		months := windowMonths(window)
		for _, r := range records {
			if r.Date.IsZero() {
				continue
			}
			if months[monthOf(r.Date)] {
				out = append(out, r)
			}
		}
		return out
	}

	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		if window.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// windowMonths lists the first-of-month dates the window overlaps.
// The window's exclusive end never drags in an extra month.
func windowMonths(window ads.Window) map[time.Time]bool {
	months := make(map[time.Time]bool)
	last := monthOf(window.InclusiveEnd())
	for m := monthOf(window.Start); !m.After(last); m = m.AddDate(0, 1, 0) {
		months[m] = true
	}
	return months
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func gapNote(granularity ads.Granularity, inWindow []ads.LedgerRecord) string {
	if granularity == ads.GranularityMonthly {
		names := monthNames(inWindow)
		period := "the matching month"
		if len(names) > 0 {
			period = strings.Join(names, ", ")
		}
		return fmt.Sprintf(
			"KDP data is monthly granularity (%s). "+
				"Weekly ad-attributed orders compared against full-month KDP sales — "+
				"gap may be larger than actual weekly difference. "+
				"Amazon only attributes sales of the exact advertised ASIN (Book 2 Kindle). "+
				"Book 1 sales and paperback sales driven by ads are not attributed. "+
				"KDP report is ground truth.",
			period)
	}
	return "Amazon only attributes sales of the exact advertised ASIN (Book 2 Kindle). " +
		"Book 1 sales, paperback sales, and read-through purchases driven by ads " +
		"are not attributed. KDP report is ground truth."
}

func monthNames(records []ads.LedgerRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		name := r.Date.Format("January 2006")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func titleFormatBreakdown(records []ads.LedgerRecord) []LineItem {
	type key struct {
		title  string
		format ads.Format
	}
	groups := make(map[key]*LineItem)
	for _, r := range records {
		k := key{r.Title, r.Format}
		item, ok := groups[k]
		if !ok {
			item = &LineItem{Title: r.Title, Format: r.Format}
			groups[k] = item
		}
		item.Units += r.Units()
		item.Royalty += r.Royalty
	}

	out := make([]LineItem, 0, len(groups))
	for _, item := range groups {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Format < out[j].Format
	})
	return out
}

func dailyBreakdown(records []ads.LedgerRecord) []DailyLine {
	type key struct {
		date   time.Time
		title  string
		format ads.Format
	}
	groups := make(map[key]*DailyLine)
	for _, r := range records {
		k := key{r.Date, r.Title, r.Format}
		line, ok := groups[k]
		if !ok {
			line = &DailyLine{Date: r.Date, Title: r.Title, Format: r.Format}
			groups[k] = line
		}
		line.Units += r.Units()
		line.Royalty += r.Royalty
	}

	out := make([]DailyLine, 0, len(groups))
	for _, line := range groups {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Format < out[j].Format
	})
	return out
}

func titleTotals(records []ads.LedgerRecord) []TitleTotal {
	groups := make(map[string]*TitleTotal)
	for _, r := range records {
		t, ok := groups[r.Title]
		if !ok {
			t = &TitleTotal{Title: r.Title}
			groups[r.Title] = t
		}
		t.Units += r.Units()
		t.Royalty += r.Royalty
	}

	out := make([]TitleTotal, 0, len(groups))
	for _, t := range groups {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func formatTotals(records []ads.LedgerRecord) []FormatTotal {
	groups := make(map[ads.Format]*FormatTotal)
	for _, r := range records {
		f, ok := groups[r.Format]
		if !ok {
			f = &FormatTotal{Format: r.Format}
			groups[r.Format] = f
		}
		f.Units += r.Units()
		f.Royalty += r.Royalty
	}

	out := make([]FormatTotal, 0, len(groups))
	for _, f := range groups {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out
}
