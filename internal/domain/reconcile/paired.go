package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// PairedPurchase is one date on which both books sold.
type PairedPurchase struct {
	Date    time.Time
	Details string
}

// PairedResult lists same-day co-purchases of the two books. Note is
// set when detection could not run (monthly data has no same-day
// signal).
type PairedResult struct {
	Purchases []PairedPurchase
	Note      string
}

// Count is the number of paired-purchase dates.
func (p PairedResult) Count() int {
	return len(p.Purchases)
}

// DetectPaired finds dates where at least one unit of each book was
// ordered. The ads target Book 2, so a same-day Book 1 order is a
// strong read-through signal the attribution data never shows.
// Requires daily order data; a monthly batch yields an empty result
// with an explanatory note rather than a guess.
func DetectPaired(orders []ads.LedgerRecord, book1ASINs, book2ASINs []string) PairedResult {
	if len(orders) == 0 || len(book1ASINs) == 0 || len(book2ASINs) == 0 {
		return PairedResult{}
	}

	if ads.DetectGranularity(orders) == ads.GranularityMonthly {
		return PairedResult{
			Note: "Paired purchase detection requires daily order data; monthly granularity is insufficient.",
		}
	}

	book1 := asinSet(book1ASINs)
	book2 := asinSet(book2ASINs)

	type dayKey struct{ y, m, d int }
	byDay := make(map[dayKey][]ads.LedgerRecord)
	for _, r := range orders {
		if r.Date.IsZero() || r.Units() <= 0 {
			continue
		}
		k := dayKey{r.Date.Year(), int(r.Date.Month()), r.Date.Day()}
		byDay[k] = append(byDay[k], r)
	}

	var result PairedResult
	for day, records := range byDay {
		hasBook1, hasBook2 := false, false
		details := make(map[string]bool)
		for _, r := range records {
			switch {
			case book1[r.ASIN]:
				hasBook1 = true
				details[fmt.Sprintf("Book 1: %s", displayTitle(r))] = true
			case book2[r.ASIN]:
				hasBook2 = true
				details[fmt.Sprintf("Book 2: %s", displayTitle(r))] = true
			}
		}
		if !hasBook1 || !hasBook2 {
			continue
		}

		parts := make([]string, 0, len(details))
		for d := range details {
			parts = append(parts, d)
		}
		sort.Strings(parts)

		result.Purchases = append(result.Purchases, PairedPurchase{
			Date:    time.Date(day.y, time.Month(day.m), day.d, 0, 0, 0, 0, time.UTC),
			Details: strings.Join(parts, " + "),
		})
	}

	sort.Slice(result.Purchases, func(i, j int) bool {
		return result.Purchases[i].Date.Before(result.Purchases[j].Date)
	})
	return result
}

func asinSet(asins []string) map[string]bool {
	set := make(map[string]bool, len(asins))
	for _, a := range asins {
		if a != "" {
			set[a] = true
		}
	}
	return set
}

func displayTitle(r ads.LedgerRecord) string {
	if r.Title != "" {
		return r.Title
	}
	return r.ASIN
}
