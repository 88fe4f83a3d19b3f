package reconcile

import (
	"fmt"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// AdInfluenced estimates total ad-influenced sales across both books
// and all formats. Amazon only attributes the advertised ASIN, but ads
// also drive other-format purchases, Book 1 read-through, and paired
// buys. The split point is the configured ads start date, applied to
// the full ledger rather than the current window.
type AdInfluenced struct {
	AdsStart time.Time

	PostAdUnits           int
	PostAdRoyalty         float64
	PostAdEbookDailyUnits int
	PostAdBreakdown       []LineItem

	PreAdUnits   int
	PreAdRoyalty float64

	// WindowSpend is the current window's ad spend; SpendSinceStart
	// covers every week from AdsStart through this window.
	WindowSpend     float64
	SpendSinceStart float64

	AdAttributedOrders int
	AdAttributedSales  float64

	// AttributedROAS is ad-attributed sales over window spend.
	// InfluencedROAS is all post-start ledger royalty over all
	// post-start ad spend. The two answer different questions and are
	// never interchangeable.
	AttributedROAS *float64
	InfluencedROAS *float64

	Note string
}

// estimateAdInfluenced splits the ledger at the ads start date. A zero
// AdsStart disables the analysis.
func estimateAdInfluenced(royalty, orders []ads.LedgerRecord, adTotals AdTotals, cfg Config) *AdInfluenced {
	if cfg.AdsStart.IsZero() {
		return nil
	}

	est := &AdInfluenced{
		AdsStart:           cfg.AdsStart,
		WindowSpend:        adTotals.Spend,
		SpendSinceStart:    cfg.SpendSinceStart,
		AdAttributedOrders: adTotals.Orders,
		AdAttributedSales:  adTotals.Sales,
	}

	monthly := ads.DetectGranularity(royalty) == ads.GranularityMonthly
	var post []ads.LedgerRecord
	for _, r := range royalty {
		if r.Date.IsZero() {
			continue
		}
		if isPostStart(r.Date, cfg.AdsStart, monthly) {
			post = append(post, r)
			est.PostAdUnits += r.Units()
			est.PostAdRoyalty += r.Royalty
		} else {
			est.PreAdUnits += r.Units()
			est.PreAdRoyalty += r.Royalty
		}
	}
	est.PostAdBreakdown = titleFormatBreakdown(post)

	for _, r := range orders {
		if r.Date.IsZero() || r.Date.Before(cfg.AdsStart) {
			continue
		}
		est.PostAdEbookDailyUnits += r.Units()
	}

	if adTotals.Spend > 0 && adTotals.Sales > 0 {
		roas := adTotals.Sales / adTotals.Spend
		est.AttributedROAS = &roas
	}
	if cfg.SpendSinceStart > 0 && est.PostAdRoyalty > 0 {
		roas := est.PostAdRoyalty / cfg.SpendSinceStart
		est.InfluencedROAS = &roas
	}

	note := ""
	if monthly {
		note = "KDP royalty data is monthly. Post-ad totals include the full month " +
			"of the ad start date — some pre-ad sales may be included. "
	}
	est.Note = note + fmt.Sprintf(
		"Ad-influenced includes all KDP sales (both books, all formats) since "+
			"ads started (%s). Amazon only attributes Book 2 Kindle sales.",
		cfg.AdsStart.Format("2006-01-02"))

	return est
}

// isPostStart decides which side of the ads start date a ledger row
// falls on. Monthly rows count as post-start when their month contains
// or follows the start date, since a month cannot be split.
func isPostStart(date, adsStart time.Time, monthly bool) bool {
	if monthly {
		return !monthOf(date).Before(monthOf(adsStart))
	}
	return !date.Before(adsStart)
}
