// Package bids derives the maximum profitable bid per target from
// blended unit economics and classifies current bids against it. It
// also emits the per-target performance flags (high spend with no
// orders, underserved impressions, missing data) that sit alongside
// the bid math.
package bids

import (
	"fmt"
	"sort"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
)

// Defaults used when configuration leaves a setting unset or invalid.
const (
	DefaultTargetACOS     = 0.50
	DefaultBlendedRoyalty = 5.00
	DefaultHighSpendFlag  = 5.00
	DefaultLowImpressions = 10
)

// Settings are the economics and thresholds behind the bid math.
type Settings struct {
	// TargetACOS is the advertising cost of sales the bids should
	// hold, as a fraction (0.50 = half of sales spent on ads).
	TargetACOS float64
	// BlendedRoyalty is the average royalty across formats, used as
	// the per-order value.
	BlendedRoyalty float64
	// HighSpendFlag is the spend above which an orderless target gets
	// a warning.
	HighSpendFlag float64
	// LowImpressions is the impression count below which a product
	// target is considered underserved.
	LowImpressions int
}

func (s Settings) withDefaults() Settings {
	if s.TargetACOS <= 0 {
		s.TargetACOS = DefaultTargetACOS
	}
	if s.BlendedRoyalty <= 0 {
		s.BlendedRoyalty = DefaultBlendedRoyalty
	}
	if s.HighSpendFlag <= 0 {
		s.HighSpendFlag = DefaultHighSpendFlag
	}
	if s.LowImpressions <= 0 {
		s.LowImpressions = DefaultLowImpressions
	}
	return s
}

// Classification of a current bid against the computed maximum.
type Classification string

const (
	// Unclassified means no configured bid or no conversion data.
	Unclassified    Classification = ""
	AboveProfitable Classification = "bid_above_profitable"
	BelowRange      Classification = "bid_below_range"
	WithinRange     Classification = "within_range"
)

// Recommendation is the bid analysis for one target.
// MaxProfitableBid is nil when the target has no conversions yet.
type Recommendation struct {
	Campaign         string
	Key              ads.TargetingKey
	Title            string
	Impressions      int
	Clicks           int
	Orders           int
	Spend            float64
	ConversionRate   float64
	CurrentBid       *float64
	MaxProfitableBid *float64
	Classification   Classification
}

// DisplayName is the configured title when present, the raw key
// otherwise.
func (r Recommendation) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Key.String()
}

// Result carries the recommendations (ordered by descending spend) and
// the flags raised along the way, in the same order.
type Result struct {
	Recommendations []Recommendation
	Flags           []ads.Flag
}

// Recommend computes max profitable bids for every target and emits
// performance flags.
//
// maxProfitableBid = blendedRoyalty * conversionRate / targetACoS. A
// target converting 10% of clicks with a $5 blended royalty at a 50%
// ACoS target supports a $1.00 bid. Flags are orthogonal to the bid
// classification; one target can carry several.
func Recommend(targets []aggregate.TargetMetrics, settings Settings) Result {
	settings = settings.withDefaults()

	ordered := make([]aggregate.TargetMetrics, len(targets))
	copy(ordered, targets)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Spend != ordered[j].Spend {
			return ordered[i].Spend > ordered[j].Spend
		}
		return ordered[i].Key.Text < ordered[j].Key.Text
	})

	result := Result{Recommendations: make([]Recommendation, 0, len(ordered))}
	for _, m := range ordered {
		rec := recommendation(m, settings)
		result.Recommendations = append(result.Recommendations, rec)
		result.Flags = append(result.Flags, targetFlags(m, rec, settings)...)
	}

	return result
}

func recommendation(m aggregate.TargetMetrics, settings Settings) Recommendation {
	rec := Recommendation{
		Campaign:       m.Campaign,
		Key:            m.Key,
		Title:          m.Title,
		Impressions:    m.Impressions,
		Clicks:         m.Clicks,
		Orders:         m.Orders,
		Spend:          m.Spend,
		ConversionRate: m.ConversionRate,
		CurrentBid:     m.Bid,
	}

	if m.ConversionRate <= 0 {
		return rec
	}

	maxBid := settings.BlendedRoyalty * m.ConversionRate / settings.TargetACOS
	rec.MaxProfitableBid = &maxBid
	if m.Bid == nil {
		return rec
	}

	switch {
	case *m.Bid > maxBid:
		rec.Classification = AboveProfitable
	case *m.Bid < maxBid*0.5:
		rec.Classification = BelowRange
	default:
		rec.Classification = WithinRange
	}
	return rec
}

// targetFlags emits every flag that applies to one target.
func targetFlags(m aggregate.TargetMetrics, rec Recommendation, settings Settings) []ads.Flag {
	flag := func(kind ads.FlagKind, severity ads.Severity, message string) ads.Flag {
		return ads.Flag{
			Kind:     kind,
			Severity: severity,
			Campaign: m.Campaign,
			Target:   m.Key.Text,
			Spend:    m.Spend,
			Message:  message,
		}
	}

	// Configured targets that never showed up in the export get a
	// single inactivity note instead of the data-quality flags.
	if m.Configured && !m.Observed {
		return []ads.Flag{flag(ads.FlagZeroActivity, ads.SeverityInfo, fmt.Sprintf(
			"%s (%s): No activity this week — not appearing in search term data",
			rec.DisplayName(), m.Key.Text))}
	}

	var flags []ads.Flag

	if m.Spend > settings.HighSpendFlag && m.Orders == 0 {
		flags = append(flags, flag(ads.FlagHighSpendNoOrders, ads.SeverityWarning,
			fmt.Sprintf("$%.2f spent with 0 orders", m.Spend)))
	}

	if m.Key.IsProduct() && m.Impressions < settings.LowImpressions {
		flags = append(flags, flag(ads.FlagUnderserving, ads.SeverityInfo,
			fmt.Sprintf("Only %d impressions (bid may be too low)", m.Impressions)))
	}

	if !m.Key.IsProduct() && m.Impressions == 0 {
		bid := 0.0
		if m.Bid != nil {
			bid = *m.Bid
		}
		flags = append(flags, flag(ads.FlagZeroImpressions, ads.SeverityInfo,
			fmt.Sprintf("Zero impressions — bid ($%.2f) may be too low", bid)))
	}

	if m.Impressions == 0 && m.Clicks == 0 {
		flags = append(flags, flag(ads.FlagNoData, ads.SeverityInfo,
			"No impressions or clicks — insufficient data for bid recommendation"))
	}

	if m.Clicks > 0 && m.Orders == 0 {
		flags = append(flags, flag(ads.FlagNoConversions, ads.SeverityInfo,
			fmt.Sprintf("%d clicks but 0 orders — no conversion data yet. "+
				"Consider lowering bid or pausing if trend continues.", m.Clicks)))
	}

	switch rec.Classification {
	case AboveProfitable:
		flags = append(flags, flag(ads.FlagBidAboveProfitable, ads.SeverityWarning,
			fmt.Sprintf("Current bid $%.2f exceeds max profitable bid $%.2f at %.0f%% ACoS target",
				*rec.CurrentBid, *rec.MaxProfitableBid, settings.TargetACOS*100)))
	case BelowRange:
		flags = append(flags, flag(ads.FlagBidBelowRange, ads.SeverityInfo,
			fmt.Sprintf("Current bid $%.2f is well below max profitable bid $%.2f — room to increase for more impressions",
				*rec.CurrentBid, *rec.MaxProfitableBid)))
	}

	return flags
}
