package storage

import (
	"errors"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/bids"
)

// ErrInvalidMetric is returned when a trend query names a metric
// outside the allowlist.
var ErrInvalidMetric = errors.New("invalid trend metric")

// Snapshot is one weekly snapshot header
type Snapshot struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id,omitempty"`
	WeekStart  string `json:"week_start"`
	WeekEnd    string `json:"week_end"`
	ImportedAt string `json:"imported_at"`
	Notes      string `json:"notes,omitempty"`
}

// SnapshotData is everything one report run persists for a week.
// Week dates are YYYY-MM-DD strings; WeekEnd is the inclusive last
// day of the window.
type SnapshotData struct {
	RunID     string
	WeekStart string
	WeekEnd   string
	Notes     string

	Campaigns   []aggregate.CampaignSummary
	Targets     []aggregate.TargetMetrics
	SearchTerms []ads.NormalizedRow
	DriftFlags  []ads.Flag
	KDPSales    []ads.LedgerRecord
	Bids        bids.Result
}

// SnapshotDetail is a fully hydrated stored snapshot, as served to the
// dashboard API.
type SnapshotDetail struct {
	Snapshot    Snapshot        `json:"snapshot"`
	Campaigns   []CampaignRow   `json:"campaigns"`
	Targets     []TargetRow     `json:"targets"`
	SearchTerms []SearchTermRow `json:"search_terms"`
	KDPSales    []KDPSaleRow    `json:"kdp_sales"`
	Bids        []BidRow        `json:"bid_recommendations"`
}

// CampaignRow is a stored campaign metrics row. ACOS is null when the
// week had no attributed sales, ROAS when it had no spend.
type CampaignRow struct {
	Campaign    string   `json:"campaign_name"`
	Impressions int      `json:"impressions"`
	Clicks      int      `json:"clicks"`
	Spend       float64  `json:"spend"`
	Sales       float64  `json:"sales"`
	Orders      int      `json:"orders"`
	CTR         float64  `json:"ctr"`
	AvgCPC      float64  `json:"avg_cpc"`
	ACOS        *float64 `json:"acos"`
	ROAS        *float64 `json:"roas"`
}

// TargetRow is a stored per-target metrics row
type TargetRow struct {
	Campaign       string   `json:"campaign_name"`
	Targeting      string   `json:"targeting"`
	TargetType     string   `json:"target_type"`
	MatchType      string   `json:"match_type,omitempty"`
	Bid            *float64 `json:"bid,omitempty"`
	Impressions    int      `json:"impressions"`
	Clicks         int      `json:"clicks"`
	Spend          float64  `json:"spend"`
	Sales          float64  `json:"sales"`
	Orders         int      `json:"orders"`
	CTR            float64  `json:"ctr"`
	CPC            float64  `json:"cpc"`
	ConversionRate float64  `json:"conversion_rate"`
}

// SearchTermRow is a stored search-term metrics row
type SearchTermRow struct {
	Campaign    string  `json:"campaign_name"`
	Targeting   string  `json:"targeting"`
	SearchTerm  string  `json:"search_term"`
	MatchType   string  `json:"match_type,omitempty"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	Spend       float64 `json:"spend"`
	Sales       float64 `json:"sales"`
	Orders      int     `json:"orders"`
	IsDrift     bool    `json:"is_drift"`
}

// KDPSaleRow is a stored sales ledger row
type KDPSaleRow struct {
	Date     string  `json:"date"`
	Title    string  `json:"title"`
	Format   string  `json:"format"`
	Units    int     `json:"units_sold"`
	NetUnits int     `json:"net_units_sold"`
	Royalty  float64 `json:"royalty"`
}

// BidRow is a stored bid recommendation row. Flag carries the last
// flag kind the bid analysis raised for the target, empty when none.
type BidRow struct {
	Targeting         string   `json:"targeting"`
	CurrentBid        *float64 `json:"current_bid,omitempty"`
	RecommendedMaxBid *float64 `json:"recommended_max_bid,omitempty"`
	ConversionRate    float64  `json:"conversion_rate"`
	Flag              string   `json:"flag,omitempty"`
}

// TrendTable is one metric pivoted across snapshots: a row per week,
// a column per campaign.
type TrendTable struct {
	Metric    string     `json:"metric"`
	Campaigns []string   `json:"campaigns"`
	Rows      []TrendRow `json:"rows"`
}

// TrendRow holds one week's values keyed by campaign name. A campaign
// missing that week maps to nil.
type TrendRow struct {
	WeekStart string              `json:"week_start"`
	Values    map[string]*float64 `json:"values"`
}

// LifetimeSummary aggregates every stored snapshot
type LifetimeSummary struct {
	WeeksTracked   int     `json:"weeks_tracked"`
	TotalSpend     float64 `json:"total_spend"`
	TotalOrders    int     `json:"total_orders"`
	TotalSales     float64 `json:"total_sales"`
	OverallACOS    float64 `json:"overall_acos"`
	OverallROAS    float64 `json:"overall_roas"`
	AvgWeeklySpend float64 `json:"avg_weekly_spend"`
}
