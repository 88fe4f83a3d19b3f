// Package aggregate rolls normalized search-term rows up into
// per-target, per-campaign, and per-search-term metrics. Amazon's
// current export format has no standalone targeting report, so
// per-target data is always derived by grouping the search-term rows.
package aggregate

import (
	"sort"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// TargetMetrics is the aggregate for one advertising target within one
// campaign over the reporting window. Bid and Title come from campaign
// configuration, not the export; Bid is nil for unconfigured targets.
// Observed is false for configured targets that never appeared in the
// export rows.
type TargetMetrics struct {
	Campaign       string
	Key            ads.TargetingKey
	Title          string
	Bid            *float64
	Configured     bool
	Observed       bool
	Impressions    int
	Clicks         int
	Orders         int
	Spend          float64
	Sales          float64
	CTR            float64
	CPC            float64
	ConversionRate float64
}

// TargetType is the persisted classification of the target.
func (m TargetMetrics) TargetType() string {
	if m.Key.IsProduct() {
		return "asin"
	}
	return "keyword"
}

// DisplayName is the configured title when present, the raw key
// otherwise.
func (m TargetMetrics) DisplayName() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Key.String()
}

// CampaignSummary is the per-campaign rollup. ACOS is nil when the
// campaign had no attributed sales, ROAS nil when it had no spend.
// Deltas is nil until a prior week is joined in.
type CampaignSummary struct {
	Campaign    string
	Impressions int
	Clicks      int
	Orders      int
	Spend       float64
	Sales       float64
	CTR         float64
	AvgCPC      float64
	ACOS        *float64
	ROAS        *float64
	Deltas      *WeekDeltas
}

// WeekDeltas holds week-over-week changes against the prior stored
// summary. ACOS is nil when either week lacks an ACoS value.
type WeekDeltas struct {
	Impressions int
	Clicks      int
	Orders      int
	Spend       float64
	CTR         float64
	ACOS        *float64
}

// SearchTermMetrics is one customer search term summed across all
// campaigns and targets it appeared under.
type SearchTermMetrics struct {
	Term        string
	Impressions int
	Clicks      int
	Orders      int
	Spend       float64
	Sales       float64
}

// Targets groups rows by (campaign, targeting key) and sums their
// metrics, then joins configured bid and title by the key's text.
// Configured targets absent from every row still appear with zero
// metrics so downstream analysis can flag the inactivity. Ordering is
// deterministic: campaign name ascending, then spend descending, then
// key text ascending.
func Targets(rows []ads.NormalizedRow, configured []ads.ConfiguredTarget) []TargetMetrics {
	type groupKey struct {
		campaign string
		key      ads.TargetingKey
	}

	groups := make(map[groupKey]*TargetMetrics)
	for _, row := range rows {
		gk := groupKey{campaign: row.Campaign, key: row.Key}
		m, ok := groups[gk]
		if !ok {
			m = &TargetMetrics{Campaign: row.Campaign, Key: row.Key, Observed: true}
			groups[gk] = m
		}
		m.Impressions += row.Impressions
		m.Clicks += row.Clicks
		m.Orders += row.Orders
		m.Spend += row.Spend
		m.Sales += row.Sales
	}

	byText := make(map[string]ads.ConfiguredTarget, len(configured))
	for _, t := range configured {
		byText[t.Text] = t
	}

	active := make(map[string]bool, len(groups))
	result := make([]TargetMetrics, 0, len(groups)+len(configured))
	for _, m := range groups {
		if t, ok := byText[m.Key.Text]; ok {
			m.Title = t.Title
			m.Bid = t.Bid
			m.Configured = true
			active[m.Key.Text] = true
		}
		m.CTR = ratio(float64(m.Clicks), float64(m.Impressions))
		m.CPC = ratio(m.Spend, float64(m.Clicks))
		m.ConversionRate = ratio(float64(m.Orders), float64(m.Clicks))
		result = append(result, *m)
	}

	// Configured targets with no activity this window
	for _, t := range configured {
		if active[t.Text] {
			continue
		}
		result = append(result, TargetMetrics{
			Campaign:   t.Campaign,
			Key:        ads.ParseTargetingKey(t.Text, ""),
			Title:      t.Title,
			Bid:        t.Bid,
			Configured: true,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Campaign != b.Campaign {
			return a.Campaign < b.Campaign
		}
		if a.Spend != b.Spend {
			return a.Spend > b.Spend
		}
		if a.Key.Text != b.Key.Text {
			return a.Key.Text < b.Key.Text
		}
		return a.Key.Match < b.Key.Match
	})

	return result
}

// Campaigns sums rows to campaign level, ordered by campaign name.
func Campaigns(rows []ads.NormalizedRow) []CampaignSummary {
	groups := make(map[string]*CampaignSummary)
	for _, row := range rows {
		s, ok := groups[row.Campaign]
		if !ok {
			s = &CampaignSummary{Campaign: row.Campaign}
			groups[row.Campaign] = s
		}
		s.Impressions += row.Impressions
		s.Clicks += row.Clicks
		s.Orders += row.Orders
		s.Spend += row.Spend
		s.Sales += row.Sales
	}

	result := make([]CampaignSummary, 0, len(groups))
	for _, s := range groups {
		s.CTR = ratio(float64(s.Clicks), float64(s.Impressions))
		s.AvgCPC = ratio(s.Spend, float64(s.Clicks))
		if s.Sales > 0 {
			acos := s.Spend / s.Sales
			s.ACOS = &acos
		}
		if s.Spend > 0 {
			roas := s.Sales / s.Spend
			s.ROAS = &roas
		}
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Campaign < result[j].Campaign
	})

	return result
}

// Deltas joins the prior week's summaries onto the current ones by
// campaign name and fills in week-over-week changes. Campaigns with no
// prior row keep a nil Deltas.
func Deltas(current, prior []CampaignSummary) []CampaignSummary {
	priorByName := make(map[string]CampaignSummary, len(prior))
	for _, p := range prior {
		priorByName[p.Campaign] = p
	}

	result := make([]CampaignSummary, len(current))
	for i, c := range current {
		if p, ok := priorByName[c.Campaign]; ok {
			d := &WeekDeltas{
				Impressions: c.Impressions - p.Impressions,
				Clicks:      c.Clicks - p.Clicks,
				Orders:      c.Orders - p.Orders,
				Spend:       c.Spend - p.Spend,
				CTR:         c.CTR - p.CTR,
			}
			if c.ACOS != nil && p.ACOS != nil {
				acos := *c.ACOS - *p.ACOS
				d.ACOS = &acos
			}
			c.Deltas = d
		}
		result[i] = c
	}

	return result
}

// SearchTerms sums each customer search term across every campaign and
// target it appeared under, ordered by descending spend with an
// alphabetical tie-break.
func SearchTerms(rows []ads.NormalizedRow) []SearchTermMetrics {
	groups := make(map[string]*SearchTermMetrics)
	for _, row := range rows {
		s, ok := groups[row.SearchTerm]
		if !ok {
			s = &SearchTermMetrics{Term: row.SearchTerm}
			groups[row.SearchTerm] = s
		}
		s.Impressions += row.Impressions
		s.Clicks += row.Clicks
		s.Orders += row.Orders
		s.Spend += row.Spend
		s.Sales += row.Sales
	}

	result := make([]SearchTermMetrics, 0, len(groups))
	for _, s := range groups {
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Spend != result[j].Spend {
			return result[i].Spend > result[j].Spend
		}
		return result[i].Term < result[j].Term
	})

	return result
}

func ratio(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}
