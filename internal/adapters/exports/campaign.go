package exports

import (
	"strings"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/normalize"
)

// CampaignTotal is one row of the campaign-level report: the
// authoritative per-campaign figures from the ads console, used to
// cross-check the totals derived from search-term rows.
type CampaignTotal struct {
	Campaign    string
	Status      string
	DailyBudget float64
	Clicks      int
	Orders      int
	Spend       float64
	Sales       float64
}

// campaignAliases maps campaign-report headers (lowercased, trimmed)
// onto canonical fields. The console CSV uses sentence case and
// sometimes "(converted)" currency variants.
var campaignAliases = map[string]string{
	"campaign name":          "campaign",
	"status":                 "status",
	"campaign budget amount": "daily_budget",
	"clicks":                 "clicks",
	"purchases":              "orders",
	"total cost":             "spend",
	"total cost (converted)": "spend",
	"sales":                  "sales",
	"sales (converted)":      "sales",
}

// LoadCampaignReport reads a campaign-level report CSV (one row per
// campaign). Rows without a campaign name are skipped. A file missing
// the campaign or spend column is not a campaign report.
func LoadCampaignReport(path string) ([]CampaignTotal, error) {
	t, err := loadTable(path, "Campaign name", headerMarker)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int)
	for i, h := range t.headers {
		canonical, ok := campaignAliases[strings.ToLower(h)]
		if !ok {
			continue
		}
		if _, exists := columns[canonical]; !exists {
			columns[canonical] = i
		}
	}
	for _, field := range []string{"campaign", "spend"} {
		if _, ok := columns[field]; !ok {
			return nil, &ParseError{Path: path, Reason: "not a campaign report: no " + field + " column"}
		}
	}

	var totals []CampaignTotal
	for _, record := range t.rows {
		cell := func(field string) string {
			i, ok := columns[field]
			if !ok {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		name := cell("campaign")
		if name == "" {
			continue
		}
		totals = append(totals, CampaignTotal{
			Campaign:    name,
			Status:      cell("status"),
			DailyBudget: normalize.Money(cell("daily_budget")),
			Clicks:      normalize.Count(cell("clicks")),
			Orders:      normalize.Count(cell("orders")),
			Spend:       normalize.Money(cell("spend")),
			Sales:       normalize.Money(cell("sales")),
		})
	}
	return totals, nil
}

// CrossCheck compares console campaign totals against the summaries
// aggregated from search-term rows and reports the campaigns whose
// spend diverges by more than the tolerance. Search-term exports only
// carry rows for terms with impressions, so some divergence is normal;
// large gaps mean a missing export file.
func CrossCheck(console []CampaignTotal, derived map[string]float64, tolerance float64) []string {
	var diverged []string
	for _, c := range console {
		got, ok := derived[c.Campaign]
		if !ok {
			if c.Spend > tolerance {
				diverged = append(diverged, c.Campaign)
			}
			continue
		}
		if diff := c.Spend - got; diff > tolerance || diff < -tolerance {
			diverged = append(diverged, c.Campaign)
		}
	}
	return diverged
}
