package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
)

// PriorCampaignSummary returns the campaign rollup of the most recent
// snapshot strictly before weekStart, nil when no earlier week exists.
func (s *Storage) PriorCampaignSummary(weekStart string) ([]aggregate.CampaignSummary, error) {
	var snapshotID int64
	err := s.db.QueryRow(
		`SELECT id FROM weekly_snapshots WHERE week_start < ? ORDER BY week_start DESC LIMIT 1`,
		weekStart,
	).Scan(&snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.campaignRows(snapshotID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	summaries := make([]aggregate.CampaignSummary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, aggregate.CampaignSummary{
			Campaign:    r.Campaign,
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Spend:       r.Spend,
			Sales:       r.Sales,
			Orders:      r.Orders,
			CTR:         r.CTR,
			AvgCPC:      r.AvgCPC,
			ACOS:        r.ACOS,
			ROAS:        r.ROAS,
		})
	}
	return summaries, nil
}

// SpendBefore sums campaign spend across every snapshot strictly before
// weekStart. Zero when no earlier weeks exist.
func (s *Storage) SpendBefore(weekStart string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(cm.spend)
		 FROM campaign_metrics cm
		 JOIN weekly_snapshots ws ON cm.snapshot_id = ws.id
		 WHERE ws.week_start < ?`,
		weekStart,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// ListSnapshots returns snapshot headers, newest week first
func (s *Storage) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, week_start, week_end, imported_at, COALESCE(run_id, ''), COALESCE(notes, '')
		 FROM weekly_snapshots ORDER BY week_start DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.WeekStart, &sn.WeekEnd, &sn.ImportedAt, &sn.RunID, &sn.Notes); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, sn)
	}
	return snapshots, rows.Err()
}

// GetSnapshot loads a full snapshot by week_start, nil when the week
// was never saved.
func (s *Storage) GetSnapshot(weekStart string) (*SnapshotDetail, error) {
	var sn Snapshot
	err := s.db.QueryRow(
		`SELECT id, week_start, week_end, imported_at, COALESCE(run_id, ''), COALESCE(notes, '')
		 FROM weekly_snapshots WHERE week_start = ?`,
		weekStart,
	).Scan(&sn.ID, &sn.WeekStart, &sn.WeekEnd, &sn.ImportedAt, &sn.RunID, &sn.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	detail := &SnapshotDetail{Snapshot: sn}
	if detail.Campaigns, err = s.campaignRows(sn.ID); err != nil {
		return nil, err
	}
	if detail.Targets, err = s.targetRows(sn.ID); err != nil {
		return nil, err
	}
	if detail.SearchTerms, err = s.searchTermRows(sn.ID); err != nil {
		return nil, err
	}
	if detail.KDPSales, err = s.kdpSaleRows(sn.ID); err != nil {
		return nil, err
	}
	if detail.Bids, err = s.bidRows(sn.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Storage) campaignRows(snapshotID int64) ([]CampaignRow, error) {
	rows, err := s.db.Query(
		`SELECT campaign_name, impressions, clicks, spend, sales, orders, ctr, avg_cpc, acos, roas
		 FROM campaign_metrics WHERE snapshot_id = ? ORDER BY campaign_name`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CampaignRow
	for rows.Next() {
		var r CampaignRow
		var acos, roas sql.NullFloat64
		if err := rows.Scan(&r.Campaign, &r.Impressions, &r.Clicks, &r.Spend, &r.Sales,
			&r.Orders, &r.CTR, &r.AvgCPC, &acos, &roas); err != nil {
			return nil, err
		}
		r.ACOS = floatPtr(acos)
		r.ROAS = floatPtr(roas)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) targetRows(snapshotID int64) ([]TargetRow, error) {
	rows, err := s.db.Query(
		`SELECT campaign_name, targeting, target_type, COALESCE(match_type, ''), bid,
		        impressions, clicks, spend, sales, orders, ctr, cpc, conversion_rate
		 FROM target_metrics WHERE snapshot_id = ? ORDER BY id`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TargetRow
	for rows.Next() {
		var r TargetRow
		var bid sql.NullFloat64
		if err := rows.Scan(&r.Campaign, &r.Targeting, &r.TargetType, &r.MatchType, &bid,
			&r.Impressions, &r.Clicks, &r.Spend, &r.Sales, &r.Orders,
			&r.CTR, &r.CPC, &r.ConversionRate); err != nil {
			return nil, err
		}
		r.Bid = floatPtr(bid)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) searchTermRows(snapshotID int64) ([]SearchTermRow, error) {
	rows, err := s.db.Query(
		`SELECT campaign_name, targeting, search_term, COALESCE(match_type, ''),
		        impressions, clicks, spend, sales, orders, is_drift
		 FROM search_term_metrics WHERE snapshot_id = ? ORDER BY id`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchTermRow
	for rows.Next() {
		var r SearchTermRow
		var isDrift int
		if err := rows.Scan(&r.Campaign, &r.Targeting, &r.SearchTerm, &r.MatchType,
			&r.Impressions, &r.Clicks, &r.Spend, &r.Sales, &r.Orders, &isDrift); err != nil {
			return nil, err
		}
		r.IsDrift = isDrift != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) kdpSaleRows(snapshotID int64) ([]KDPSaleRow, error) {
	rows, err := s.db.Query(
		`SELECT date, title, format, units_sold, net_units_sold, royalty
		 FROM kdp_daily_sales WHERE snapshot_id = ? ORDER BY id`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KDPSaleRow
	for rows.Next() {
		var r KDPSaleRow
		if err := rows.Scan(&r.Date, &r.Title, &r.Format, &r.Units, &r.NetUnits, &r.Royalty); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Storage) bidRows(snapshotID int64) ([]BidRow, error) {
	rows, err := s.db.Query(
		`SELECT targeting, current_bid, recommended_max_bid, conversion_rate, COALESCE(flag, '')
		 FROM bid_recommendations WHERE snapshot_id = ? ORDER BY id`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BidRow
	for rows.Next() {
		var r BidRow
		var current, max sql.NullFloat64
		if err := rows.Scan(&r.Targeting, &current, &max, &r.ConversionRate, &r.Flag); err != nil {
			return nil, err
		}
		r.CurrentBid = floatPtr(current)
		r.RecommendedMaxBid = floatPtr(max)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateSearchTermNames rewrites stored search terms, matching the old
// value case-insensitively, and returns how many rows changed. Used
// after ASIN titles resolve to replace raw ASINs in historical weeks.
func (s *Storage) UpdateSearchTermNames(names map[string]string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0
	for _, old := range keys {
		res, err := tx.Exec(
			`UPDATE search_term_metrics SET search_term = ? WHERE UPPER(search_term) = UPPER(?)`,
			names[old], old,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to rename search term %q: %w", old, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// allowedTrendMetrics guards the column interpolated into the trend
// query; anything outside it is rejected before SQL is built.
var allowedTrendMetrics = map[string]bool{
	"spend":       true,
	"impressions": true,
	"clicks":      true,
	"ctr":         true,
	"acos":        true,
	"orders":      true,
	"roas":        true,
	"avg_cpc":     true,
	"sales":       true,
}

// TrendData pivots one campaign metric into a week-by-campaign table
// covering the most recent weeks. An empty campaign means all
// campaigns; weeks <= 0 defaults to 8.
func (s *Storage) TrendData(metric, campaign string, weeks int) (*TrendTable, error) {
	if !allowedTrendMetrics[metric] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetric, metric)
	}
	if weeks <= 0 {
		weeks = 8
	}

	where := ""
	args := []any{}
	if campaign != "" {
		where = "WHERE cm.campaign_name = ?"
		args = append(args, campaign)
	}
	// The limit is padded because several campaigns share each week.
	args = append(args, weeks*3)

	query := fmt.Sprintf(
		`SELECT ws.week_start, cm.campaign_name, cm.%s
		 FROM campaign_metrics cm
		 JOIN weekly_snapshots ws ON cm.snapshot_id = ws.id
		 %s
		 ORDER BY ws.week_start DESC LIMIT ?`,
		metric, where,
	)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type cell struct {
		week     string
		campaign string
		value    *float64
	}
	var cells []cell
	for rows.Next() {
		var c cell
		var v sql.NullFloat64
		if err := rows.Scan(&c.week, &c.campaign, &v); err != nil {
			return nil, err
		}
		c.value = floatPtr(v)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return &TrendTable{Metric: metric}, nil
	}

	// Pivot, keeping the first value seen per week and campaign.
	type pivotKey struct{ week, campaign string }
	values := make(map[pivotKey]*float64)
	weekSet := make(map[string]bool)
	campaignSet := make(map[string]bool)
	for _, c := range cells {
		k := pivotKey{c.week, c.campaign}
		if _, seen := values[k]; !seen {
			values[k] = c.value
		}
		weekSet[c.week] = true
		campaignSet[c.campaign] = true
	}

	table := &TrendTable{Metric: metric}
	for name := range campaignSet {
		table.Campaigns = append(table.Campaigns, name)
	}
	sort.Strings(table.Campaigns)

	weekStarts := make([]string, 0, len(weekSet))
	for w := range weekSet {
		weekStarts = append(weekStarts, w)
	}
	sort.Strings(weekStarts)

	for _, w := range weekStarts {
		row := TrendRow{WeekStart: w, Values: make(map[string]*float64, len(table.Campaigns))}
		for _, name := range table.Campaigns {
			row.Values[name] = values[pivotKey{w, name}]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// LifetimeSummary aggregates spend, sales and orders across every
// stored week. Nil when the database has no snapshots yet.
func (s *Storage) LifetimeSummary() (*LifetimeSummary, error) {
	var weeks int
	var spend, sales sql.NullFloat64
	var orders sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT ws.id), SUM(cm.spend), SUM(cm.orders), SUM(cm.sales)
		 FROM campaign_metrics cm
		 JOIN weekly_snapshots ws ON cm.snapshot_id = ws.id`,
	).Scan(&weeks, &spend, &orders, &sales)
	if err != nil {
		return nil, err
	}
	if weeks == 0 {
		return nil, nil
	}

	summary := &LifetimeSummary{
		WeeksTracked:   weeks,
		TotalSpend:     spend.Float64,
		TotalSales:     sales.Float64,
		TotalOrders:    int(orders.Int64),
		AvgWeeklySpend: spend.Float64 / float64(weeks),
	}
	if summary.TotalSales > 0 {
		summary.OverallACOS = summary.TotalSpend / summary.TotalSales
	}
	if summary.TotalSpend > 0 {
		summary.OverallROAS = summary.TotalSales / summary.TotalSpend
	}
	return summary, nil
}

// floatPtr maps SQL NULL to nil
func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
