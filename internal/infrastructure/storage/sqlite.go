package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/bids"
)

// Storage provides SQLite persistence for weekly snapshots.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens the snapshot database, creating the file and its
// parent directory if needed, and runs pending migrations.
func NewStorage(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// childTables are cleared before their parent snapshot on rewrite
var childTables = []string{
	"campaign_metrics",
	"target_metrics",
	"search_term_metrics",
	"kdp_daily_sales",
	"bid_recommendations",
}

// SaveSnapshot writes a full weekly snapshot in one transaction. An
// existing snapshot for the same week_start is deleted first, children
// before parent, so re-saving a week replaces it rather than
// duplicating rows.
func (s *Storage) SaveSnapshot(data *SnapshotData) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteExistingWeek(tx, data.WeekStart); err != nil {
		return 0, err
	}

	res, err := tx.Exec(
		`INSERT INTO weekly_snapshots (week_start, week_end, imported_at, run_id, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		data.WeekStart, data.WeekEnd, time.Now().Format(time.RFC3339), data.RunID, data.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := insertCampaigns(tx, snapshotID, data.Campaigns); err != nil {
		return 0, err
	}
	if err := insertTargets(tx, snapshotID, data.Targets); err != nil {
		return 0, err
	}
	if err := insertSearchTerms(tx, snapshotID, data.SearchTerms, data.DriftFlags); err != nil {
		return 0, err
	}
	if err := insertKDPSales(tx, snapshotID, data.KDPSales); err != nil {
		return 0, err
	}
	if err := insertBids(tx, snapshotID, data.Bids); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return snapshotID, nil
}

func deleteExistingWeek(tx *sql.Tx, weekStart string) error {
	var oldID int64
	err := tx.QueryRow(`SELECT id FROM weekly_snapshots WHERE week_start = ?`, weekStart).Scan(&oldID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, table := range childTables {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE snapshot_id = ?`, table), oldID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM weekly_snapshots WHERE id = ?`, oldID); err != nil {
		return fmt.Errorf("failed to delete snapshot %d: %w", oldID, err)
	}
	return nil
}

func insertCampaigns(tx *sql.Tx, snapshotID int64, campaigns []aggregate.CampaignSummary) error {
	stmt := `INSERT OR REPLACE INTO campaign_metrics
		(snapshot_id, campaign_name, impressions, clicks, spend, sales, orders, ctr, avg_cpc, acos, roas)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, c := range campaigns {
		if _, err := tx.Exec(stmt,
			snapshotID, c.Campaign, c.Impressions, c.Clicks, c.Spend, c.Sales,
			c.Orders, c.CTR, c.AvgCPC, nullableFloat(c.ACOS), nullableFloat(c.ROAS),
		); err != nil {
			return fmt.Errorf("failed to insert campaign metrics: %w", err)
		}
	}
	return nil
}

func insertTargets(tx *sql.Tx, snapshotID int64, targets []aggregate.TargetMetrics) error {
	stmt := `INSERT OR REPLACE INTO target_metrics
		(snapshot_id, campaign_name, targeting, target_type, match_type, bid,
		 impressions, clicks, spend, sales, orders, ctr, cpc, conversion_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, t := range targets {
		if _, err := tx.Exec(stmt,
			snapshotID, t.Campaign, t.Key.Text, t.TargetType(), t.Key.Match,
			nullableFloat(t.Bid), t.Impressions, t.Clicks, t.Spend, t.Sales,
			t.Orders, t.CTR, t.CPC, t.ConversionRate,
		); err != nil {
			return fmt.Errorf("failed to insert target metrics: %w", err)
		}
	}
	return nil
}

// rowIdentity locates a normalized row among the drift flags
type rowIdentity struct {
	campaign string
	target   string
	term     string
}

func insertSearchTerms(tx *sql.Tx, snapshotID int64, rows []ads.NormalizedRow, flags []ads.Flag) error {
	drifted := make(map[rowIdentity]bool)
	for _, f := range flags {
		if f.Kind == ads.FlagExactMatchDrift {
			drifted[rowIdentity{f.Campaign, f.Target, f.SearchTerm}] = true
		}
	}

	stmt := `INSERT INTO search_term_metrics
		(snapshot_id, campaign_name, targeting, search_term, match_type,
		 impressions, clicks, spend, sales, orders, is_drift)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, r := range rows {
		isDrift := 0
		if drifted[rowIdentity{r.Campaign, r.Key.Text, r.SearchTerm}] {
			isDrift = 1
		}
		if _, err := tx.Exec(stmt,
			snapshotID, r.Campaign, r.Key.Text, r.SearchTerm, r.MatchType,
			r.Impressions, r.Clicks, r.Spend, r.Sales, r.Orders, isDrift,
		); err != nil {
			return fmt.Errorf("failed to insert search term metrics: %w", err)
		}
	}
	return nil
}

func insertKDPSales(tx *sql.Tx, snapshotID int64, records []ads.LedgerRecord) error {
	stmt := `INSERT OR REPLACE INTO kdp_daily_sales
		(snapshot_id, date, title, format, units_sold, net_units_sold, royalty)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, r := range records {
		if _, err := tx.Exec(stmt,
			snapshotID, r.Date.Format("2006-01-02"), r.Title, string(r.Format),
			r.UnitsSold, r.NetUnits, r.Royalty,
		); err != nil {
			return fmt.Errorf("failed to insert kdp sales: %w", err)
		}
	}
	return nil
}

// targetIdentity scopes a bid flag to its campaign, since the same
// target text can be configured under more than one campaign.
type targetIdentity struct {
	campaign string
	target   string
}

func insertBids(tx *sql.Tx, snapshotID int64, result bids.Result) error {
	// Last flag emitted per target wins, which puts the bid
	// classification ahead of earlier performance notes.
	flagByTarget := make(map[targetIdentity]string)
	for _, f := range result.Flags {
		flagByTarget[targetIdentity{f.Campaign, f.Target}] = string(f.Kind)
	}

	stmt := `INSERT INTO bid_recommendations
		(snapshot_id, targeting, current_bid, recommended_max_bid, conversion_rate, flag)
		VALUES (?, ?, ?, ?, ?, ?)`

	for _, rec := range result.Recommendations {
		var flag any
		if kind, ok := flagByTarget[targetIdentity{rec.Campaign, rec.Key.Text}]; ok {
			flag = kind
		}
		if _, err := tx.Exec(stmt,
			snapshotID, rec.Key.Text, nullableFloat(rec.CurrentBid),
			nullableFloat(rec.MaxProfitableBid), rec.ConversionRate, flag,
		); err != nil {
			return fmt.Errorf("failed to insert bid recommendations: %w", err)
		}
	}
	return nil
}

// nullableFloat maps a nil pointer to SQL NULL
func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
