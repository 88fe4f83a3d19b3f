package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_run_id_column",
		Up:      migration002AddRunIDColumn,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the weekly snapshot tables. Every
// child table hangs off weekly_snapshots by snapshot_id, and a week is
// unique by its start date.
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS weekly_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			week_start TEXT NOT NULL,
			week_end TEXT NOT NULL,
			imported_at TEXT NOT NULL,
			notes TEXT,
			UNIQUE(week_start)
		)`,

		`CREATE TABLE IF NOT EXISTS campaign_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES weekly_snapshots(id),
			campaign_name TEXT NOT NULL,
			impressions INTEGER,
			clicks INTEGER,
			spend REAL,
			sales REAL,
			orders INTEGER,
			ctr REAL,
			avg_cpc REAL,
			acos REAL,
			roas REAL,
			UNIQUE(snapshot_id, campaign_name)
		)`,

		`CREATE TABLE IF NOT EXISTS target_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES weekly_snapshots(id),
			campaign_name TEXT NOT NULL,
			targeting TEXT NOT NULL,
			target_type TEXT NOT NULL,
			match_type TEXT,
			bid REAL,
			impressions INTEGER,
			clicks INTEGER,
			spend REAL,
			sales REAL,
			orders INTEGER,
			ctr REAL,
			cpc REAL,
			conversion_rate REAL,
			UNIQUE(snapshot_id, campaign_name, targeting)
		)`,

		`CREATE TABLE IF NOT EXISTS search_term_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES weekly_snapshots(id),
			campaign_name TEXT NOT NULL,
			targeting TEXT NOT NULL,
			search_term TEXT NOT NULL,
			match_type TEXT,
			impressions INTEGER,
			clicks INTEGER,
			spend REAL,
			sales REAL,
			orders INTEGER,
			is_drift INTEGER DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS kdp_daily_sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES weekly_snapshots(id),
			date TEXT NOT NULL,
			title TEXT NOT NULL,
			format TEXT NOT NULL,
			units_sold INTEGER,
			net_units_sold INTEGER,
			royalty REAL,
			UNIQUE(snapshot_id, date, title, format)
		)`,

		`CREATE TABLE IF NOT EXISTS bid_recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES weekly_snapshots(id),
			targeting TEXT NOT NULL,
			current_bid REAL,
			recommended_max_bid REAL,
			conversion_rate REAL,
			flag TEXT
		)`,

		// Indexes for snapshot-scoped reads
		`CREATE INDEX IF NOT EXISTS idx_campaign_metrics_snapshot
		 ON campaign_metrics(snapshot_id)`,

		`CREATE INDEX IF NOT EXISTS idx_target_metrics_snapshot
		 ON target_metrics(snapshot_id)`,

		`CREATE INDEX IF NOT EXISTS idx_search_term_metrics_snapshot
		 ON search_term_metrics(snapshot_id)`,

		`CREATE INDEX IF NOT EXISTS idx_kdp_daily_sales_snapshot
		 ON kdp_daily_sales(snapshot_id)`,

		`CREATE INDEX IF NOT EXISTS idx_bid_recommendations_snapshot
		 ON bid_recommendations(snapshot_id)`,

		`CREATE INDEX IF NOT EXISTS idx_weekly_snapshots_week
		 ON weekly_snapshots(week_start DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddRunIDColumn tags each snapshot with the report run
// that produced it.
func migration002AddRunIDColumn(db *sql.Tx) error {
	query := `ALTER TABLE weekly_snapshots ADD COLUMN run_id TEXT`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to add run_id column: %w", err)
	}

	return nil
}
