package storage

import (
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
)

// Repository defines the complete storage interface.
// Keeping it an interface makes the api handlers and the report
// pipeline testable against the in-memory mock.
type Repository interface {
	SnapshotRepository
	TrendRepository
	Close() error
}

// SnapshotRepository handles weekly snapshot persistence
type SnapshotRepository interface {
	// SaveSnapshot writes a full weekly snapshot, replacing any
	// existing snapshot for the same week_start. Returns the snapshot id.
	SaveSnapshot(data *SnapshotData) (int64, error)

	// PriorCampaignSummary returns the campaign metrics of the most
	// recent snapshot strictly before weekStart, nil when none exists.
	PriorCampaignSummary(weekStart string) ([]aggregate.CampaignSummary, error)

	// SpendBefore sums recorded ad spend across all snapshots strictly
	// before weekStart.
	SpendBefore(weekStart string) (float64, error)

	// ListSnapshots returns all snapshot headers, newest week first.
	ListSnapshots() ([]Snapshot, error)

	// GetSnapshot returns the full stored snapshot for a week, or nil
	// when the week was never saved.
	GetSnapshot(weekStart string) (*SnapshotDetail, error)

	// UpdateSearchTermNames rewrites stored search terms whose text
	// matches a key (case-insensitive) to the mapped display name.
	// Returns the number of rows updated.
	UpdateSearchTermNames(names map[string]string) (int, error)
}

// TrendRepository serves metric history across snapshots
type TrendRepository interface {
	// TrendData pivots one campaign metric into week rows and campaign
	// columns, weeks ascending. An empty campaign means all campaigns.
	TrendData(metric, campaign string, weeks int) (*TrendTable, error)

	// LifetimeSummary aggregates all snapshots, nil when none exist.
	LifetimeSummary() (*LifetimeSummary, error)
}
