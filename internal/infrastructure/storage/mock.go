package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
)

// MockRepository is an in-memory implementation of Repository for
// testing. Reads serve whatever the test seeded into Snapshots, Trend
// and Lifetime, keeping handler and pipeline tests fast and isolated.
type MockRepository struct {
	// Seeded read models, keyed by week_start
	Snapshots map[string]*SnapshotDetail
	Trend     *TrendTable
	Lifetime  *LifetimeSummary

	// Hooks for test assertions
	SaveSnapshotCalled bool
	LastSaved          *SnapshotData
	SavedID            int64
	CloseCalled        bool

	// Error injection for testing error paths
	SaveSnapshotErr error
	GetSnapshotErr  error
	TrendDataErr    error
	LifetimeErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Snapshots: make(map[string]*SnapshotDetail),
		SavedID:   1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	m.CloseCalled = true
	return nil
}

// SaveSnapshot records the call and returns the configured ID
func (m *MockRepository) SaveSnapshot(data *SnapshotData) (int64, error) {
	m.SaveSnapshotCalled = true
	m.LastSaved = data
	if m.SaveSnapshotErr != nil {
		return 0, m.SaveSnapshotErr
	}
	return m.SavedID, nil
}

// PriorCampaignSummary serves the seeded snapshot with the greatest
// week_start before weekStart
func (m *MockRepository) PriorCampaignSummary(weekStart string) ([]aggregate.CampaignSummary, error) {
	prior := ""
	for week := range m.Snapshots {
		if week < weekStart && week > prior {
			prior = week
		}
	}
	if prior == "" {
		return nil, nil
	}

	detail := m.Snapshots[prior]
	summaries := make([]aggregate.CampaignSummary, 0, len(detail.Campaigns))
	for _, r := range detail.Campaigns {
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

// SpendBefore sums seeded campaign spend across weeks before weekStart
func (m *MockRepository) SpendBefore(weekStart string) (float64, error) {
	total := 0.0
	for week, detail := range m.Snapshots {
		if week >= weekStart {
			continue
		}
		for _, r := range detail.Campaigns {
			total += r.Spend
		}
	}
	return total, nil
}

// ListSnapshots returns seeded snapshot headers, newest week first
func (m *MockRepository) ListSnapshots() ([]Snapshot, error) {
	weeks := make([]string, 0, len(m.Snapshots))
	for week := range m.Snapshots {
		weeks = append(weeks, week)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(weeks)))

	var out []Snapshot
	for _, week := range weeks {
		out = append(out, m.Snapshots[week].Snapshot)
	}
	return out, nil
}

// GetSnapshot returns the seeded detail for weekStart, nil when absent
func (m *MockRepository) GetSnapshot(weekStart string) (*SnapshotDetail, error) {
	if m.GetSnapshotErr != nil {
		return nil, m.GetSnapshotErr
	}
	return m.Snapshots[weekStart], nil
}

// UpdateSearchTermNames rewrites seeded search terms case-insensitively
func (m *MockRepository) UpdateSearchTermNames(names map[string]string) (int, error) {
	upper := make(map[string]string, len(names))
	for old, replacement := range names {
		upper[strings.ToUpper(old)] = replacement
	}

	total := 0
	for _, detail := range m.Snapshots {
		for i := range detail.SearchTerms {
			if replacement, ok := upper[strings.ToUpper(detail.SearchTerms[i].SearchTerm)]; ok {
				detail.SearchTerms[i].SearchTerm = replacement
				total++
			}
		}
	}
	return total, nil
}

// TrendData validates the metric and serves the seeded table
func (m *MockRepository) TrendData(metric, campaign string, weeks int) (*TrendTable, error) {
	if m.TrendDataErr != nil {
		return nil, m.TrendDataErr
	}
	if !allowedTrendMetrics[metric] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetric, metric)
	}
	if m.Trend != nil {
		return m.Trend, nil
	}
	return &TrendTable{Metric: metric}, nil
}

// LifetimeSummary serves the seeded summary, nil when none was set
func (m *MockRepository) LifetimeSummary() (*LifetimeSummary, error) {
	if m.LifetimeErr != nil {
		return nil, m.LifetimeErr
	}
	return m.Lifetime, nil
}
