package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/bids"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/normalize"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/reconcile"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// Fixtures model a pull on 2025-11-19, covering 2025-11-12 through
// 2025-11-18. The ASIN campaign has one on-target term and one exact
// drift; the keyword campaign has one broad expansion.
const searchTermHeader = "Start Date,End Date,Campaign Name,Targeting,Match Type," +
	"Customer Search Term,Impressions,Clicks,Spend,14 Day Total Sales,14 Day Total Orders (#)"

var searchTermRows = []string{
	`2025-11-12,2025-11-18,Book 2 ASIN Targeting,"asin=""B01K1T4U5U""",EXACT,b01k1t4u5u,900,14,$5.60,$15.98,1`,
	`2025-11-12,2025-11-18,Book 2 ASIN Targeting,"asin=""B01K1T4U5U""",EXACT,0063426285,215,3,$3.42,$0.00,0`,
	`2025-11-12,2025-11-18,Book 2 Keywords,middle grade fantasy,BROAD,dragon chapter books,150,2,$1.30,$0.00,0`,
}

const kdpDailyCSV = `Date,Title,ASIN,Marketplace,Units Sold,Units Refunded,Net Units Sold,Royalty
2025-11-12,Dragons of Emberfall,B01K1T4U5U,Amazon.com,2,0,2,6.98
2025-11-13,Dragons of Emberfall,1952345678,Amazon.com,1,0,1,4.58
2025-11-14,Rise of the Ember Dragons,B0FKP8TNDS,Amazon.com,1,0,1,2.99
`

func searchTermCSV(rows ...string) string {
	return searchTermHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig() *config.Config {
	bid := 0.45
	return &config.Config{
		Campaigns: map[string]config.CampaignConfig{
			"book_2_asin": {
				Name: "Book 2 ASIN Targeting",
				Type: "product_targeting",
				Targets: []config.TargetConfig{
					{ASIN: "B01K1T4U5U", Title: "Dragons of Emberfall", Bid: &bid},
				},
			},
			"book_2_keywords": {
				Name: "Book 2 Keywords",
				Type: "keyword_targeting",
				Targets: []config.TargetConfig{
					{ASIN: "middle grade fantasy"},
				},
			},
		},
		Books: map[string]config.BookConfig{
			"book_1": {ShortTitle: "Book 1", ASINKindle: "B0FKP8TNDS", ASINPaperback: "1952345670"},
			"book_2": {ShortTitle: "Book 2", ASINKindle: "B01K1T4U5U", ASINPaperback: "1952345678"},
		},
		Timeline: config.TimelineConfig{AmazonAdsStart: "2025-10-01"},
		Settings: config.SettingsConfig{
			TargetACOS:               0.50,
			BlendedRoyalty:           5.00,
			HighSpendFlag:            5.00,
			LowImpressionsFlag:       10,
			ExactMatchTransitionDate: "2025-10-15",
		},
	}
}

// stubResolver records the terms it was asked about and serves a canned
// name map, optionally with an error alongside partial results.
type stubResolver struct {
	names map[string]string
	err   error
	calls [][]string
}

func (s *stubResolver) Resolve(_ context.Context, terms []string) (map[string]string, error) {
	s.calls = append(s.calls, terms)
	return s.names, s.err
}

func newTestPipeline(store storage.Repository, resolver NameResolver) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(testConfig(), store, resolver, logger)
}

func pullDate() time.Time {
	return time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC)
}

func TestPipeline_Run_EndToEnd(t *testing.T) {
	// Arrange - two export files with one overlapping row, plus a row
	// only the second file carries
	dir := t.TempDir()
	first := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	second := writeFile(t, dir, "week-46-resend.csv", searchTermCSV(
		searchTermRows[0],
		`2025-11-12,2025-11-18,Book 2 Keywords,middle grade fantasy,BROAD,middle grade fantasy books,80,1,$0.55,$0.00,0`,
	))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	p := newTestPipeline(nil, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{first, second},
		KDPPath:         kdpPath,
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, report)

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err, "run id should be a uuid")
	assert.Equal(t, "2025-11-12", report.Window.Start.Format("2006-01-02"))
	assert.Equal(t, "2025-11-18", report.Window.InclusiveEnd().Format("2006-01-02"))

	// The duplicated row counted once; campaigns in name order
	require.Len(t, report.Campaigns, 2)
	asinCamp := report.Campaigns[0]
	assert.Equal(t, "Book 2 ASIN Targeting", asinCamp.Campaign)
	assert.Equal(t, 1115, asinCamp.Impressions)
	assert.Equal(t, 17, asinCamp.Clicks)
	assert.Equal(t, 1, asinCamp.Orders)
	assert.InDelta(t, 9.02, asinCamp.Spend, 0.001)
	assert.InDelta(t, 15.98, asinCamp.Sales, 0.001)
	require.NotNil(t, asinCamp.ACOS)
	assert.InDelta(t, 0.5645, *asinCamp.ACOS, 0.001)
	require.NotNil(t, asinCamp.ROAS)
	assert.InDelta(t, 1.7716, *asinCamp.ROAS, 0.001)

	kwCamp := report.Campaigns[1]
	assert.Equal(t, "Book 2 Keywords", kwCamp.Campaign)
	assert.Equal(t, 230, kwCamp.Impressions)
	assert.InDelta(t, 1.85, kwCamp.Spend, 0.001)
	assert.Nil(t, kwCamp.ACOS, "no attributed sales means no ACoS")

	// Both configured targets observed, with config joined on
	require.Len(t, report.Targets, 2)
	assert.Equal(t, "B01K1T4U5U", report.Targets[0].Key.Text)
	assert.True(t, report.Targets[0].Configured)
	assert.True(t, report.Targets[0].Observed)
	assert.Equal(t, "Dragons of Emberfall", report.Targets[0].Title)
	require.NotNil(t, report.Targets[0].Bid)
	assert.InDelta(t, 0.45, *report.Targets[0].Bid, 0.001)
	assert.Equal(t, "middle grade fantasy", report.Targets[1].Key.Text)

	// Rollup ordered by descending spend
	require.Len(t, report.SearchTerms, 4)
	assert.Equal(t, "b01k1t4u5u", report.SearchTerms[0].Term)
	assert.Equal(t, "0063426285", report.SearchTerms[1].Term)
	assert.Equal(t, "dragon chapter books", report.SearchTerms[2].Term)
	assert.Equal(t, "middle grade fantasy books", report.SearchTerms[3].Term)

	// One exact drift (ISBN under the ASIN target), one broad expansion
	require.Len(t, report.Drift.Flags, 2)
	assert.Equal(t, ads.FlagExactMatchDrift, report.Drift.Flags[0].Kind)
	assert.Equal(t, "0063426285", report.Drift.Flags[0].SearchTerm)
	assert.Equal(t, ads.FlagBroadMatchExpansion, report.Drift.Flags[1].Kind)
	assert.Contains(t, report.Drift.TransitionNote, "2025-10-15")

	require.NotNil(t, report.Reconciliation)
	assert.Equal(t, ads.GranularityDaily, report.Reconciliation.Granularity)
	assert.Equal(t, 4, report.Reconciliation.Totals.KDPUnits)
	assert.InDelta(t, 14.55, report.Reconciliation.Totals.KDPRoyalty, 0.001)
	assert.Equal(t, 1, report.Reconciliation.Totals.AdAttributedOrders)
	assert.Equal(t, 3, report.Reconciliation.Totals.AttributionGap)
	require.NotNil(t, report.Reconciliation.AdInfluenced)
	assert.InDelta(t, 10.87, report.Reconciliation.AdInfluenced.SpendSinceStart, 0.001)

	// ASIN target converts, so it gets a real max bid; the keyword
	// target's clicks-without-orders becomes the only flag
	require.NotEmpty(t, report.Bids.Recommendations)
	top := report.Bids.Recommendations[0]
	assert.Equal(t, "B01K1T4U5U", top.Key.Text)
	require.NotNil(t, top.MaxProfitableBid)
	assert.InDelta(t, 0.588, *top.MaxProfitableBid, 0.001)
	assert.Equal(t, bids.WithinRange, top.Classification)
	require.Len(t, report.Bids.Flags, 1)
	assert.Equal(t, ads.FlagNoConversions, report.Bids.Flags[0].Kind)

	assert.Empty(t, report.Warnings)
	assert.Zero(t, report.SavedSnapshotID)
}

func TestPipeline_Run_AppliesResolution(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	resolver := &stubResolver{names: map[string]string{
		"b01k1t4u5u": "Dragons of Emberfall (b01k1t4u5u)",
		"0063426285": "Wings of Midnight (0063426285)",
	}}
	p := newTestPipeline(nil, resolver)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		ResolveASINs:    true,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, resolver.calls, 1)
	assert.Equal(t, []string{"b01k1t4u5u", "0063426285", "dragon chapter books"}, resolver.calls[0])

	assert.Equal(t, resolver.names, report.ResolvedNames)
	assert.Equal(t, "Dragons of Emberfall (b01k1t4u5u)", report.SearchTerms[0].Term)
	assert.Equal(t, "Wings of Midnight (0063426285)", report.SearchTerms[1].Term)
	assert.Equal(t, "dragon chapter books", report.SearchTerms[2].Term)

	// The drift message shows the display name; the identity fields
	// stay raw for the stored join
	require.Len(t, report.Drift.Flags, 2)
	exact := report.Drift.Flags[0]
	assert.Equal(t, "0063426285", exact.SearchTerm)
	assert.Equal(t,
		"Exact Match Drift: targeted 'B01K1T4U5U' but appeared on 'Wings of Midnight (0063426285)' (215 impressions, $3.42 spend)",
		exact.Message)
	assert.Contains(t, report.Drift.Flags[1].Message, "Broad match expanded",
		"flags with no resolved name keep their original message")
}

func TestPipeline_Run_ResolverFailureDegrades(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	resolver := &stubResolver{err: errors.New("connection refused")}
	p := newTestPipeline(nil, resolver)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		ResolveASINs:    true,
	})

	// Assert - the run completes with raw terms
	require.NoError(t, err)
	assert.Nil(t, report.ResolvedNames)
	assert.Equal(t, "b01k1t4u5u", report.SearchTerms[0].Term)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "asin title resolution failed")
}

func TestPipeline_Run_PartialResolutionWithError(t *testing.T) {
	// Arrange - the resolver persists nothing but still hands back what
	// it resolved before failing
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	resolver := &stubResolver{
		names: map[string]string{"0063426285": "Wings of Midnight (0063426285)"},
		err:   errors.New("failed to save lookup file"),
	}
	p := newTestPipeline(nil, resolver)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		ResolveASINs:    true,
	})

	// Assert - warning recorded, partial names still applied
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "asin title resolution failed")
	assert.Equal(t, "Wings of Midnight (0063426285)", report.SearchTerms[1].Term)
}

func TestPipeline_Run_SavePersistsSnapshot(t *testing.T) {
	// Arrange - a prior stored week supplies deltas and historical spend
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	store := storage.NewMockRepository()
	store.Snapshots["2025-11-05"] = &storage.SnapshotDetail{
		Snapshot: storage.Snapshot{ID: 7, WeekStart: "2025-11-05", WeekEnd: "2025-11-11"},
		Campaigns: []storage.CampaignRow{
			{Campaign: "Book 2 ASIN Targeting", Impressions: 800, Clicks: 12,
				Spend: 10.00, Sales: 12.49, Orders: 1, CTR: 0.015, AvgCPC: 0.833},
		},
	}
	store.SavedID = 42
	p := newTestPipeline(store, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		Save:            true,
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, store.SaveSnapshotCalled)
	assert.Equal(t, int64(42), report.SavedSnapshotID)

	require.NotNil(t, store.LastSaved)
	assert.Equal(t, report.RunID, store.LastSaved.RunID)
	assert.Equal(t, "2025-11-12", store.LastSaved.WeekStart)
	assert.Equal(t, "2025-11-18", store.LastSaved.WeekEnd)
	// Raw rows and the full royalty ledger are stored, not rollups
	assert.Len(t, store.LastSaved.SearchTerms, 3)
	assert.Len(t, store.LastSaved.KDPSales, 3)
	assert.Len(t, store.LastSaved.DriftFlags, 2)

	// Week-over-week deltas joined from the prior snapshot; the keyword
	// campaign had no prior row
	require.Len(t, report.Campaigns, 2)
	require.NotNil(t, report.Campaigns[0].Deltas)
	assert.Equal(t, 315, report.Campaigns[0].Deltas.Impressions)
	assert.InDelta(t, -0.98, report.Campaigns[0].Deltas.Spend, 0.001)
	assert.Nil(t, report.Campaigns[1].Deltas)

	// Cumulative spend = this window plus the stored week
	require.NotNil(t, report.Reconciliation.AdInfluenced)
	assert.InDelta(t, 20.32, report.Reconciliation.AdInfluenced.SpendSinceStart, 0.001)
}

func TestPipeline_Run_NoPriorLookupWithoutSave(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	store := storage.NewMockRepository()
	store.Snapshots["2025-11-05"] = &storage.SnapshotDetail{
		Snapshot: storage.Snapshot{ID: 7, WeekStart: "2025-11-05", WeekEnd: "2025-11-11"},
		Campaigns: []storage.CampaignRow{
			{Campaign: "Book 2 ASIN Targeting", Impressions: 800, Spend: 10.00},
		},
	}
	p := newTestPipeline(store, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
	})

	// Assert - deltas only accompany a save
	require.NoError(t, err)
	assert.False(t, store.SaveSnapshotCalled)
	assert.Nil(t, report.Campaigns[0].Deltas)
}

func TestPipeline_Run_SaveWithoutStoreWarns(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	p := newTestPipeline(nil, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		Save:            true,
	})

	// Assert
	require.NoError(t, err)
	assert.Zero(t, report.SavedSnapshotID)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "snapshot save requested without a database")
}

func TestPipeline_Run_SaveFailureDegrades(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	store := storage.NewMockRepository()
	store.SaveSnapshotErr = errors.New("database is locked")
	p := newTestPipeline(store, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
		Save:            true,
	})

	// Assert - the report survives, the failure is a warning
	require.NoError(t, err)
	assert.True(t, store.SaveSnapshotCalled)
	assert.Zero(t, report.SavedSnapshotID)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "failed to save snapshot")
}

func TestPipeline_Run_CrossCheckDivergenceWarns(t *testing.T) {
	// Arrange - console says the ASIN campaign spent far more than the
	// search-term rows account for
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)
	campaignPath := writeFile(t, dir, "campaigns.csv",
		"Campaign name,Status,Campaign budget amount,Clicks,Purchases,Total cost,Sales\n"+
			"Book 2 ASIN Targeting,ENABLED,$5.00,17,1,$20.00,$15.98\n"+
			"Book 2 Keywords,ENABLED,$2.00,2,0,$1.30,$0.00\n")

	p := newTestPipeline(nil, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		CampaignPath:    campaignPath,
		KDPPath:         kdpPath,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], `campaign "Book 2 ASIN Targeting" diverges`)
}

func TestPipeline_Run_UnusableCampaignReportWarns(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	p := newTestPipeline(nil, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		CampaignPath:    filepath.Join(dir, "missing.csv"),
		KDPPath:         kdpPath,
	})

	// Assert - a bad cross-check input never sinks the report
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "campaign report unusable")
}

func TestPipeline_Run_MissingSearchTermExportFatal(t *testing.T) {
	dir := t.TempDir()
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	p := newTestPipeline(nil, nil)
	_, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{filepath.Join(dir, "nope.csv")},
		KDPPath:         kdpPath,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load search term report")
}

func TestPipeline_Run_MissingRequiredColumnFatal(t *testing.T) {
	// Arrange - no impressions column anywhere in the file
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv",
		"Campaign Name,Targeting,Customer Search Term,Clicks,Spend\n"+
			"Book 2 Keywords,middle grade fantasy,dragon chapter books,2,$1.30\n")
	kdpPath := writeFile(t, dir, "kdp-daily.csv", kdpDailyCSV)

	p := newTestPipeline(nil, nil)

	// Act
	_, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
	})

	// Assert
	var schemaErr *normalize.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "impressions", schemaErr.Field)
}

func TestPipeline_Run_MissingKDPExportFatal(t *testing.T) {
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))

	p := newTestPipeline(nil, nil)
	_, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         filepath.Join(dir, "nope.csv"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load KDP export")
}

func TestPipeline_Run_EmptyRoyaltyLedgerFatal(t *testing.T) {
	// Arrange - a KDP export with headers but no rows
	dir := t.TempDir()
	searchPath := writeFile(t, dir, "week-46.csv", searchTermCSV(searchTermRows...))
	kdpPath := writeFile(t, dir, "kdp-empty.csv",
		"Date,Title,ASIN,Marketplace,Units Sold,Net Units Sold,Royalty\n")

	p := newTestPipeline(nil, nil)

	// Act
	report, err := p.Run(context.Background(), Options{
		PullDate:        pullDate(),
		SearchTermPaths: []string{searchPath},
		KDPPath:         kdpPath,
	})

	// Assert - reconciliation without royalty data aborts the run
	var reconErr *reconcile.ReconciliationError
	require.ErrorAs(t, err, &reconErr)
	assert.Nil(t, report)
}
