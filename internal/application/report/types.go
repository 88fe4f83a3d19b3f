// Package report orchestrates one weekly report run: ingest the
// search-term and KDP exports, normalize and aggregate, run the
// analysis stages, resolve ASIN display names, and optionally persist
// the week as a snapshot.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/bids"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/drift"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/reconcile"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// Options holds one report run's inputs. PullDate is the export pull
// date; the reporting window is the seven days before it.
type Options struct {
	PullDate        time.Time
	SearchTermPaths []string
	// CampaignPath optionally names the console campaign report, used
	// to cross-check derived per-campaign spend.
	CampaignPath string
	KDPPath      string
	ResolveASINs bool
	Save         bool
}

// Report is the full analysis output for one window, ready to render.
type Report struct {
	RunID    string
	PullDate time.Time
	Window   ads.Window

	Campaigns      []aggregate.CampaignSummary
	Targets        []aggregate.TargetMetrics
	SearchTerms    []aggregate.SearchTermMetrics
	Drift          drift.Result
	Reconciliation *reconcile.Result
	Bids           bids.Result

	// ResolvedNames maps raw ASIN search terms to display names. The
	// rollup and drift messages already have them applied.
	ResolvedNames map[string]string

	// Warnings collects degraded-stage notes (cross-check divergence,
	// failed snapshot save). Fatal conditions return an error instead.
	Warnings []string

	// SavedSnapshotID is the stored snapshot row id, zero when the run
	// did not save.
	SavedSnapshotID int64
}

// NameResolver resolves ASIN search terms to display names.
type NameResolver interface {
	Resolve(ctx context.Context, terms []string) (map[string]string, error)
}

// Pipeline runs report generation. The store may be nil, which skips
// week-over-week deltas, historical spend, and snapshot saves.
type Pipeline struct {
	cfg      *config.Config
	store    storage.Repository
	resolver NameResolver
	logger   *slog.Logger
}

// NewPipeline creates a report pipeline.
func NewPipeline(cfg *config.Config, store storage.Repository, resolver NameResolver, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}
