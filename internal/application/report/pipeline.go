package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eshaffer321/kdp-ads-analytics/internal/adapters/exports"
	"github.com/eshaffer321/kdp-ads-analytics/internal/adapters/kdp"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/bids"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/drift"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/normalize"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/reconcile"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// crossCheckTolerance is the spend divergence (dollars) between the
// console campaign report and the derived totals before a warning.
const crossCheckTolerance = 0.05

const dateLayout = "2006-01-02"

// Run executes the full report pipeline. Fatal stage errors abort the
// run and nothing is persisted; degraded stages log a warning, append
// to Report.Warnings, and continue.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	runID := uuid.New().String()
	window := ads.WeekWindow(opts.PullDate)
	weekStart := window.Start.Format(dateLayout)
	weekEnd := window.InclusiveEnd().Format(dateLayout)

	p.logger.Info("Starting report run",
		"run_id", runID,
		"pull_date", opts.PullDate.Format(dateLayout),
		"week_start", weekStart,
		"week_end", weekEnd,
	)

	report := &Report{RunID: runID, PullDate: opts.PullDate, Window: window}

	var batches []ads.ExportBatch
	for _, path := range opts.SearchTermPaths {
		batch, err := exports.LoadSearchTerms(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load search term report: %w", err)
		}
		p.logger.Info("Loaded search term report", "file", batch.SourceFile, "rows", len(batch.Rows))
		batches = append(batches, batch)
	}

	normalized, err := normalize.Rows(batches, window)
	if err != nil {
		return nil, err
	}
	if normalized.Duplicates > 0 {
		p.logger.Info("Deduplicated overlapping export rows", "removed", normalized.Duplicates)
	}
	p.logger.Info("Search terms normalized", "rows", len(normalized.Rows))

	targets := aggregate.Targets(normalized.Rows, configuredTargets(p.cfg))
	p.logger.Info("Targets derived from search terms", "targets", len(targets))

	ledger, err := kdp.Load(opts.KDPPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load KDP export: %w", err)
	}
	p.logger.Info("Loaded KDP sales export",
		"royalty_rows", len(ledger.Royalties),
		"order_rows", len(ledger.Orders),
	)
	if len(ledger.Royalties) > 0 && ads.DetectGranularity(ledger.Royalties) != ledger.StructuralGranularity {
		p.logger.Warn("KDP export dates do not match the file's structural granularity",
			"file", filepath.Base(opts.KDPPath))
	}

	campaigns := aggregate.Campaigns(normalized.Rows)
	if opts.Save && p.store != nil {
		prior, err := p.store.PriorCampaignSummary(weekStart)
		if err != nil {
			p.logger.Warn("Prior week lookup failed", "error", err)
		} else if prior != nil {
			campaigns = aggregate.Deltas(campaigns, prior)
		}
	}

	p.logger.Info("Running analysis")

	var adTotals reconcile.AdTotals
	for _, c := range campaigns {
		adTotals.Orders += c.Orders
		adTotals.Sales += c.Sales
		adTotals.Spend += c.Spend
	}

	recon, err := reconcile.Reconcile(ledger.Royalties, ledger.Orders, adTotals, window, p.reconcileConfig(weekStart, adTotals))
	if err != nil {
		return nil, err
	}

	report.Campaigns = campaigns
	report.Targets = targets
	report.SearchTerms = aggregate.SearchTerms(normalized.Rows)
	report.Drift = drift.Detect(normalized.Rows, p.cfg.Settings.ExactMatchTransitionDate)
	report.Reconciliation = recon
	report.Bids = bids.Recommend(targets, p.bidSettings())

	if opts.CampaignPath != "" {
		p.crossCheckSpend(report, opts.CampaignPath)
	}

	if opts.ResolveASINs && p.resolver != nil {
		p.resolveNames(ctx, report)
	}

	if opts.Save {
		p.saveSnapshot(report, weekStart, weekEnd, normalized.Rows, ledger.Royalties)
	}

	return report, nil
}

// configuredTargets flattens the campaign configuration into the
// domain's configured-target list, campaign keys in sorted order so
// runs are deterministic.
func configuredTargets(cfg *config.Config) []ads.ConfiguredTarget {
	keys := make([]string, 0, len(cfg.Campaigns))
	for key := range cfg.Campaigns {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []ads.ConfiguredTarget
	for _, key := range keys {
		campaign := cfg.Campaigns[key]
		for _, target := range campaign.Targets {
			out = append(out, ads.ConfiguredTarget{
				Campaign:     campaign.Name,
				CampaignType: campaign.Type,
				Text:         target.ASIN,
				Title:        target.Title,
				Bid:          target.Bid,
			})
		}
	}
	return out
}

func (p *Pipeline) bidSettings() bids.Settings {
	return bids.Settings{
		TargetACOS:     p.cfg.Settings.TargetACOS,
		BlendedRoyalty: p.cfg.Settings.BlendedRoyalty,
		HighSpendFlag:  p.cfg.Settings.HighSpendFlag,
		LowImpressions: p.cfg.Settings.LowImpressionsFlag,
	}
}

// reconcileConfig assembles the reconciliation context. Spend since
// the campaign start is the current window's spend plus everything
// recorded in earlier snapshots.
func (p *Pipeline) reconcileConfig(weekStart string, adTotals reconcile.AdTotals) reconcile.Config {
	book1, book2 := p.cfg.BookASINSets()
	rcfg := reconcile.Config{
		Book1ASINs:      book1,
		Book2ASINs:      book2,
		SpendSinceStart: adTotals.Spend,
	}

	adsStart, err := p.cfg.AdsStartDate()
	if err != nil {
		p.logger.Warn("Invalid ads start date in config", "error", err)
	} else {
		rcfg.AdsStart = adsStart
	}

	if p.store != nil {
		prior, err := p.store.SpendBefore(weekStart)
		if err != nil {
			p.logger.Warn("Historical spend lookup failed", "error", err)
		} else {
			rcfg.SpendSinceStart += prior
		}
	}
	return rcfg
}

// crossCheckSpend compares the console campaign report's totals with
// spend derived from search-term rows. Divergence is a warning, not an
// error: it usually means a missing export file.
func (p *Pipeline) crossCheckSpend(report *Report, path string) {
	console, err := exports.LoadCampaignReport(path)
	if err != nil {
		p.logger.Warn("Campaign report unusable for spend cross-check", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("campaign report unusable: %v", err))
		return
	}

	derived := make(map[string]float64, len(report.Campaigns))
	for _, c := range report.Campaigns {
		derived[c.Campaign] = c.Spend
	}
	for _, name := range exports.CrossCheck(console, derived, crossCheckTolerance) {
		p.logger.Warn("Campaign spend cross-check divergence", "campaign", name)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("spend cross-check: campaign %q diverges from console totals", name))
	}
}

// resolveNames maps ASIN search terms to display names and applies
// them to the rollup and drift messages. Failure degrades the run.
func (p *Pipeline) resolveNames(ctx context.Context, report *Report) {
	terms := make([]string, 0, len(report.SearchTerms))
	for _, t := range report.SearchTerms {
		terms = append(terms, t.Term)
	}

	resolved, err := p.resolver.Resolve(ctx, terms)
	if err != nil {
		p.logger.Warn("ASIN title resolution failed", "error", err)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("asin title resolution failed: %v", err))
	}
	if len(resolved) == 0 {
		return
	}

	report.ResolvedNames = resolved
	applyResolution(report, resolved)
	p.logger.Info("Resolved ASIN search terms to titles", "count", len(resolved))
}

var flagKindTitle = cases.Title(language.English)

// applyResolution rewrites rollup terms and regenerates drift flag
// messages with display names. Flag identity fields stay raw so the
// stored drift join is unaffected.
func applyResolution(report *Report, names map[string]string) {
	for i, t := range report.SearchTerms {
		if display, ok := names[t.Term]; ok {
			report.SearchTerms[i].Term = display
		}
	}

	for i, f := range report.Drift.Flags {
		term, termHit := names[f.SearchTerm]
		target, targetHit := names[f.Target]
		if !termHit && !targetHit {
			continue
		}
		if !termHit {
			term = f.SearchTerm
		}
		if !targetHit {
			target = f.Target
		}
		report.Drift.Flags[i].Message = fmt.Sprintf(
			"%s: targeted '%s' but appeared on '%s' (%d impressions, $%.2f spend)",
			flagKindTitle.String(strings.ReplaceAll(string(f.Kind), "_", " ")),
			target, term, f.Impressions, f.Spend)
	}
}

// saveSnapshot persists the week. The raw normalized rows and the full
// royalty ledger are stored, not the rollups, so re-analysis stays
// possible.
func (p *Pipeline) saveSnapshot(report *Report, weekStart, weekEnd string, rows []ads.NormalizedRow, royalties []ads.LedgerRecord) {
	if p.store == nil {
		p.logger.Warn("Snapshot save requested without a database")
		report.Warnings = append(report.Warnings, "snapshot save requested without a database")
		return
	}

	data := &storage.SnapshotData{
		RunID:       report.RunID,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Campaigns:   report.Campaigns,
		Targets:     report.Targets,
		SearchTerms: rows,
		DriftFlags:  report.Drift.Flags,
		KDPSales:    royalties,
		Bids:        report.Bids,
	}

	id, err := p.store.SaveSnapshot(data)
	if err != nil {
		p.logger.Warn("Failed to save snapshot", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("failed to save snapshot: %v", err))
		return
	}
	report.SavedSnapshotID = id
	p.logger.Info("Snapshot saved", "snapshot_id", id, "week_start", weekStart)
}
