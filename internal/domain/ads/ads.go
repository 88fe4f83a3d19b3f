// Package ads holds the shared data model for the analysis pipeline:
// raw export rows, normalized search-term records, ledger records, and
// the flag/severity vocabulary the analysis stages emit.
//
// Everything here is a plain value. Stages hand copies downstream and
// never mutate what they received.
package ads

import "time"

// RawExportRow is one observation row from an advertising export,
// keyed by the raw column name exactly as it appeared in the file.
// Rows are ephemeral; the normalizer consumes them immediately.
type RawExportRow map[string]string

// ExportBatch is the parsed content of a single export file.
type ExportBatch struct {
	SourceFile string
	Columns    []string
	Rows       []RawExportRow
}

// NormalizedRow is a RawExportRow rewritten with a TargetingKey and
// canonical dates. The composite key (campaign, targeting key, search
// term, period start, period end) identifies the row for dedup.
type NormalizedRow struct {
	SourceFile   string
	Campaign     string
	Key          TargetingKey
	RawTargeting string
	// MatchType is the row's declared match type column, lowercased.
	// Product-target rows carry it here rather than in the Key, whose
	// identity stays match-free.
	MatchType   string
	SearchTerm  string
	Impressions int
	Clicks      int
	Orders      int
	Spend       float64
	Sales       float64
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// DedupKey identifies a NormalizedRow for deduplication across
// overlapping export files.
type DedupKey struct {
	Campaign    string
	Key         TargetingKey
	SearchTerm  string
	PeriodStart int64
	PeriodEnd   int64
}

// DedupKey returns the composite natural key for this row.
func (r NormalizedRow) DedupKey() DedupKey {
	return DedupKey{
		Campaign:    r.Campaign,
		Key:         r.Key,
		SearchTerm:  r.SearchTerm,
		PeriodStart: r.PeriodStart.Unix(),
		PeriodEnd:   r.PeriodEnd.Unix(),
	}
}

// Window is a reporting period, inclusive of Start and exclusive of End.
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekWindow builds the 7-day reporting window preceding a pull date.
// A report pulled on the 15th covers the 8th through the 14th.
func WeekWindow(pullDate time.Time) Window {
	return Window{
		Start: pullDate.AddDate(0, 0, -7),
		End:   pullDate,
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// InclusiveEnd returns the last day covered by the window, for display
// and persistence (the export files label periods with inclusive ends).
func (w Window) InclusiveEnd() time.Time {
	return w.End.AddDate(0, 0, -1)
}
