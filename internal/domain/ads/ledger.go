package ads

import "time"

// Format is a book format as reported by the sales ledger.
type Format string

const (
	FormatEbook     Format = "ebook"
	FormatPaperback Format = "paperback"
	FormatHardcover Format = "hardcover"
)

// LedgerRecord is one sales or royalty observation from the KDP
// dashboard export. Royalty rows carry units and royalty; daily order
// rows carry units only. Date granularity (daily vs. first-of-month)
// is a property of the whole batch, not of a single record.
type LedgerRecord struct {
	Date        time.Time
	Title       string
	ASIN        string
	Format      Format
	Marketplace string
	UnitsSold   int
	NetUnits    int
	Royalty     float64
}

// Units returns the unit count to aggregate: net units when the export
// distinguishes refunds, gross otherwise (parsers fill NetUnits either
// way).
func (r LedgerRecord) Units() int {
	return r.NetUnits
}

// Granularity is the date resolution of a ledger batch.
type Granularity int

const (
	GranularityDaily Granularity = iota
	GranularityMonthly
)

func (g Granularity) String() string {
	if g == GranularityMonthly {
		return "monthly"
	}
	return "daily"
}

// DetectGranularity classifies a ledger batch: MONTHLY when every dated
// record falls on the first of a month, DAILY as soon as any does not.
// Decided once per batch. An empty batch is vacuously MONTHLY; callers
// that need daily data treat that as insufficient granularity.
func DetectGranularity(records []LedgerRecord) Granularity {
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		if r.Date.Day() != 1 {
			return GranularityDaily
		}
	}
	return GranularityMonthly
}
