// Package normalize flattens raw search-term export rows into the
// canonical, deduplicated row set the analysis stages consume. Amazon
// has shipped several export vintages with different column names and
// attribution windows; the alias table here absorbs that variance so
// the rest of the pipeline only ever sees canonical field names.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// Canonical field names. Export columns are mapped onto these via
// columnAliases before any row is read.
const (
	fieldCampaign    = "campaign"
	fieldTargeting   = "targeting"
	fieldMatchType   = "match_type"
	fieldSearchTerm  = "search_term"
	fieldImpressions = "impressions"
	fieldClicks      = "clicks"
	fieldSpend       = "spend"
	fieldSales       = "sales"
	fieldOrders      = "orders"
	fieldStartDate   = "start_date"
	fieldEndDate     = "end_date"
)

// columnAliases maps known export headers to canonical field names.
// Lookup happens after trimming and lowercasing the header, which
// collapses the trailing-space and ACoS/ACOS variants Amazon has
// shipped over time.
var columnAliases = map[string]string{
	"campaign name":        fieldCampaign,
	"campaign":             fieldCampaign,
	"targeting":            fieldTargeting,
	"match type":           fieldMatchType,
	"customer search term": fieldSearchTerm,
	"impressions":          fieldImpressions,
	"clicks":               fieldClicks,
	"spend":                fieldSpend,
	"start date":           fieldStartDate,
	"end date":             fieldEndDate,
	// 14-day attribution vintage (current export format)
	"14 day total sales":                       fieldSales,
	"14 day total orders (#)":                  fieldOrders,
	"total advertising cost of sales (acos)":   "acos",
	"total return on advertising spend (roas)": "roas",
	"14 day total units (#)":                   "units",
	"14 day conversion rate":                   "conversion_rate",
	"click-thru rate (ctr)":                    "ctr",
	"cost per click (cpc)":                     "cpc",
	"14 day total kenp read (#)":               "kenp_read",
	"estimated kenp royalties":                 "kenp_royalties",
	// 7-day attribution vintage (older export format)
	"7 day total sales":      fieldSales,
	"7 day total orders (#)": fieldOrders,
}

// requiredFields must each resolve to at least one column in a batch.
// Orders, sales, and match type are optional because older vintages
// lack them; they zero-fill per row instead.
var requiredFields = []string{
	fieldCampaign,
	fieldTargeting,
	fieldSearchTerm,
	fieldImpressions,
	fieldClicks,
	fieldSpend,
}

// SchemaError reports a required field that no known column alias
// covered anywhere in a batch. A missing value on a single row is not
// a schema error; a column missing from the whole file is.
type SchemaError struct {
	SourceFile string
	Field      string
	Aliases    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: no column found for required field %q (known headers: %s)",
		e.SourceFile, e.Field, strings.Join(e.Aliases, ", "))
}

// Result is the output of a normalization pass.
type Result struct {
	Rows []ads.NormalizedRow
	// Duplicates counts rows dropped because an earlier row carried
	// the same (campaign, target, search term, period) key, as
	// happens when export files cover overlapping date ranges.
	Duplicates int
}

// Rows flattens one or more export batches into a single deduplicated
// row set. Batches are processed in input order and the first row
// seen for a given composite key wins. Rows without parseable period
// dates take the fallback window instead. Malformed numeric cells
// degrade to zero rather than failing the batch.
func Rows(batches []ads.ExportBatch, fallback ads.Window) (Result, error) {
	var result Result
	seen := make(map[ads.DedupKey]struct{})

	for _, batch := range batches {
		columns, err := resolveColumns(batch)
		if err != nil {
			return Result{}, err
		}

		for _, raw := range batch.Rows {
			row := normalizeRow(batch.SourceFile, raw, columns, fallback)
			key := row.DedupKey()
			if _, dup := seen[key]; dup {
				result.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			result.Rows = append(result.Rows, row)
		}
	}

	return result, nil
}

// resolveColumns maps each canonical field to the actual column header
// present in the batch, failing if a required field has no match.
func resolveColumns(batch ads.ExportBatch) (map[string]string, error) {
	resolved := make(map[string]string, len(batch.Columns))
	for _, col := range batch.Columns {
		canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(col))]
		if !ok {
			continue
		}
		if _, exists := resolved[canonical]; !exists {
			resolved[canonical] = col
		}
	}

	for _, field := range requiredFields {
		if _, ok := resolved[field]; !ok {
			return nil, &SchemaError{
				SourceFile: batch.SourceFile,
				Field:      field,
				Aliases:    aliasesFor(field),
			}
		}
	}

	return resolved, nil
}

func normalizeRow(sourceFile string, raw ads.RawExportRow, columns map[string]string, fallback ads.Window) ads.NormalizedRow {
	value := func(field string) string {
		col, ok := columns[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(raw[col])
	}

	rawTargeting := value(fieldTargeting)
	row := ads.NormalizedRow{
		SourceFile:   sourceFile,
		Campaign:     value(fieldCampaign),
		Key:          ads.ParseTargetingKey(rawTargeting, value(fieldMatchType)),
		RawTargeting: rawTargeting,
		MatchType:    strings.ToLower(value(fieldMatchType)),
		SearchTerm:   value(fieldSearchTerm),
		Impressions:  Count(value(fieldImpressions)),
		Clicks:       Count(value(fieldClicks)),
		Orders:       Count(value(fieldOrders)),
		Spend:        Money(value(fieldSpend)),
		Sales:        Money(value(fieldSales)),
		PeriodStart:  fallback.Start,
		PeriodEnd:    fallback.End,
	}

	if start, err := Date(value(fieldStartDate)); err == nil {
		row.PeriodStart = start
	}
	if end, err := Date(value(fieldEndDate)); err == nil {
		row.PeriodEnd = end
	}

	return row
}

func aliasesFor(field string) []string {
	var aliases []string
	for header, canonical := range columnAliases {
		if canonical == field {
			aliases = append(aliases, header)
		}
	}
	sort.Strings(aliases)
	return aliases
}
