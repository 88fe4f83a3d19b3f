// Package kdp parses KDP sales dashboard exports. The dashboard ships
// a multi-sheet XLSX workbook (royalty sheets aggregated by month,
// plus daily ebook orders and monthly print orders); a flat CSV
// template with daily rows is the fallback shape. All records filter
// to the Amazon.com marketplace.
package kdp

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/normalize"
)

// marketplaceFilter keeps only US-store rows, as the ad campaigns run
// on Amazon.com.
const marketplaceFilter = "Amazon.com"

// Ledger is one parsed sales export.
type Ledger struct {
	// Royalties carries the royalty rows reconciliation runs on.
	Royalties []ads.LedgerRecord
	// Orders carries the order rows (daily ebook, monthly print) that
	// feed paired-purchase detection. Empty for CSV exports.
	Orders []ads.LedgerRecord
	// StructuralGranularity is what the export's shape implies for the
	// royalty batch: workbook royalty sheets aggregate by month, the
	// CSV template carries daily rows. Date-based detection can
	// disagree when a file breaks the convention; the pipeline warns.
	StructuralGranularity ads.Granularity
}

// Load reads a KDP sales export (XLSX workbook or flat CSV).
func Load(path string) (*Ledger, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" || ext == ".xls" {
		return loadWorkbook(path)
	}
	return loadCSV(path)
}

// royaltySheets and orderSheets name the workbook sheets that matter
// and the book format each one reports.
var royaltySheets = []struct {
	name   string
	format ads.Format
}{
	{"eBook Royalty", ads.FormatEbook},
	{"Paperback Royalty", ads.FormatPaperback},
	{"Hardcover Royalty", ads.FormatHardcover},
}

var orderSheets = []struct {
	name   string
	format ads.Format
}{
	{"eBook Orders Placed", ads.FormatEbook},
	{"Orders Processed", ads.FormatPaperback},
}

// royaltyAliases maps royalty-sheet headers (lowercased, trimmed) onto
// canonical fields. The CSV template spells some differently.
var royaltyAliases = map[string]string{
	"royalty date":   "date",
	"date":           "date",
	"title":          "title",
	"asin":           "asin",
	"asin/isbn":      "asin",
	"isbn":           "asin",
	"marketplace":    "marketplace",
	"units sold":     "units_sold",
	"net units sold": "net_units",
	"royalty":        "royalty",
}

// orderAliases covers the order sheets, whose unit column is "Paid
// Units" and which carry no royalty figures.
var orderAliases = map[string]string{
	"date":        "date",
	"title":       "title",
	"asin":        "asin",
	"marketplace": "marketplace",
	"paid units":  "units_sold",
}

func loadWorkbook(path string) (*Ledger, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}

	ledger := &Ledger{StructuralGranularity: ads.GranularityMonthly}
	for _, sheet := range royaltySheets {
		if !present[sheet.name] {
			continue
		}
		records, err := parseSheet(f, sheet.name, sheet.format, royaltyAliases)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ledger.Royalties = append(ledger.Royalties, records...)
	}

	for _, sheet := range orderSheets {
		if !present[sheet.name] {
			continue
		}
		records, err := parseSheet(f, sheet.name, sheet.format, orderAliases)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ledger.Orders = append(ledger.Orders, records...)
	}

	return ledger, nil
}

func parseSheet(f *excelize.File, sheet string, format ads.Format, aliases map[string]string) ([]ads.LedgerRecord, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	columns := resolveColumns(rows[0], aliases)
	var records []ads.LedgerRecord
	for _, record := range rows[1:] {
		r, keep := buildRecord(record, columns, format)
		if keep {
			records = append(records, r)
		}
	}
	return records, nil
}

// resolveColumns maps canonical fields to cell indexes via the alias
// table; first matching column wins.
func resolveColumns(headers []string, aliases map[string]string) map[string]int {
	columns := make(map[string]int)
	for i, h := range headers {
		canonical, ok := aliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, exists := columns[canonical]; !exists {
			columns[canonical] = i
		}
	}
	return columns
}

// buildRecord assembles one ledger record. Rows outside the Amazon.com
// marketplace, and fully blank rows, report keep=false.
func buildRecord(record []string, columns map[string]int, format ads.Format) (ads.LedgerRecord, bool) {
	cell := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	title := cell("title")
	marketplace := cell("marketplace")
	if title == "" && cell("date") == "" {
		return ads.LedgerRecord{}, false
	}
	if _, filtered := columns["marketplace"]; filtered && !strings.Contains(marketplace, marketplaceFilter) {
		return ads.LedgerRecord{}, false
	}

	r := ads.LedgerRecord{
		Title:       title,
		ASIN:        strings.ToUpper(cell("asin")),
		Format:      format,
		Marketplace: marketplace,
		UnitsSold:   normalize.Count(cell("units_sold")),
		Royalty:     normalize.Money(cell("royalty")),
	}
	if format == "" {
		r.Format = inferFormat(r.ASIN)
	}

	// Unparseable dates coerce to zero; window filtering skips them
	if date, err := parseLedgerDate(cell("date")); err == nil {
		r.Date = date
	}

	if _, ok := columns["net_units"]; ok {
		r.NetUnits = normalize.Count(cell("net_units"))
	} else {
		r.NetUnits = r.UnitsSold
	}
	return r, true
}

// csvAliases adds the template spellings the flat export uses.
var csvAliases = map[string]string{
	"date":               "date",
	"title":              "title",
	"asin":               "asin",
	"marketplace":        "marketplace",
	"units sold":         "units_sold",
	"units returned":     "units_refunded",
	"net units sold":     "net_units",
	"royalty":            "royalty",
	"average list price": "list_price",
}

func loadCSV(path string) (*Ledger, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	text = text[csvHeaderOffset(text):]

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file: no header row", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header row: %w", path, err)
	}

	columns := resolveColumns(headers, csvAliases)
	var records []ads.LedgerRecord
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read rows: %w", path, err)
		}
		// Blank format triggers ASIN-prefix inference per record
		if r, keep := buildRecord(record, columns, ""); keep {
			records = append(records, r)
		}
	}

	return &Ledger{
		Royalties:             records,
		StructuralGranularity: ads.DetectGranularity(records),
	}, nil
}

// csvHeaderOffset finds the template header: a line starting with
// "Date" that also names "Title", within the first ten lines.
func csvHeaderOffset(text []byte) int {
	offset := 0
	for i := 0; i < 10; i++ {
		end := bytes.IndexByte(text[offset:], '\n')
		line := text[offset:]
		if end >= 0 {
			line = text[offset : offset+end]
		}
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, []byte("Date")) && bytes.Contains(line, []byte("Title")) {
			return offset
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return 0
}

// inferFormat classifies an identifier the way the template export
// expects: B0-prefixed ASINs are Kindle editions, ten-digit ISBNs are
// print.
func inferFormat(asin string) ads.Format {
	if strings.HasPrefix(asin, "B0") {
		return ads.FormatEbook
	}
	return ads.FormatPaperback
}

// parseLedgerDate handles the date shapes KDP exports use: monthly
// royalty periods (2025-11), daily dates, and Excel serial numbers.
func parseLedgerDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, layout := range []string{"2006-01-02", "2006-01", "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	// Excel stores dates as fractional day counts from 1899-12-30
	if serial, err := strconv.ParseFloat(cleaned, 64); err == nil && serial > 59 {
		base := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		return base.Add(time.Duration(serial * 24 * float64(time.Hour))), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q", cleaned)
}
