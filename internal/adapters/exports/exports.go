// Package exports reads Amazon Ads export files from disk into the raw
// batches the normalizer consumes. Files arrive as CSV or XLSX, with
// preamble rows above the real header in some vintages and UTF-8
// BOM / UTF-16 encodings in others; this package absorbs all of that
// and hands back trimmed headers plus raw row maps. Column alias
// resolution stays in the normalize package.
package exports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// headerMarker identifies the search-term header row within the
// preamble some export vintages carry above it.
const headerMarker = "Campaign Name"

// headerScanLimit caps how many leading lines are checked for the
// marker before falling back to the first row.
const headerScanLimit = 10

// ParseError reports a file that could not be read as an export.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// LoadSearchTerms reads one Search Term Report export (CSV or XLSX)
// into a raw batch. CSV headers are discovered by scanning the first
// lines for the "Campaign Name" marker; XLSX reads the first sheet
// with the header on its first row.
func LoadSearchTerms(path string) (ads.ExportBatch, error) {
	t, err := loadTable(path, headerMarker)
	if err != nil {
		return ads.ExportBatch{}, err
	}
	return t.batch(path), nil
}

// table is a parsed spreadsheet: trimmed headers plus rows fitted to
// the header width.
type table struct {
	headers []string
	rows    [][]string
}

// batch converts the table to the raw map form the normalizer takes.
// Duplicate headers keep the first column, matching alias resolution.
func (t *table) batch(path string) ads.ExportBatch {
	b := ads.ExportBatch{
		SourceFile: filepath.Base(path),
		Columns:    t.headers,
	}
	for _, record := range t.rows {
		row := make(ads.RawExportRow, len(t.headers))
		for i, h := range t.headers {
			if h == "" {
				continue
			}
			if _, exists := row[h]; !exists {
				row[h] = record[i]
			}
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

func loadTable(path string, markers ...string) (*table, error) {
	if isWorkbook(path) {
		return loadWorkbookTable(path)
	}
	return loadCSVTable(path, markers)
}

func isWorkbook(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xls"
}

func loadCSVTable(path string, markers []string) (*table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := decodeText(raw)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	text = text[headerOffset(text, markers):]

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Path: path, Reason: "empty file: no header row"}
	}
	if err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("reading header row: %v", err)}
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	t := &table{headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		// Fail on row parse errors rather than dropping data silently
		if err != nil {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("reading rows: %v", err)}
		}
		if isBlankRow(record) {
			continue
		}
		t.rows = append(t.rows, fitRow(record, len(headers)))
	}
	return t, nil
}

func loadWorkbookTable(path string) (*table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("opening workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Path: path, Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("reading sheet %q: %v", sheets[0], err)}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Reason: "empty file: no header row"}
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	t := &table{headers: headers}
	for _, record := range rows[1:] {
		if isBlankRow(record) {
			continue
		}
		t.rows = append(t.rows, fitRow(record, len(headers)))
	}
	return t, nil
}

// decodeText converts export bytes to UTF-8. Amazon ships CSVs as
// UTF-8 with BOM and occasionally UTF-16; the BOM override sniffs
// both and strips the marker.
func decodeText(raw []byte) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding text: %w", err)
	}
	return decoded, nil
}

// headerOffset returns the byte offset of the line holding a header
// marker, scanning at most headerScanLimit lines. Files without a
// marker fall back to the first line; if that line is not really a
// header, alias resolution rejects the batch downstream.
func headerOffset(text []byte, markers []string) int {
	offset := 0
	for i := 0; i < headerScanLimit; i++ {
		end := bytes.IndexByte(text[offset:], '\n')
		line := text[offset:]
		if end >= 0 {
			line = text[offset : offset+end]
		}
		for _, m := range markers {
			if bytes.Contains(line, []byte(m)) {
				return offset
			}
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return 0
}

// fitRow pads or truncates a record to the header width; exports
// sometimes carry ragged trailing cells.
func fitRow(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	fitted := make([]string, width)
	copy(fitted, record)
	return fitted
}

func isBlankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
