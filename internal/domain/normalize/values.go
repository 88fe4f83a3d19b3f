package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money parses a currency cell like "$1,234.56" to a float64. Blank
// and malformed cells coerce to zero, matching the row-level
// zero-fill policy.
func Money(s string) float64 {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	if isNegative {
		amount = -amount
	}
	return amount
}

// Percent parses a percentage cell like "2.50%" to a fraction
// (0.025). Bare numbers are treated as percentages too, since that is
// how every export vintage formats these columns.
func Percent(s string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), "%", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value / 100
}

// Count parses an integer cell, tolerating thousands separators and
// float-formatted exports ("1,234", "12.0"). Blank and malformed
// cells coerce to zero.
func Count(s string) int {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	n, err := strconv.Atoi(cleaned)
	if err == nil {
		return n
	}

	// Some exports write counts as floats
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// Date parses a date cell in the formats Amazon exports use.
func Date(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	layouts := []string{
		"2006-01-02",
		"Jan 2, 2006",
		"Jan 02, 2006",
		"01/02/2006",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q", cleaned)
}
