// Package drift flags search terms that landed away from their
// declared target: exact-match rows whose observed term is a different
// entity than the declared text, and broad-match rows whose term shares
// no tokens with the declared keyword.
package drift

import (
	"fmt"
	"strings"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

// Result carries the drift flags plus an optional note about the
// exact-match transition date from configuration.
type Result struct {
	Flags          []ads.Flag
	TransitionNote string
}

// Detect scans rows in input order and emits drift flags. The switch
// runs on the row's declared match type, not the key's, so product
// targets (whose key identity carries no match) still get exact-match
// drift checks.
//
// Exact match: the observed search term should be the same entity as
// the declared target text. Comparison is against the term's own
// normalized key so an uppercased ASIN target and its lowercased
// search-term form never count as drift.
//
// Broad match: expansion is legitimate, so a term is only flagged when
// it accrued spend and shares no token at all with the declared
// keyword. Phrase match is never flagged.
func Detect(rows []ads.NormalizedRow, transitionDate string) Result {
	var result Result

	for _, row := range rows {
		target := row.Key.Text
		term := strings.TrimSpace(row.SearchTerm)
		if target == "" || term == "" {
			continue
		}

		switch row.MatchType {
		case ads.MatchExact:
			termKey := ads.ParseTargetingKey(term, "")
			if !strings.EqualFold(termKey.Text, target) {
				result.Flags = append(result.Flags, ads.Flag{
					Kind:        ads.FlagExactMatchDrift,
					Severity:    ads.SeverityWarning,
					Campaign:    row.Campaign,
					Target:      target,
					SearchTerm:  term,
					Impressions: row.Impressions,
					Spend:       row.Spend,
					Message: fmt.Sprintf(
						"Exact match drift: targeted '%s' but appeared on '%s' (%d impressions, $%.2f spend)",
						target, term, row.Impressions, row.Spend),
				})
			}
		case ads.MatchBroad:
			if row.Spend > 0 && !tokensOverlap(target, term) {
				result.Flags = append(result.Flags, ads.Flag{
					Kind:        ads.FlagBroadMatchExpansion,
					Severity:    ads.SeverityInfo,
					Campaign:    row.Campaign,
					Target:      target,
					SearchTerm:  term,
					Impressions: row.Impressions,
					Spend:       row.Spend,
					Message: fmt.Sprintf(
						"Broad match expanded: '%s' → '%s' ($%.2f spend)",
						target, term, row.Spend),
				})
			}
		}
	}

	if transitionDate != "" {
		result.TransitionNote = fmt.Sprintf(
			"Note: Switched from expanded to exact ASIN matching on %s. "+
				"Drift before this date may reflect expanded match behavior.",
			transitionDate)
	}

	return result
}

// tokensOverlap reports whether any whitespace-delimited token appears
// in both strings, case-insensitively.
func tokensOverlap(a, b string) bool {
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(a)) {
		seen[tok] = true
	}
	for _, tok := range strings.Fields(strings.ToLower(b)) {
		if seen[tok] {
			return true
		}
	}
	return false
}
