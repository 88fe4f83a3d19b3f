package ads

import (
	"regexp"
	"strings"
)

// KeyKind classifies what a TargetingKey refers to.
type KeyKind int

const (
	// KindKeyword is a keyword target: text plus match type.
	KindKeyword KeyKind = iota
	// KindASIN is a product target identified by a bare ASIN or ISBN.
	KindASIN
	// KindSelf is the automatic self placement ("*").
	KindSelf
)

// Match type values as they appear in normalized export rows.
const (
	MatchExact  = "exact"
	MatchPhrase = "phrase"
	MatchBroad  = "broad"
)

var (
	// asin="B01K1T4U5U" or asin-expanded="B01K1T4U5U", quotes optional.
	asinExprRe = regexp.MustCompile(`(?i)^asin(?:-expanded)?="?([A-Za-z0-9]{10})"?$`)

	// Bare identifiers: 10 chars starting B0 (Kindle) or a 10-digit ISBN.
	asinRe = regexp.MustCompile(`^[Bb]0[A-Za-z0-9]{8}$`)
	isbnRe = regexp.MustCompile(`^\d{10}$`)
)

// IsASIN reports whether a term looks like an ASIN or 10-digit ISBN.
func IsASIN(term string) bool {
	term = strings.TrimSpace(term)
	return asinRe.MatchString(term) || isbnRe.MatchString(term)
}

// TargetingKey is the normalized identity of an advertising target.
// Two raw expressions that reference the same underlying entity always
// normalize to the same key, whatever the export vintage. Keyword keys
// carry their match type; distinct match types are distinct targets.
type TargetingKey struct {
	Kind  KeyKind
	Text  string
	Match string
}

// ParseTargetingKey normalizes a raw targeting expression. Wrapped
// product expressions (asin="…", asin-expanded="…") reduce to the bare
// uppercased identifier, as do bare ASINs/ISBNs from older exports.
// Everything else keeps its literal text plus the declared match type.
func ParseTargetingKey(raw, matchType string) TargetingKey {
	trimmed := strings.TrimSpace(raw)
	match := strings.ToLower(strings.TrimSpace(matchType))

	if m := asinExprRe.FindStringSubmatch(trimmed); m != nil {
		return TargetingKey{Kind: KindASIN, Text: strings.ToUpper(m[1])}
	}
	if IsASIN(trimmed) {
		return TargetingKey{Kind: KindASIN, Text: strings.ToUpper(trimmed)}
	}
	if trimmed == "*" {
		return TargetingKey{Kind: KindSelf, Text: "*"}
	}
	return TargetingKey{Kind: KindKeyword, Text: trimmed, Match: match}
}

// String returns the bare key payload: the identifier for product
// targets, the keyword text otherwise. Match type is carried separately
// where it matters (metrics, storage).
func (k TargetingKey) String() string {
	return k.Text
}

// IsProduct reports whether the key targets a product page.
func (k TargetingKey) IsProduct() bool {
	return k.Kind == KindASIN
}

// ConfiguredTarget is one target declared in campaign configuration.
// The Text field holds the ASIN for product-targeting campaigns and the
// keyword text for keyword campaigns.
type ConfiguredTarget struct {
	Campaign     string
	CampaignType string
	Text         string
	Title        string
	Bid          *float64
}
