package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
)

func makeRow(campaign, targeting, matchType, searchTerm string, impressions int, spend float64) ads.NormalizedRow {
	return ads.NormalizedRow{
		Campaign:    campaign,
		Key:         ads.ParseTargetingKey(targeting, matchType),
		MatchType:   matchType,
		SearchTerm:  searchTerm,
		Impressions: impressions,
		Spend:       spend,
	}
}

func TestDetect_ExactMatchDrift(t *testing.T) {
	// Arrange - exact keyword appeared on a different term
	rows := []ads.NormalizedRow{
		makeRow("Manual", "ascension book", "exact", "ascension books for beginners", 42, 1.37),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	require.Len(t, result.Flags, 1)
	flag := result.Flags[0]
	assert.Equal(t, ads.FlagExactMatchDrift, flag.Kind)
	assert.Equal(t, ads.SeverityWarning, flag.Severity)
	assert.Equal(t, "ascension book", flag.Target)
	assert.Equal(t, "Exact match drift: targeted 'ascension book' but appeared on 'ascension books for beginners' (42 impressions, $1.37 spend)", flag.Message)
}

func TestDetect_ExactMatchSameEntityNotFlagged(t *testing.T) {
	// Arrange - ASIN target uppercased by normalization, search term
	// reported lowercase by Amazon
	rows := []ads.NormalizedRow{
		makeRow("Product Exact", `asin="B01K1T4U5U"`, "exact", "b01k1t4u5u", 100, 2.00),
		makeRow("Manual", "ascension book", "exact", "ascension book", 50, 1.00),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	assert.Empty(t, result.Flags)
}

func TestDetect_ExactMatchDriftOnProductTarget(t *testing.T) {
	// Arrange - an ASIN target served an ad against a different book.
	// Product keys carry no match type of their own, so the row-level
	// match type is what routes this through the exact check.
	rows := []ads.NormalizedRow{
		makeRow("Book 2 ASIN Targeting", `asin="B01K1T4U5U"`, "exact", "0063426285", 215, 3.42),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	require.Len(t, result.Flags, 1)
	flag := result.Flags[0]
	assert.Equal(t, ads.FlagExactMatchDrift, flag.Kind)
	assert.Equal(t, "B01K1T4U5U", flag.Target)
	assert.Equal(t, "0063426285", flag.SearchTerm)
	assert.Equal(t, "Exact match drift: targeted 'B01K1T4U5U' but appeared on '0063426285' (215 impressions, $3.42 spend)", flag.Message)
}

func TestDetect_BroadMatchNoTokenOverlap(t *testing.T) {
	// Arrange - term shares no token with the declared keyword
	rows := []ads.NormalizedRow{
		makeRow("Broad", "spiritual awakening", "broad", "kundalini yoga", 30, 0.75),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	require.Len(t, result.Flags, 1)
	flag := result.Flags[0]
	assert.Equal(t, ads.FlagBroadMatchExpansion, flag.Kind)
	assert.Equal(t, ads.SeverityInfo, flag.Severity)
	assert.Equal(t, "Broad match expanded: 'spiritual awakening' → 'kundalini yoga' ($0.75 spend)", flag.Message)
}

func TestDetect_BroadMatchSharedTokenNotFlagged(t *testing.T) {
	// Arrange - adding words around a core token is normal broad behavior
	rows := []ads.NormalizedRow{
		makeRow("Broad", "spiritual awakening", "broad", "signs of spiritual awakening in women", 30, 2.10),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	assert.Empty(t, result.Flags)
}

func TestDetect_BroadMatchZeroSpendNotFlagged(t *testing.T) {
	// Arrange - expansion that cost nothing is noise
	rows := []ads.NormalizedRow{
		makeRow("Broad", "spiritual awakening", "broad", "kundalini yoga", 30, 0),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	assert.Empty(t, result.Flags)
}

func TestDetect_PhraseMatchNeverFlagged(t *testing.T) {
	// Arrange
	rows := []ads.NormalizedRow{
		makeRow("Phrase", "ascension book", "phrase", "totally unrelated term", 30, 4.00),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	assert.Empty(t, result.Flags)
}

func TestDetect_TransitionNote(t *testing.T) {
	// Act
	result := Detect(nil, "2025-10-15")

	// Assert
	assert.Contains(t, result.TransitionNote, "2025-10-15")
	assert.Contains(t, result.TransitionNote, "expanded match behavior")
}

func TestDetect_EmissionOrderFollowsInput(t *testing.T) {
	// Arrange
	rows := []ads.NormalizedRow{
		makeRow("Manual", "first keyword", "exact", "something else", 1, 0.10),
		makeRow("Manual", "second keyword", "exact", "another thing", 1, 0.10),
	}

	// Act
	result := Detect(rows, "")

	// Assert
	require.Len(t, result.Flags, 2)
	assert.Equal(t, "first keyword", result.Flags[0].Target)
	assert.Equal(t, "second keyword", result.Flags[1].Target)
}
