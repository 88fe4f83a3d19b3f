package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/ads"
	"github.com/eshaffer321/kdp-ads-analytics/internal/domain/aggregate"
)

func floatPtr(f float64) *float64 { return &f }

func makeTarget(campaign, targeting string, impressions, clicks, orders int, spend float64, bid *float64) aggregate.TargetMetrics {
	m := aggregate.TargetMetrics{
		Campaign:    campaign,
		Key:         ads.ParseTargetingKey(targeting, ""),
		Bid:         bid,
		Configured:  bid != nil,
		Observed:    true,
		Impressions: impressions,
		Clicks:      clicks,
		Orders:      orders,
		Spend:       spend,
	}
	if clicks > 0 {
		m.ConversionRate = float64(orders) / float64(clicks)
	}
	return m
}

func kindsOf(flags []ads.Flag) []ads.FlagKind {
	kinds := make([]ads.FlagKind, len(flags))
	for i, f := range flags {
		kinds[i] = f.Kind
	}
	return kinds
}

func TestRecommend_MaxProfitableBidFormula(t *testing.T) {
	// Arrange - 10% conversion at $5 blended royalty and 50% ACoS
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 1000, 20, 2, 8.00, floatPtr(0.80)),
	}

	// Act
	result := Recommend(targets, Settings{TargetACOS: 0.50, BlendedRoyalty: 5.00})

	// Assert
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	require.NotNil(t, rec.MaxProfitableBid)
	assert.InDelta(t, 1.00, *rec.MaxProfitableBid, 0.001)
	assert.Equal(t, WithinRange, rec.Classification)
}

func TestRecommend_BidAboveProfitable(t *testing.T) {
	// Arrange - max bid is $0.50, current bid is $0.80
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 1000, 20, 1, 8.00, floatPtr(0.80)),
	}

	// Act
	result := Recommend(targets, Settings{TargetACOS: 0.50, BlendedRoyalty: 5.00})

	// Assert
	rec := result.Recommendations[0]
	assert.Equal(t, AboveProfitable, rec.Classification)
	require.Len(t, result.Flags, 1)
	assert.Equal(t, ads.FlagBidAboveProfitable, result.Flags[0].Kind)
	assert.Equal(t, ads.SeverityWarning, result.Flags[0].Severity)
	assert.Equal(t, "Current bid $0.80 exceeds max profitable bid $0.50 at 50% ACoS target", result.Flags[0].Message)
}

func TestRecommend_BidBelowRange(t *testing.T) {
	// Arrange - max bid is $2.00, current bid under half of it
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 1000, 10, 2, 3.00, floatPtr(0.75)),
	}

	// Act
	result := Recommend(targets, Settings{TargetACOS: 0.50, BlendedRoyalty: 5.00})

	// Assert
	rec := result.Recommendations[0]
	require.NotNil(t, rec.MaxProfitableBid)
	assert.InDelta(t, 2.00, *rec.MaxProfitableBid, 0.001)
	assert.Equal(t, BelowRange, rec.Classification)
	require.Len(t, result.Flags, 1)
	assert.Equal(t, ads.FlagBidBelowRange, result.Flags[0].Kind)
}

func TestRecommend_ClassificationBoundaries(t *testing.T) {
	// 25% conversion at $5 blended royalty and 50% ACoS: max bid is
	// exactly $2.50, below-range cutoff exactly $1.25. A bid at the max
	// is still within range; above is strict. A bid at half the max is
	// still within range; below is strict.
	tests := []struct {
		name string
		bid  float64
		want Classification
	}{
		{"at max profitable bid", 2.50, WithinRange},
		{"one cent above max", 2.51, AboveProfitable},
		{"at half of max", 1.25, WithinRange},
		{"one cent below half", 1.24, BelowRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			targets := []aggregate.TargetMetrics{
				makeTarget("Product", "B01K1T4U5U", 1000, 20, 5, 8.00, floatPtr(tt.bid)),
			}

			// Act
			result := Recommend(targets, Settings{TargetACOS: 0.50, BlendedRoyalty: 5.00})

			// Assert
			rec := result.Recommendations[0]
			require.NotNil(t, rec.MaxProfitableBid)
			assert.InDelta(t, 2.50, *rec.MaxProfitableBid, 0.001)
			assert.Equal(t, tt.want, rec.Classification)
		})
	}
}

func TestRecommend_NoConversionsNoClassification(t *testing.T) {
	// Arrange - clicks but no orders
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 500, 8, 0, 3.20, floatPtr(0.60)),
	}

	// Act
	result := Recommend(targets, Settings{})

	// Assert
	rec := result.Recommendations[0]
	assert.Nil(t, rec.MaxProfitableBid)
	assert.Equal(t, Unclassified, rec.Classification)
	assert.Equal(t, []ads.FlagKind{ads.FlagNoConversions}, kindsOf(result.Flags))
	assert.Equal(t, "8 clicks but 0 orders — no conversion data yet. Consider lowering bid or pausing if trend continues.", result.Flags[0].Message)
}

func TestRecommend_NoBidNoClassification(t *testing.T) {
	// Arrange - converting target without a configured bid
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 1000, 20, 2, 8.00, nil),
	}

	// Act
	result := Recommend(targets, Settings{})

	// Assert
	rec := result.Recommendations[0]
	require.NotNil(t, rec.MaxProfitableBid)
	assert.Equal(t, Unclassified, rec.Classification)
}

func TestRecommend_ZeroClicksIsNotADivisionError(t *testing.T) {
	// Arrange
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 40, 0, 0, 0, floatPtr(0.45)),
	}

	// Act
	result := Recommend(targets, Settings{})

	// Assert
	assert.Zero(t, result.Recommendations[0].ConversionRate)
	assert.Nil(t, result.Recommendations[0].MaxProfitableBid)
}

func TestRecommend_HighSpendNoOrders(t *testing.T) {
	// Arrange - spend over the threshold with zero orders
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 2000, 15, 0, 6.50, floatPtr(0.45)),
	}

	// Act
	result := Recommend(targets, Settings{HighSpendFlag: 5.00})

	// Assert - co-occurs with no_conversions, both emitted
	kinds := kindsOf(result.Flags)
	assert.Contains(t, kinds, ads.FlagHighSpendNoOrders)
	assert.Contains(t, kinds, ads.FlagNoConversions)
	for _, f := range result.Flags {
		if f.Kind == ads.FlagHighSpendNoOrders {
			assert.Equal(t, "$6.50 spent with 0 orders", f.Message)
			assert.Equal(t, ads.SeverityWarning, f.Severity)
		}
	}
}

func TestRecommend_UnderservingProductTarget(t *testing.T) {
	// Arrange - product target barely served
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 4, 1, 0, 0.40, floatPtr(0.30)),
	}

	// Act
	result := Recommend(targets, Settings{LowImpressions: 10})

	// Assert
	kinds := kindsOf(result.Flags)
	assert.Contains(t, kinds, ads.FlagUnderserving)
	for _, f := range result.Flags {
		if f.Kind == ads.FlagUnderserving {
			assert.Equal(t, "Only 4 impressions (bid may be too low)", f.Message)
		}
	}
}

func TestRecommend_ZeroImpressionsKeyword(t *testing.T) {
	// Arrange - keyword target that never served
	targets := []aggregate.TargetMetrics{
		makeTarget("Manual", "ascension book", 0, 0, 0, 0, floatPtr(0.35)),
	}

	// Act
	result := Recommend(targets, Settings{})

	// Assert - zero_impressions and no_data co-occur
	kinds := kindsOf(result.Flags)
	assert.Contains(t, kinds, ads.FlagZeroImpressions)
	assert.Contains(t, kinds, ads.FlagNoData)
	for _, f := range result.Flags {
		if f.Kind == ads.FlagZeroImpressions {
			assert.Equal(t, "Zero impressions — bid ($0.35) may be too low", f.Message)
		}
	}
}

func TestRecommend_ZeroActivityConfiguredTarget(t *testing.T) {
	// Arrange - configured target absent from the export entirely
	silent := aggregate.TargetMetrics{
		Campaign:   "Product",
		Key:        ads.ParseTargetingKey("B085RW9VNL", ""),
		Title:      "Untethered Soul",
		Bid:        floatPtr(0.45),
		Configured: true,
		Observed:   false,
	}

	// Act
	result := Recommend([]aggregate.TargetMetrics{silent}, Settings{})

	// Assert - one inactivity note, not no_data noise
	require.Len(t, result.Flags, 1)
	assert.Equal(t, ads.FlagZeroActivity, result.Flags[0].Kind)
	assert.Equal(t, "Untethered Soul (B085RW9VNL): No activity this week — not appearing in search term data", result.Flags[0].Message)
}

func TestRecommend_OrderedBySpendDescending(t *testing.T) {
	// Arrange
	targets := []aggregate.TargetMetrics{
		makeTarget("A", "cheap", 100, 1, 0, 0.50, nil),
		makeTarget("A", "pricey", 100, 1, 0, 4.00, nil),
		makeTarget("A", "middle", 100, 1, 0, 2.00, nil),
	}

	// Act
	result := Recommend(targets, Settings{})

	// Assert
	require.Len(t, result.Recommendations, 3)
	assert.Equal(t, "pricey", result.Recommendations[0].Key.Text)
	assert.Equal(t, "middle", result.Recommendations[1].Key.Text)
	assert.Equal(t, "cheap", result.Recommendations[2].Key.Text)
}

func TestRecommend_InvalidTargetACOSFallsBack(t *testing.T) {
	// Arrange - a zero ACoS target would divide by zero
	targets := []aggregate.TargetMetrics{
		makeTarget("Product", "B01K1T4U5U", 1000, 20, 2, 8.00, floatPtr(0.80)),
	}

	// Act
	result := Recommend(targets, Settings{TargetACOS: 0, BlendedRoyalty: 5.00})

	// Assert - falls back to the 0.50 default
	require.NotNil(t, result.Recommendations[0].MaxProfitableBid)
	assert.InDelta(t, 1.00, *result.Recommendations[0].MaxProfitableBid, 0.001)
}
