package ads

// FlagKind enumerates the observations the analysis stages can attach
// to a target or search-term row.
type FlagKind string

const (
	// Drift detection.
	FlagExactMatchDrift     FlagKind = "exact_match_drift"
	FlagBroadMatchExpansion FlagKind = "broad_match_expansion"

	// Target performance.
	FlagHighSpendNoOrders FlagKind = "high_spend_no_orders"
	FlagUnderserving      FlagKind = "underserving"
	FlagZeroImpressions   FlagKind = "zero_impressions"
	FlagNoConversions     FlagKind = "no_conversions"
	FlagNoData            FlagKind = "no_data"
	FlagZeroActivity      FlagKind = "zero_activity"

	// Bid classification.
	FlagBidAboveProfitable FlagKind = "bid_above_profitable"
	FlagBidBelowRange      FlagKind = "bid_below_range"
)

// Severity of a flag.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Flag is a tagged observation. Several flags may attach to the same
// subject; emission order is stable within a stage. Impressions and
// Spend carry the numbers quoted in the message so display layers can
// rebuild it after title resolution.
type Flag struct {
	Kind        FlagKind
	Severity    Severity
	Campaign    string
	Target      string
	SearchTerm  string
	Message     string
	Impressions int
	Spend       float64
}
