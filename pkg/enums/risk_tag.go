package enums

import "fmt"

// RiskTag is a heuristic label attached to an audit entry for human review.
// Tags never block the underlying action.
type RiskTag string

const (
	RiskTagHighDiscount RiskTag = "high_discount"
	RiskTagOffHours     RiskTag = "off_hours"
	RiskTagManyReturns  RiskTag = "many_returns"
	RiskTagBulkDelete   RiskTag = "bulk_delete"
	RiskTagPriceDrop    RiskTag = "price_drop"
)

var validRiskTags = []RiskTag{
	RiskTagHighDiscount,
	RiskTagOffHours,
	RiskTagManyReturns,
	RiskTagBulkDelete,
	RiskTagPriceDrop,
}

// String implements fmt.Stringer.
func (r RiskTag) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RiskTag.
func (r RiskTag) IsValid() bool {
	for _, candidate := range validRiskTags {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRiskTag converts raw input into a RiskTag.
func ParseRiskTag(value string) (RiskTag, error) {
	for _, candidate := range validRiskTags {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid risk tag %q", value)
}
