// Package risk flags suspicious mutations for human review. Classification
// is a pure function: no I/O, no clocks, no storage. Every rule is
// independent and additive, so extending the set means adding a rule, not
// reworking control flow.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// Thresholds for the heuristic rules. Tags flag for review, they never block.
var (
	highDiscountRatio = decimal.NewFromFloat(0.15)
	priceDropRatio    = decimal.NewFromFloat(0.3)
)

const (
	openingHour = 6
	closingHour = 22

	manyReturnsFloor = 2
	bulkDeleteFloor  = 5
)

// Context carries the facts a rule needs beyond the action payload itself.
type Context struct {
	// LocalTime is the action's wall-clock time in the store's timezone.
	LocalTime time.Time
	// BatchSize is how many entities the enclosing request deletes; 1 for
	// single deletes, 0 when the action is not a delete.
	BatchSize int
	// PriorReturns counts the actor's sale returns in the trailing two-day
	// window, before the current one is recorded.
	PriorReturns int
}

// Classify maps an action, its typed detail, and an optional prior snapshot
// to zero or more risk tags.
func Classify(action enums.AuditAction, detail any, prior *details.ProductSnapshot, ctx Context) []enums.RiskTag {
	var tags []enums.RiskTag

	if action == enums.AuditActionSaleCreate {
		if sale, ok := detail.(*details.Sale); ok && excessiveDiscount(sale) {
			tags = append(tags, enums.RiskTagHighDiscount)
		}
	}

	if action == enums.AuditActionSaleCreate || action == enums.AuditActionSaleReturn {
		if hour := ctx.LocalTime.Hour(); hour < openingHour || hour > closingHour {
			tags = append(tags, enums.RiskTagOffHours)
		}
	}

	if action == enums.AuditActionSaleReturn && ctx.PriorReturns >= manyReturnsFloor {
		tags = append(tags, enums.RiskTagManyReturns)
	}

	if action == enums.AuditActionDeleteProduct || action == enums.AuditActionUserDelete {
		if ctx.BatchSize >= bulkDeleteFloor {
			tags = append(tags, enums.RiskTagBulkDelete)
		}
	}

	if action == enums.AuditActionUpdateProduct && prior != nil {
		if update, ok := detail.(*details.ProductUpdate); ok && steepPriceDrop(update, prior) {
			tags = append(tags, enums.RiskTagPriceDrop)
		}
	}

	return tags
}

// excessiveDiscount reports whether the discount exceeds 15% of the subtotal.
// Exactly 15% is allowed.
func excessiveDiscount(sale *details.Sale) bool {
	if !sale.Subtotal.IsPositive() {
		return false
	}
	return sale.Discount.GreaterThan(sale.Subtotal.Mul(highDiscountRatio))
}

// steepPriceDrop reports whether the new price sits more than 30% below the
// prior one. Exactly 30% is allowed.
func steepPriceDrop(update *details.ProductUpdate, prior *details.ProductSnapshot) bool {
	if update.Price == nil || !prior.Price.IsPositive() {
		return false
	}
	drop := prior.Price.Sub(*update.Price)
	return drop.GreaterThan(prior.Price.Mul(priceDropRatio))
}
