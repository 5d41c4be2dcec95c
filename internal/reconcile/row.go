package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// ImportRow is one parsed line of a bulk inventory file. Every field other
// than Name may be absent. In merge mode an absent field leaves the stored
// value untouched; in reset mode absent numeric fields read as zero.
type ImportRow struct {
	Name         string
	SKU          *string
	Barcode      *string
	Price        *decimal.Decimal
	Cost         *decimal.Decimal
	Quantity     *int
	ReorderLevel *int
	Unit         string
	Category     *string
}

// normalizeName collapses internal whitespace and lowercases so that
// "  Arroz  Branco " and "arroz branco" resolve to the same identity.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// mergeKey identifies an item by name, unit and category. Price is left out
// on purpose: a price change alone must look like an update to an existing
// item, never like a new one.
func mergeKey(name string, unit enums.Unit, category string) string {
	return normalizeName(name) + "|" + unit.String() + "|" + normalizeCategory(category)
}

// fullKey adds the price to the identity. Reset mode matches on it, so a row
// whose only difference is price resolves to a remove plus an add.
func fullKey(name string, unit enums.Unit, price decimal.Decimal, category string) string {
	return normalizeName(name) + "|" + unit.String() + "|" + price.StringFixed(2) + "|" + normalizeCategory(category)
}
