package reconcile

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// Summary describes everything a batch changed. It is the only durable record
// of what a destructive reset removed, so the per-item lists are complete, not
// sampled.
type Summary struct {
	Mode    enums.ImportMode `json:"mode"`
	Added   int              `json:"added"`
	Updated int              `json:"updated"`
	Removed int              `json:"removed"`

	AddedItems   []AddedItem   `json:"added_items,omitempty"`
	UpdatedItems []UpdatedItem `json:"updated_items,omitempty"`
	RemovedItems []RemovedItem `json:"removed_items,omitempty"`
}

// AddedItem records a creation made by the batch.
type AddedItem struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// UpdatedItem records which fields a row overwrote on an existing item, with
// before/after values for quantity and price specifically.
type UpdatedItem struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Fields         []string        `json:"fields"`
	QuantityBefore int             `json:"quantity_before"`
	QuantityAfter  int             `json:"quantity_after"`
	PriceBefore    decimal.Decimal `json:"price_before"`
	PriceAfter     decimal.Decimal `json:"price_after"`
}

// RemovedItem captures an item's state just before a reset deleted it.
type RemovedItem struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Unit     enums.Unit      `json:"unit"`
}
