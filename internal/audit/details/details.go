// Package details defines the typed payloads carried by audit entries. Each
// mutating action has a known shape here; entries serialize whichever payload
// applies into one common JSON envelope.
package details

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// Sale describes a completed sale.
type Sale struct {
	SaleID    uuid.UUID       `json:"sale_id"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// SaleReturn describes a reversed sale.
type SaleReturn struct {
	SaleID uuid.UUID       `json:"sale_id"`
	Total  decimal.Decimal `json:"total"`
}

// ProductCreate describes a newly created inventory item.
type ProductCreate struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ProductUpdate lists the fields an update touched. Price is set only when
// the update changed it.
type ProductUpdate struct {
	ItemID uuid.UUID        `json:"item_id"`
	Name   string           `json:"name"`
	Fields []string         `json:"fields"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

// ProductDelete describes a deleted item. BatchSize is the size of the delete
// request this one arrived in; single deletes carry 1.
type ProductDelete struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	BatchSize int       `json:"batch_size"`
}

// UserCreate describes a newly registered user.
type UserCreate struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
}

// UserDelete describes a removed user.
type UserDelete struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	BatchSize int       `json:"batch_size"`
}

// ProductSnapshot is the full prior state of an item, captured before a
// mutation touches it.
type ProductSnapshot struct {
	ItemID       uuid.UUID       `json:"item_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	Quantity     int             `json:"quantity"`
	ReorderLevel int             `json:"reorder_level"`
	Unit         enums.Unit      `json:"unit"`
}
