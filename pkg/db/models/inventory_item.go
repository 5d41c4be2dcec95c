package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// InventoryItem is a sellable catalog entry with its on-hand stock.
// SKU is globally unique; the name/unit/category triple is only kept unique
// by the reconciliation engine's matching logic, not by the schema.
type InventoryItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string          `gorm:"column:name;not null;index"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex"`
	Barcode      *string         `gorm:"column:barcode"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null"`
	Cost         decimal.Decimal `gorm:"column:cost;type:decimal(12,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null;default:0"`
	ReorderLevel int             `gorm:"column:reorder_level;not null;default:0"`
	Unit         enums.Unit      `gorm:"column:unit;not null;default:'each'"`
	CategoryID   *uuid.UUID      `gorm:"column:category_id;type:uuid;index"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}
