package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale captures one completed checkout.
type Sale struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   uuid.UUID       `gorm:"column:actor_id;type:uuid;not null;index"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:decimal(12,2);not null"`
	Discount  decimal.Decimal `gorm:"column:discount;type:decimal(12,2);not null;default:0"`
	Total     decimal.Decimal `gorm:"column:total;type:decimal(12,2);not null"`
	Returned  bool            `gorm:"column:returned;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index"`

	Items []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SaleID    uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null"`
}
