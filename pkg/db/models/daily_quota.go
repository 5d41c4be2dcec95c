package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyQuota mirrors the redis mutation counter for reporting. Keyed by
// (actor, calendar day); the count only ever grows and rows simply stop
// being read once the day rolls over.
type DailyQuota struct {
	ActorID   uuid.UUID `gorm:"column:actor_id;type:uuid;primaryKey"`
	Day       string    `gorm:"column:day;primaryKey"`
	Count     int       `gorm:"column:count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ReturnRecord is an append-only trace of a sale reversal, used to bound how
// many returns an actor may perform in a rolling window.
type ReturnRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID    uuid.UUID `gorm:"column:sale_id;type:uuid;not null;index"`
	ActorID   uuid.UUID `gorm:"column:actor_id;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}
