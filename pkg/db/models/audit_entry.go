package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// AuditEntry records one immutable, append-only trace of a mutating action.
// Entity references are by id only so the entry stays readable after the
// referenced row is deleted. The application never updates or deletes rows
// in this table.
type AuditEntry struct {
	ID            int64             `gorm:"column:id;primaryKey;autoIncrement"`
	ActorID       *uuid.UUID        `gorm:"column:actor_id;type:uuid;index"`
	Action        enums.AuditAction `gorm:"column:action;not null;index"`
	EntityType    string            `gorm:"column:entity_type;not null"`
	EntityID      string            `gorm:"column:entity_id;not null"`
	Detail        json.RawMessage   `gorm:"column:detail;type:jsonb;not null"`
	PriorSnapshot json.RawMessage   `gorm:"column:prior_snapshot;type:jsonb"`
	SourceAddr    string            `gorm:"column:source_addr"`
	ClientAgent   string            `gorm:"column:client_agent"`
	RiskTags      pq.StringArray    `gorm:"column:risk_tags;type:text[];not null;default:ARRAY[]::text[]"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}
