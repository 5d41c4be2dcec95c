package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
)

// Repository appends and queries audit entries. There is deliberately no
// update or delete in this contract.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, params listEntriesParams) ([]models.AuditEntry, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listEntriesParams struct {
	ActorID *uuid.UUID
	Action  *enums.AuditAction
	// From is inclusive, To exclusive. Callers expand inclusive calendar
	// dates into these instants.
	From *time.Time
	To   *time.Time
	// HourFrom/HourTo bound the local hour-of-day within each day of the
	// range, in the named timezone.
	HourFrom *int
	HourTo   *int
	Timezone string
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listEntriesParams) ([]models.AuditEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if params.ActorID != nil {
		query = query.Where("actor_id = ?", *params.ActorID)
	}
	if params.Action != nil {
		query = query.Where("action = ?", params.Action.String())
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at < ?", *params.To)
	}
	if params.HourFrom != nil && params.HourTo != nil {
		tz := params.Timezone
		if tz == "" {
			tz = "UTC"
		}
		query = query.Where(
			"EXTRACT(HOUR FROM created_at AT TIME ZONE ?) BETWEEN ? AND ?",
			tz, *params.HourFrom, *params.HourTo,
		)
	}
	if params.Cursor != nil {
		id, err := strconv.ParseInt(params.Cursor.Key, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor key %q: %w", params.Cursor.Key, err)
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, id,
		)
	}

	var entries []models.AuditEntry
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	// The cursor is the last row handed back, never the peeked buffer row:
	// the strict predicate above resumes immediately after it.
	if len(entries) > normalized {
		entries = entries[:normalized]
		last := entries[len(entries)-1]
		return entries, &pagination.Cursor{
			CreatedAt: last.CreatedAt,
			Key:       strconv.FormatInt(last.ID, 10),
		}, nil
	}
	return entries, nil, nil
}
