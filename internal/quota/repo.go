package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
)

// Repository persists the reporting mirror of the daily counters and the
// append-only return records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, actorID uuid.UUID, day string, count int) error
	Get(ctx context.Context, actorID uuid.UUID, day string) (*models.DailyQuota, error)
	CreateReturn(ctx context.Context, record *models.ReturnRecord) error
	CountReturnsSince(ctx context.Context, actorID uuid.UUID, since time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a quota repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Upsert(ctx context.Context, actorID uuid.UUID, day string, count int) error {
	row := &models.DailyQuota{ActorID: actorID, Day: day, Count: count}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{"count": count}),
	}).Create(row).Error
}

func (r *repositoryImpl) Get(ctx context.Context, actorID uuid.UUID, day string) (*models.DailyQuota, error) {
	var row models.DailyQuota
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND day = ?", actorID, day).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) CreateReturn(ctx context.Context, record *models.ReturnRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) CountReturnsSince(ctx context.Context, actorID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRecord{}).
		Where("actor_id = ? AND created_at >= ?", actorID, since).
		Count(&count).Error
	return count, err
}
