package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
)

// Repository manages persistence for sales.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	Save(ctx context.Context, sale *models.Sale) error
	ListByActor(ctx context.Context, actorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Sale, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).Preload("Items").First(&sale, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

func (r *repositoryImpl) Save(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Save(sale).Error
}

func (r *repositoryImpl) ListByActor(ctx context.Context, actorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Preload("Items").
		Where("actor_id = ?", actorID)
	if cursor != nil {
		query = query.Where("created_at < ?", cursor.CreatedAt)
	}

	var sales []models.Sale
	err := query.Order("created_at DESC").Limit(pagination.NormalizeLimit(limit)).Find(&sales).Error
	return sales, err
}
