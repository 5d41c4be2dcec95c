package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
)

type returnStore interface {
	WithTx(tx *gorm.DB) Repository
	CreateReturn(ctx context.Context, record *models.ReturnRecord) error
	CountReturnsSince(ctx context.Context, actorID uuid.UUID, since time.Time) (int64, error)
}

// ReturnLimiter bounds sale reversals: at most the configured number per
// actor in the trailing window, and only for sales the same actor made
// earlier the same calendar day.
type ReturnLimiter interface {
	Allow(ctx context.Context, actorID uuid.UUID, sale *models.Sale, now time.Time) error
	PriorReturns(ctx context.Context, actorID uuid.UUID, now time.Time) (int, error)
	RecordReturn(ctx context.Context, tx *gorm.DB, actorID, saleID uuid.UUID) error
}

type returnLimiter struct {
	repo     returnStore
	cfg      config.QuotaConfig
	location *time.Location
}

// NewReturnLimiter builds the return-window limiter.
func NewReturnLimiter(repo Repository, cfg config.QuotaConfig, location *time.Location) (ReturnLimiter, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if location == nil {
		location = time.UTC
	}
	return &returnLimiter{repo: repo, cfg: cfg, location: location}, nil
}

func (l *returnLimiter) Allow(ctx context.Context, actorID uuid.UUID, sale *models.Sale, now time.Time) error {
	if sale == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if sale.ActorID != actorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "returns are limited to the actor's own sales")
	}
	if !sameLocalDay(sale.CreatedAt, now, l.location) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "returns are limited to sales made earlier the same day")
	}

	prior, err := l.PriorReturns(ctx, actorID, now)
	if err != nil {
		return err
	}
	if prior >= l.cfg.ReturnWindowLimit {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded,
			fmt.Sprintf("limit of %d returns per %s reached", l.cfg.ReturnWindowLimit, l.cfg.ReturnWindow))
	}
	return nil
}

// PriorReturns counts the actor's returns in the trailing window, before the
// current one is recorded. The risk classifier feeds on the same number.
func (l *returnLimiter) PriorReturns(ctx context.Context, actorID uuid.UUID, now time.Time) (int, error) {
	since := now.Add(-l.cfg.ReturnWindow)
	count, err := l.repo.CountReturnsSince(ctx, actorID, since)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count recent returns")
	}
	return int(count), nil
}

func (l *returnLimiter) RecordReturn(ctx context.Context, tx *gorm.DB, actorID, saleID uuid.UUID) error {
	record := &models.ReturnRecord{SaleID: saleID, ActorID: actorID}
	if err := l.repo.WithTx(tx).CreateReturn(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record sale return")
	}
	return nil
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}
