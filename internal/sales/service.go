package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/internal/inventory"
	"github.com/balcaopos/balcao-backend/internal/quota"
	"github.com/balcaopos/balcao-backend/internal/risk"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SaleLineInput is one requested line of a sale.
type SaleLineInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// CreateSaleInput describes a checkout request. Prices come from the catalog,
// never from the client.
type CreateSaleInput struct {
	Lines    []SaleLineInput
	Discount decimal.Decimal
}

// Service sells and reverses. Sales do not consume the daily mutation quota;
// returns are bounded by their own rolling-window limiter.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateSaleInput) (*models.Sale, []enums.RiskTag, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	Return(ctx context.Context, actor types.Actor, saleID uuid.UUID) (*models.Sale, []enums.RiskTag, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	items    inventory.Repository
	auditor  audit.Service
	limiter  quota.ReturnLimiter
	location *time.Location
	now      func() time.Time
}

// NewService builds the sales service.
func NewService(tx txRunner, repo Repository, items inventory.Repository, auditor audit.Service, limiter quota.ReturnLimiter, location *time.Location) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("return limiter required")
	}
	if location == nil {
		location = time.UTC
	}
	return &service{
		tx:       tx,
		repo:     repo,
		items:    items,
		auditor:  auditor,
		limiter:  limiter,
		location: location,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	if sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return sale, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateSaleInput) (*models.Sale, []enums.RiskTag, error) {
	if len(input.Lines) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "sale needs at least one line")
	}
	if input.Discount.IsNegative() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}

	now := s.now()
	sale := &models.Sale{ID: uuid.New(), ActorID: actor.ID, Discount: input.Discount}
	var tags []enums.RiskTag

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		itemRepo := s.items.WithTx(tx)
		subtotal := decimal.Zero
		for _, line := range input.Lines {
			item, err := itemRepo.FindByID(ctx, line.ItemID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale line item")
			}
			if item == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %s not found", line.ItemID))
			}
			if item.Quantity < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("item %q has %d on hand, %d requested", item.Name, item.Quantity, line.Quantity))
			}

			item.Quantity -= line.Quantity
			if err := itemRepo.Save(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			sale.Items = append(sale.Items, models.SaleItem{
				ID:        uuid.New(),
				SaleID:    sale.ID,
				ItemID:    item.ID,
				Quantity:  line.Quantity,
				UnitPrice: item.Price,
			})
			subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if input.Discount.GreaterThan(subtotal) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
		}
		sale.Subtotal = subtotal
		sale.Total = subtotal.Sub(input.Discount)
		if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale")
		}

		detail := &details.Sale{
			SaleID:    sale.ID,
			Subtotal:  sale.Subtotal,
			Discount:  sale.Discount,
			Total:     sale.Total,
			ItemCount: len(sale.Items),
		}
		tags = risk.Classify(enums.AuditActionSaleCreate, detail, nil, risk.Context{LocalTime: now.In(s.location)})
		_, err := s.auditor.WithTx(tx).Record(ctx, audit.RecordInput{
			ActorID:    &actor.ID,
			Action:     enums.AuditActionSaleCreate,
			EntityType: "sale",
			EntityID:   sale.ID.String(),
			Detail:     detail,
			Provenance: audit.Provenance{SourceAddr: actor.SourceAddr, ClientAgent: actor.ClientAgent},
			RiskTags:   tags,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sale, tags, nil
}

func (s *service) Return(ctx context.Context, actor types.Actor, saleID uuid.UUID) (*models.Sale, []enums.RiskTag, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	if sale == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if sale.Returned {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale already returned")
	}

	now := s.now()
	if err := s.limiter.Allow(ctx, actor.ID, sale, now); err != nil {
		return nil, nil, err
	}
	priorReturns, err := s.limiter.PriorReturns(ctx, actor.ID, now)
	if err != nil {
		return nil, nil, err
	}

	tags := risk.Classify(enums.AuditActionSaleReturn, &details.SaleReturn{SaleID: sale.ID, Total: sale.Total}, nil, risk.Context{
		LocalTime:    now.In(s.location),
		PriorReturns: priorReturns,
	})

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		itemRepo := s.items.WithTx(tx)
		for _, line := range sale.Items {
			item, err := itemRepo.FindByID(ctx, line.ItemID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load returned item")
			}
			// The item may have been deleted since the sale; its stock is
			// simply gone.
			if item == nil {
				continue
			}
			item.Quantity += line.Quantity
			if err := itemRepo.Save(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock returned item")
			}
		}

		sale.Returned = true
		if err := s.repo.WithTx(tx).Save(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark sale returned")
		}
		if err := s.limiter.RecordReturn(ctx, tx, actor.ID, sale.ID); err != nil {
			return err
		}

		_, err := s.auditor.WithTx(tx).Record(ctx, audit.RecordInput{
			ActorID:    &actor.ID,
			Action:     enums.AuditActionSaleReturn,
			EntityType: "sale",
			EntityID:   sale.ID.String(),
			Detail:     &details.SaleReturn{SaleID: sale.ID, Total: sale.Total},
			Provenance: audit.Provenance{SourceAddr: actor.SourceAddr, ClientAgent: actor.ClientAgent},
			RiskTags:   tags,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sale, tags, nil
}
