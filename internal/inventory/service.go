package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/internal/quota"
	"github.com/balcaopos/balcao-backend/internal/reconcile"
	"github.com/balcaopos/balcao-backend/internal/risk"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/metrics"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
	"github.com/balcaopos/balcao-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateItemInput describes a direct item creation.
type CreateItemInput struct {
	Name         string
	SKU          *string
	Barcode      *string
	Price        decimal.Decimal
	Cost         decimal.Decimal
	Quantity     int
	ReorderLevel int
	Unit         string
	CategoryID   *uuid.UUID
}

// UpdateItemInput patches an item. Absent fields stay untouched.
type UpdateItemInput struct {
	Name         *string
	Barcode      *string
	Price        *decimal.Decimal
	Cost         *decimal.Decimal
	Quantity     *int
	ReorderLevel *int
	Unit         *string
	CategoryID   *uuid.UUID
}

// Service runs every inventory mutation through the same pipeline: reserve a
// quota slot, apply the change, classify it, append the audit entry.
type Service interface {
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.InventoryItem, *pagination.Cursor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	Create(ctx context.Context, actor types.Actor, input CreateItemInput) (*models.InventoryItem, error)
	Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateItemInput) (*models.InventoryItem, []enums.RiskTag, error)
	Delete(ctx context.Context, actor types.Actor, ids []uuid.UUID) (int, error)
	Import(ctx context.Context, actor types.Actor, rows []reconcile.ImportRow, mode enums.ImportMode) (*reconcile.Summary, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	engine   reconcile.Engine
	auditor  audit.Service
	tracker  quota.Tracker
	location *time.Location
	metrics  *metrics.EngineMetrics
	now      func() time.Time
}

// NewService builds the inventory service.
func NewService(tx txRunner, repo Repository, engine reconcile.Engine, auditor audit.Service, tracker quota.Tracker, location *time.Location, engineMetrics *metrics.EngineMetrics) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("quota tracker required")
	}
	if location == nil {
		location = time.UTC
	}
	return &service{
		tx:       tx,
		repo:     repo,
		engine:   engine,
		auditor:  auditor,
		tracker:  tracker,
		location: location,
		metrics:  engineMetrics,
		now:      time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.InventoryItem, *pagination.Cursor, error) {
	if cursor != nil {
		if _, err := uuid.Parse(cursor.Key); err != nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed pagination cursor")
		}
	}
	items, next, err := s.repo.List(ctx, limit, cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list inventory")
	}
	return items, next, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	return item, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateItemInput) (*models.InventoryItem, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}

	sku := ""
	if input.SKU != nil {
		sku = *input.SKU
	}
	if sku == "" {
		sku = fmt.Sprintf("SKU-%d", s.now().UnixMilli())
	}
	if existing, err := s.repo.FindBySKU(ctx, sku); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check sku")
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("sku %q already in use", sku))
	}

	now := s.now()
	if err := s.tracker.Reserve(ctx, actor.ID, actor.Role, now); err != nil {
		return nil, err
	}

	item := &models.InventoryItem{
		ID:           uuid.New(),
		Name:         input.Name,
		SKU:          sku,
		Barcode:      input.Barcode,
		Price:        input.Price,
		Cost:         input.Cost,
		Quantity:     input.Quantity,
		ReorderLevel: input.ReorderLevel,
		Unit:         enums.NormalizeUnit(input.Unit),
		CategoryID:   input.CategoryID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create inventory item")
		}
		detail := &details.ProductCreate{
			ItemID:   item.ID,
			Name:     item.Name,
			SKU:      item.SKU,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
		tags := risk.Classify(enums.AuditActionCreateProduct, detail, nil, s.riskContext(now, 0, 0))
		_, err := s.auditor.WithTx(tx).Record(ctx, audit.RecordInput{
			ActorID:    &actor.ID,
			Action:     enums.AuditActionCreateProduct,
			EntityType: "inventory_item",
			EntityID:   item.ID.String(),
			Detail:     detail,
			Provenance: provenance(actor),
			RiskTags:   tags,
		})
		return err
	})
	if err != nil {
		s.releaseQuota(ctx, actor, now)
		return nil, err
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateItemInput) (*models.InventoryItem, []enums.RiskTag, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := s.tracker.Reserve(ctx, actor.ID, actor.Role, now); err != nil {
		return nil, nil, err
	}

	prior := snapshotOf(item)
	detail := applyPatch(item, input)
	if len(detail.Fields) == 0 {
		// Nothing changed; hand the slot back and skip the audit write.
		s.releaseQuota(ctx, actor, now)
		return item, nil, nil
	}

	tags := risk.Classify(enums.AuditActionUpdateProduct, detail, prior, s.riskContext(now, 0, 0))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update inventory item")
		}
		_, err := s.auditor.WithTx(tx).Record(ctx, audit.RecordInput{
			ActorID:    &actor.ID,
			Action:     enums.AuditActionUpdateProduct,
			EntityType: "inventory_item",
			EntityID:   item.ID.String(),
			Detail:     detail,
			Prior:      prior,
			Provenance: provenance(actor),
			RiskTags:   tags,
		})
		return err
	})
	if err != nil {
		s.releaseQuota(ctx, actor, now)
		return nil, nil, err
	}
	return item, tags, nil
}

// Delete removes the listed items. Deletions do not consume quota; a batch of
// five or more flags every entry with bulk_delete.
func (s *service) Delete(ctx context.Context, actor types.Actor, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one item id required")
	}

	now := s.now()
	deleted := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auditor := s.auditor.WithTx(tx)
		for _, id := range ids {
			item, err := repo.FindByID(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory item")
			}
			if item == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory item %s not found", id))
			}
			if err := repo.Delete(ctx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete inventory item")
			}

			detail := &details.ProductDelete{
				ItemID:    item.ID,
				Name:      item.Name,
				SKU:       item.SKU,
				BatchSize: len(ids),
			}
			tags := risk.Classify(enums.AuditActionDeleteProduct, detail, nil, s.riskContext(now, len(ids), 0))
			if _, err := auditor.Record(ctx, audit.RecordInput{
				ActorID:    &actor.ID,
				Action:     enums.AuditActionDeleteProduct,
				EntityType: "inventory_item",
				EntityID:   item.ID.String(),
				Detail:     detail,
				Prior:      snapshotOf(item),
				Provenance: provenance(actor),
				RiskTags:   tags,
			}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Import runs a reconciliation batch and appends exactly one audit entry for
// the whole file.
func (s *service) Import(ctx context.Context, actor types.Actor, rows []reconcile.ImportRow, mode enums.ImportMode) (*reconcile.Summary, error) {
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "import file has no rows")
	}

	now := s.now()
	if err := s.tracker.Reserve(ctx, actor.ID, actor.Role, now); err != nil {
		return nil, err
	}

	started := s.now()
	summary, err := s.engine.Run(ctx, rows, mode)
	if err != nil {
		s.releaseQuota(ctx, actor, now)
		return nil, err
	}
	s.metrics.ObserveImport(mode.String(), s.now().Sub(started))
	s.metrics.AddImportRows(mode.String(), "added", summary.Added)
	s.metrics.AddImportRows(mode.String(), "updated", summary.Updated)
	s.metrics.AddImportRows(mode.String(), "removed", summary.Removed)

	tags := risk.Classify(enums.AuditActionProductImport, summary, nil, s.riskContext(now, 0, 0))
	if _, err := s.auditor.Record(ctx, audit.RecordInput{
		ActorID:    &actor.ID,
		Action:     enums.AuditActionProductImport,
		EntityType: "inventory",
		EntityID:   "batch",
		Detail:     summary,
		Provenance: provenance(actor),
		RiskTags:   tags,
	}); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *service) riskContext(now time.Time, batchSize, priorReturns int) risk.Context {
	return risk.Context{
		LocalTime:    now.In(s.location),
		BatchSize:    batchSize,
		PriorReturns: priorReturns,
	}
}

// releaseQuota compensates a reservation whose mutation failed. The release
// itself failing only costs the actor one slot for the day.
func (s *service) releaseQuota(ctx context.Context, actor types.Actor, now time.Time) {
	_ = s.tracker.Release(ctx, actor.ID, actor.Role, now)
}

func provenance(actor types.Actor) audit.Provenance {
	return audit.Provenance{SourceAddr: actor.SourceAddr, ClientAgent: actor.ClientAgent}
}

func snapshotOf(item *models.InventoryItem) *details.ProductSnapshot {
	return &details.ProductSnapshot{
		ItemID:       item.ID,
		Name:         item.Name,
		SKU:          item.SKU,
		Price:        item.Price,
		Cost:         item.Cost,
		Quantity:     item.Quantity,
		ReorderLevel: item.ReorderLevel,
		Unit:         item.Unit,
	}
}

// applyPatch overwrites the supplied fields and reports what changed. A new
// price is echoed in the detail so the classifier can compare it against the
// prior snapshot.
func applyPatch(item *models.InventoryItem, input UpdateItemInput) *details.ProductUpdate {
	detail := &details.ProductUpdate{ItemID: item.ID, Name: item.Name}

	if input.Name != nil && *input.Name != item.Name {
		item.Name = *input.Name
		detail.Fields = append(detail.Fields, "name")
	}
	if input.Barcode != nil {
		if item.Barcode == nil || *item.Barcode != *input.Barcode {
			detail.Fields = append(detail.Fields, "barcode")
		}
		item.Barcode = input.Barcode
	}
	if input.Price != nil && !item.Price.Equal(*input.Price) {
		item.Price = *input.Price
		price := *input.Price
		detail.Price = &price
		detail.Fields = append(detail.Fields, "price")
	}
	if input.Cost != nil && !item.Cost.Equal(*input.Cost) {
		item.Cost = *input.Cost
		detail.Fields = append(detail.Fields, "cost")
	}
	if input.Quantity != nil && *input.Quantity != item.Quantity {
		item.Quantity = *input.Quantity
		detail.Fields = append(detail.Fields, "quantity")
	}
	if input.ReorderLevel != nil && *input.ReorderLevel != item.ReorderLevel {
		item.ReorderLevel = *input.ReorderLevel
		detail.Fields = append(detail.Fields, "reorder_level")
	}
	if input.Unit != nil {
		unit := enums.NormalizeUnit(*input.Unit)
		if unit != item.Unit {
			item.Unit = unit
			detail.Fields = append(detail.Fields, "unit")
		}
	}
	if input.CategoryID != nil {
		if item.CategoryID == nil || *item.CategoryID != *input.CategoryID {
			detail.Fields = append(detail.Fields, "category")
		}
		item.CategoryID = input.CategoryID
	}
	return detail
}
