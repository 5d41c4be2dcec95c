package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine reconciles a batch of import rows against the current inventory.
type Engine interface {
	Run(ctx context.Context, rows []ImportRow, mode enums.ImportMode) (*Summary, error)
}

type engine struct {
	tx   txRunner
	repo Repository
	now  func() time.Time
}

// NewEngine builds a reconciliation engine.
func NewEngine(tx txRunner, repo Repository) (Engine, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	return &engine{tx: tx, repo: repo, now: time.Now}, nil
}

// preparedRow is an ImportRow with its identity fields resolved: placeholder
// name assigned, unit normalized, category trimmed.
type preparedRow struct {
	ImportRow
	name     string
	unit     enums.Unit
	category string
}

// keyPrice is the price used for full-key matching. A blank price reads as
// zero, so a stored zero-price item and a blank-price row do match.
func (p preparedRow) keyPrice() decimal.Decimal {
	if p.Price != nil {
		return *p.Price
	}
	return decimal.Zero
}

func (e *engine) Run(ctx context.Context, rows []ImportRow, mode enums.ImportMode) (*Summary, error) {
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown import mode %q", mode))
	}

	summary := &Summary{Mode: mode}
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return e.run(ctx, e.repo.WithTx(tx), prepare(rows), mode, summary)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// prepare resolves row identities up front so that the delete pass and the
// upsert pass of a reset see the same keys. Rows with a blank name get a
// sequential placeholder rather than failing the batch.
func prepare(rows []ImportRow) []preparedRow {
	prepared := make([]preparedRow, 0, len(rows))
	for i, row := range rows {
		name := row.Name
		if normalizeName(name) == "" {
			name = fmt.Sprintf("Item %d", i+1)
		}
		category := ""
		if row.Category != nil {
			category = *row.Category
		}
		prepared = append(prepared, preparedRow{
			ImportRow: row,
			name:      name,
			unit:      enums.NormalizeUnit(row.Unit),
			category:  category,
		})
	}
	return prepared
}

func (e *engine) run(ctx context.Context, repo Repository, rows []preparedRow, mode enums.ImportMode, summary *Summary) error {
	state, err := loadState(ctx, repo)
	if err != nil {
		return err
	}

	if mode == enums.ImportModeReset {
		if err := e.removeAbsent(ctx, repo, rows, state, summary); err != nil {
			return err
		}
	}

	for _, row := range rows {
		var existing *models.InventoryItem
		if mode == enums.ImportModeMerge {
			existing = state.byMergeKey[mergeKey(row.name, row.unit, row.category)]
		} else {
			existing = state.byFullKey[fullKey(row.name, row.unit, row.keyPrice(), row.category)]
		}

		if existing == nil {
			if err := e.createItem(ctx, repo, row, state, summary); err != nil {
				return err
			}
			continue
		}
		if err := e.updateItem(ctx, repo, row, existing, mode, state, summary); err != nil {
			return err
		}
	}
	return nil
}

// removeAbsent deletes every stored item whose full key does not appear in
// the file. The file is the complete truth in reset mode.
func (e *engine) removeAbsent(ctx context.Context, repo Repository, rows []preparedRow, state *batchState, summary *Summary) error {
	fileKeys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		fileKeys[fullKey(row.name, row.unit, row.keyPrice(), row.category)] = struct{}{}
	}

	for _, item := range state.items {
		key := fullKey(item.Name, item.Unit, item.Price, state.categoryName(item.CategoryID))
		if _, ok := fileKeys[key]; ok {
			continue
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete item during reset")
		}
		summary.Removed++
		summary.RemovedItems = append(summary.RemovedItems, RemovedItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Unit:     item.Unit,
		})
		state.forget(item)
	}
	return nil
}

func (e *engine) createItem(ctx context.Context, repo Repository, row preparedRow, state *batchState, summary *Summary) error {
	categoryID, err := state.ensureCategory(ctx, repo, row.category)
	if err != nil {
		return err
	}

	item := &models.InventoryItem{
		ID:         uuid.New(),
		Name:       row.name,
		SKU:        e.resolveSKU(row, state),
		Barcode:    row.Barcode,
		Price:      row.keyPrice(),
		Unit:       row.unit,
		CategoryID: categoryID,
	}
	if row.Cost != nil {
		item.Cost = *row.Cost
	}
	if row.Quantity != nil {
		item.Quantity = *row.Quantity
	}
	if row.ReorderLevel != nil {
		item.ReorderLevel = *row.ReorderLevel
	}

	if err := repo.CreateItem(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create imported item")
	}
	state.remember(item)
	summary.Added++
	summary.AddedItems = append(summary.AddedItems, AddedItem{
		ID:       item.ID,
		Name:     item.Name,
		SKU:      item.SKU,
		Quantity: item.Quantity,
		Price:    item.Price,
	})
	return nil
}

func (e *engine) updateItem(ctx context.Context, repo Repository, row preparedRow, item *models.InventoryItem, mode enums.ImportMode, state *batchState, summary *Summary) error {
	change := UpdatedItem{
		ID:             item.ID,
		Name:           item.Name,
		QuantityBefore: item.Quantity,
		PriceBefore:    item.Price,
	}

	// Merge mode leaves blank fields untouched. Reset mode treats the file as
	// the complete truth, so blank numeric fields read as zero.
	if mode == enums.ImportModeReset {
		row.Quantity = intOrZero(row.Quantity)
		row.Cost = decimalOrZero(row.Cost)
		row.ReorderLevel = intOrZero(row.ReorderLevel)
	}

	if row.Quantity != nil {
		if item.Quantity != *row.Quantity {
			change.Fields = append(change.Fields, "quantity")
		}
		item.Quantity = *row.Quantity
	}
	// Price participates in the reset matching key, so a matched row always
	// agrees on price there; only merge mode may overwrite it.
	if mode == enums.ImportModeMerge && row.Price != nil {
		if !item.Price.Equal(*row.Price) {
			change.Fields = append(change.Fields, "price")
		}
		item.Price = *row.Price
	}
	if row.Cost != nil {
		if !item.Cost.Equal(*row.Cost) {
			change.Fields = append(change.Fields, "cost")
		}
		item.Cost = *row.Cost
	}
	if row.ReorderLevel != nil {
		if item.ReorderLevel != *row.ReorderLevel {
			change.Fields = append(change.Fields, "reorder_level")
		}
		item.ReorderLevel = *row.ReorderLevel
	}
	if row.Category != nil {
		categoryID, err := state.ensureCategory(ctx, repo, row.category)
		if err != nil {
			return err
		}
		if !uuidPtrEqual(item.CategoryID, categoryID) {
			change.Fields = append(change.Fields, "category")
		}
		item.CategoryID = categoryID
	}

	if len(change.Fields) == 0 {
		return nil
	}

	if err := repo.SaveItem(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update imported item")
	}
	change.QuantityAfter = item.Quantity
	change.PriceAfter = item.Price
	summary.Updated++
	summary.UpdatedItems = append(summary.UpdatedItems, change)
	return nil
}

// resolveSKU takes the row's code when present, synthesizes a time-based one
// otherwise, and suffixes either until it collides with nothing known.
func (e *engine) resolveSKU(row preparedRow, state *batchState) string {
	base := ""
	if row.SKU != nil {
		base = *row.SKU
	}
	if base == "" {
		base = fmt.Sprintf("SKU-%d", e.now().UnixMilli())
	}
	candidate := base
	for i := 2; state.skuTaken(candidate); i++ {
		candidate = base + "-" + strconv.Itoa(i)
	}
	return candidate
}

func intOrZero(v *int) *int {
	if v != nil {
		return v
	}
	zero := 0
	return &zero
}

func decimalOrZero(v *decimal.Decimal) *decimal.Decimal {
	if v != nil {
		return v
	}
	zero := decimal.Zero
	return &zero
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
