package reconcile

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/balcaopos/balcao-backend/pkg/db/models"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
)

// batchState is the in-memory view of the catalog a single batch runs
// against. Items created mid-batch are registered so later rows in the same
// file match them instead of creating duplicates.
type batchState struct {
	items []*models.InventoryItem

	byMergeKey map[string]*models.InventoryItem
	byFullKey  map[string]*models.InventoryItem
	skus       map[string]struct{}

	categoriesByName map[string]*models.Category
	categoryNames    map[uuid.UUID]string
}

func loadState(ctx context.Context, repo Repository) (*batchState, error) {
	state := &batchState{
		byMergeKey:       make(map[string]*models.InventoryItem),
		byFullKey:        make(map[string]*models.InventoryItem),
		skus:             make(map[string]struct{}),
		categoriesByName: make(map[string]*models.Category),
		categoryNames:    make(map[uuid.UUID]string),
	}

	categories, err := repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load categories")
	}
	for i := range categories {
		category := &categories[i]
		state.categoriesByName[normalizeCategory(category.Name)] = category
		state.categoryNames[category.ID] = category.Name
	}

	items, err := repo.ListItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
	}
	for i := range items {
		state.items = append(state.items, &items[i])
		state.remember(&items[i])
	}
	return state, nil
}

func (s *batchState) categoryName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return s.categoryNames[*id]
}

// ensureCategory resolves a category name to an id, creating the category on
// first sight. A blank name means no category.
func (s *batchState) ensureCategory(ctx context.Context, repo Repository, name string) (*uuid.UUID, error) {
	key := normalizeCategory(name)
	if key == "" {
		return nil, nil
	}
	if existing, ok := s.categoriesByName[key]; ok {
		id := existing.ID
		return &id, nil
	}

	category := &models.Category{ID: uuid.New(), Name: strings.TrimSpace(name)}
	if err := repo.CreateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	s.categoriesByName[key] = category
	s.categoryNames[category.ID] = category.Name
	id := category.ID
	return &id, nil
}

func (s *batchState) remember(item *models.InventoryItem) {
	category := s.categoryName(item.CategoryID)
	s.byMergeKey[mergeKey(item.Name, item.Unit, category)] = item
	s.byFullKey[fullKey(item.Name, item.Unit, item.Price, category)] = item
	s.skus[item.SKU] = struct{}{}
}

func (s *batchState) forget(item *models.InventoryItem) {
	category := s.categoryName(item.CategoryID)
	delete(s.byMergeKey, mergeKey(item.Name, item.Unit, category))
	delete(s.byFullKey, fullKey(item.Name, item.Unit, item.Price, category))
	delete(s.skus, item.SKU)
}

func (s *batchState) skuTaken(sku string) bool {
	_, ok := s.skus[sku]
	return ok
}
