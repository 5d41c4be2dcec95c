package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/api/middleware"
	"github.com/balcaopos/balcao-backend/api/responses"
	"github.com/balcaopos/balcao-backend/api/validators"
	"github.com/balcaopos/balcao-backend/internal/inventory"
	"github.com/balcaopos/balcao-backend/internal/reconcile"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/logger"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
)

type itemResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Barcode      *string         `json:"barcode,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	Quantity     int             `json:"quantity"`
	ReorderLevel int             `json:"reorder_level"`
	Unit         enums.Unit      `json:"unit"`
	Category     *categoryRef    `json:"category,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type categoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func toItemResponse(item *models.InventoryItem) itemResponse {
	out := itemResponse{
		ID:           item.ID,
		Name:         item.Name,
		SKU:          item.SKU,
		Barcode:      item.Barcode,
		Price:        item.Price,
		Cost:         item.Cost,
		Quantity:     item.Quantity,
		ReorderLevel: item.ReorderLevel,
		Unit:         item.Unit,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
	if item.Category != nil {
		out.Category = &categoryRef{ID: item.Category.ID, Name: item.Category.Name}
	}
	return out
}

type listResponse struct {
	Items      []itemResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type createItemRequest struct {
	Name         string           `json:"name" validate:"required"`
	SKU          *string          `json:"sku,omitempty"`
	Barcode      *string          `json:"barcode,omitempty"`
	Price        decimal.Decimal  `json:"price"`
	Cost         decimal.Decimal  `json:"cost"`
	Quantity     int              `json:"quantity" validate:"min=0"`
	ReorderLevel int              `json:"reorder_level" validate:"min=0"`
	Unit         string           `json:"unit" validate:"required"`
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
}

type updateItemRequest struct {
	Name         *string          `json:"name,omitempty"`
	Barcode      *string          `json:"barcode,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Quantity     *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
	ReorderLevel *int             `json:"reorder_level,omitempty" validate:"omitempty,min=0"`
	Unit         *string          `json:"unit,omitempty"`
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
}

type deleteItemsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type updateItemResponse struct {
	Item     itemResponse    `json:"item"`
	RiskTags []enums.RiskTag `json:"risk_tags"`
}

func ItemList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		items, next, err := svc.List(r.Context(), limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := listResponse{Items: make([]itemResponse, 0, len(items))}
		for i := range items {
			out.Items = append(out.Items, toItemResponse(&items[i]))
		}
		if next != nil {
			out.NextCursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, out)
	}
}

func ItemGet(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponse(item))
	}
}

func ItemCreate(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), actor, inventory.CreateItemInput{
			Name:         validators.SanitizeString(payload.Name, 300),
			SKU:          payload.SKU,
			Barcode:      payload.Barcode,
			Price:        payload.Price,
			Cost:         payload.Cost,
			Quantity:     payload.Quantity,
			ReorderLevel: payload.ReorderLevel,
			Unit:         payload.Unit,
			CategoryID:   payload.CategoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toItemResponse(item))
	}
}

func ItemUpdate(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, tags, err := svc.Update(r.Context(), actor, id, inventory.UpdateItemInput{
			Name:         payload.Name,
			Barcode:      payload.Barcode,
			Price:        payload.Price,
			Cost:         payload.Cost,
			Quantity:     payload.Quantity,
			ReorderLevel: payload.ReorderLevel,
			Unit:         payload.Unit,
			CategoryID:   payload.CategoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tags == nil {
			tags = []enums.RiskTag{}
		}
		responses.WriteSuccess(w, updateItemResponse{Item: toItemResponse(item), RiskTags: tags})
	}
}

// ItemBatchDelete removes one or more items in a single transaction.
func ItemBatchDelete(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload deleteItemsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ids, err := parseUUIDs(payload.IDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deleted, err := svc.Delete(r.Context(), actor, ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"deleted": deleted})
	}
}

type importRowRequest struct {
	Name         string           `json:"name"`
	SKU          *string          `json:"sku,omitempty"`
	Barcode      *string          `json:"barcode,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Quantity     *int             `json:"quantity,omitempty" validate:"omitempty,min=0"`
	ReorderLevel *int             `json:"reorder_level,omitempty" validate:"omitempty,min=0"`
	Unit         string           `json:"unit"`
	Category     *string          `json:"category,omitempty"`
}

type importRequest struct {
	Mode string             `json:"mode" validate:"required,oneof=merge reset"`
	Rows []importRowRequest `json:"rows" validate:"required,min=1,dive"`
}

// ItemImport runs a bulk file import through the reconciliation engine.
func ItemImport(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload importRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode, err := enums.ParseImportMode(payload.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid import mode"))
			return
		}

		rows := make([]reconcile.ImportRow, 0, len(payload.Rows))
		for _, row := range payload.Rows {
			rows = append(rows, reconcile.ImportRow{
				Name:         row.Name,
				SKU:          row.SKU,
				Barcode:      row.Barcode,
				Price:        row.Price,
				Cost:         row.Cost,
				Quantity:     row.Quantity,
				ReorderLevel: row.ReorderLevel,
				Unit:         row.Unit,
				Category:     row.Category,
			})
		}

		summary, err := svc.Import(r.Context(), actor, rows, mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
