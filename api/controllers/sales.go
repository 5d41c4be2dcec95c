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
	"github.com/balcaopos/balcao-backend/internal/sales"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/logger"
)

type saleLineRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type createSaleRequest struct {
	Lines    []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount decimal.Decimal   `json:"discount"`
}

type saleItemResponse struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type saleResponse struct {
	ID        uuid.UUID          `json:"id"`
	ActorID   uuid.UUID          `json:"actor_id"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	Discount  decimal.Decimal    `json:"discount"`
	Total     decimal.Decimal    `json:"total"`
	Returned  bool               `json:"returned"`
	RiskTags  []enums.RiskTag    `json:"risk_tags,omitempty"`
	Items     []saleItemResponse `json:"items"`
	CreatedAt time.Time          `json:"created_at"`
}

func toSaleResponse(sale *models.Sale, tags []enums.RiskTag) saleResponse {
	out := saleResponse{
		ID:        sale.ID,
		ActorID:   sale.ActorID,
		Subtotal:  sale.Subtotal,
		Discount:  sale.Discount,
		Total:     sale.Total,
		Returned:  sale.Returned,
		RiskTags:  tags,
		Items:     make([]saleItemResponse, 0, len(sale.Items)),
		CreatedAt: sale.CreatedAt,
	}
	for _, item := range sale.Items {
		out.Items = append(out.Items, saleItemResponse{
			ItemID:    item.ItemID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}

// SaleCreate rings up a sale, pricing every line from the catalog.
func SaleCreate(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := sales.CreateSaleInput{Discount: payload.Discount}
		for _, line := range payload.Lines {
			itemID, err := uuid.Parse(line.ItemID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
				return
			}
			input.Lines = append(input.Lines, sales.SaleLineInput{ItemID: itemID, Quantity: line.Quantity})
		}

		sale, tags, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSaleResponse(sale, tags))
	}
}

func SaleGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "saleId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale id"))
			return
		}
		sale, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSaleResponse(sale, nil))
	}
}

// SaleReturn reverses a sale, restocking its lines. Clerks may only return
// their own same-day sales, inside the rolling window limit.
func SaleReturn(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "saleId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale id"))
			return
		}

		sale, tags, err := svc.Return(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSaleResponse(sale, tags))
	}
}
