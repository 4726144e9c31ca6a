package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/api/responses"
	"github.com/angelmondragon/replenish-backend/api/validators"
	"github.com/angelmondragon/replenish-backend/internal/inventory"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

// InventoryService is the subset of inventory.Ledger exposed over HTTP.
type InventoryService interface {
	List(ctx context.Context, sc scope.Client, dcID uuid.UUID, lowStockOnly bool) ([]models.InventoryRecord, error)
	Upsert(ctx context.Context, sc scope.Client, in inventory.UpsertInput) (*models.InventoryRecord, error)
	Adjust(ctx context.Context, sc scope.Client, in inventory.AdjustInput) (*models.InventoryRecord, error)
}

type upsertInventoryRequest struct {
	ProductID         string `json:"product_id" validate:"required,max=128"`
	Size              string `json:"size" validate:"max=32"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

type adjustInventoryRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Size      string `json:"size" validate:"max=32"`
	Delta     int    `json:"delta" validate:"required"`
}

type inventoryResponse struct {
	ID                uuid.UUID `json:"id"`
	DCID              uuid.UUID `json:"dc_id"`
	ProductID         string    `json:"product_id"`
	Size              string    `json:"size"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toInventoryResponse(record models.InventoryRecord) inventoryResponse {
	return inventoryResponse{
		ID:                record.ID,
		DCID:              record.DCID,
		ProductID:         record.ProductID,
		Size:              record.Size,
		Quantity:          record.Quantity,
		LowStockThreshold: record.LowStockThreshold,
		LowStock:          record.IsLowStock(),
		UpdatedAt:         record.UpdatedAt,
	}
}

func ListInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dcID, err := validators.ParseURLUUID(r, "dcId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lowOnly, err := validators.ParseQueryBool(r, "low_stock")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.List(r.Context(), sc, dcID, lowOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]inventoryResponse, 0, len(records))
		for _, record := range records {
			out = append(out, toInventoryResponse(record))
		}
		responses.WriteSuccess(w, out)
	}
}

// UpsertInventory sets absolute levels for one (product, size) at a DC.
func UpsertInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dcID, err := validators.ParseURLUUID(r, "dcId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload upsertInventoryRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Upsert(r.Context(), sc, inventory.UpsertInput{
			DCID:              dcID,
			ProductID:         validators.SanitizeIdentifier(payload.ProductID, 128),
			Size:              validators.SanitizeIdentifier(payload.Size, 32),
			Quantity:          payload.Quantity,
			LowStockThreshold: payload.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInventoryResponse(*record))
	}
}

func AdjustInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dcID, err := validators.ParseURLUUID(r, "dcId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Adjust(r.Context(), sc, inventory.AdjustInput{
			DCID:      dcID,
			ProductID: validators.SanitizeIdentifier(payload.ProductID, 128),
			Size:      validators.SanitizeIdentifier(payload.Size, 32),
			Delta:     payload.Delta,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInventoryResponse(*record))
	}
}
