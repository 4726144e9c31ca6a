package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/internal/replenishment"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

const (
	dateLayout    = "2006-01-02"
	maxNotesChars = 2000
)

type createItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Size      string `json:"size" validate:"max=32"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createReplenishmentRequest struct {
	ShopID           uuid.UUID           `json:"shop_id" validate:"required"`
	DCID             uuid.UUID           `json:"dc_id" validate:"required"`
	Items            []createItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes            *string             `json:"notes" validate:"omitempty,max=2000"`
	ExpectedDelivery *string             `json:"expected_delivery" validate:"omitempty,datetime=2006-01-02"`
}

type fulfillmentLine struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0"`
}

type advanceStatusRequest struct {
	Status       string            `json:"status" validate:"required"`
	Notes        *string           `json:"notes" validate:"omitempty,max=2000"`
	Fulfillments []fulfillmentLine `json:"fulfillments" validate:"omitempty,dive"`
}

type recordFulfillmentRequest struct {
	Fulfillments []fulfillmentLine `json:"fulfillments" validate:"required,min=1,dive"`
}

type replenishmentItemResponse struct {
	ID                uuid.UUID `json:"id"`
	ProductID         string    `json:"product_id"`
	Size              string    `json:"size"`
	QuantityRequested int       `json:"quantity_requested"`
	QuantityFulfilled int       `json:"quantity_fulfilled"`
}

type statusLogResponse struct {
	Sequence   int                        `json:"sequence"`
	FromStatus *enums.ReplenishmentStatus `json:"from_status"`
	ToStatus   enums.ReplenishmentStatus  `json:"to_status"`
	ChangedBy  *uuid.UUID                 `json:"changed_by,omitempty"`
	Notes      *string                    `json:"notes,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

type replenishmentResponse struct {
	ID               uuid.UUID                   `json:"id"`
	ClientID         uuid.UUID                   `json:"client_id"`
	ShopID           uuid.UUID                   `json:"shop_id"`
	DCID             uuid.UUID                   `json:"dc_id"`
	RequestedBy      *uuid.UUID                  `json:"requested_by,omitempty"`
	Status           enums.ReplenishmentStatus   `json:"status"`
	AllowedNext      []enums.ReplenishmentStatus `json:"allowed_next"`
	Notes            *string                     `json:"notes,omitempty"`
	ExpectedDelivery *string                     `json:"expected_delivery,omitempty"`
	ReceivedAt       *time.Time                  `json:"received_at,omitempty"`
	TotalItems       int                         `json:"total_items"`
	Items            []replenishmentItemResponse `json:"items"`
	StatusLog        []statusLogResponse         `json:"status_log"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (p createReplenishmentRequest) toInput(changedBy *uuid.UUID) (replenishment.CreateInput, error) {
	in := replenishment.CreateInput{
		ShopID:      p.ShopID,
		DCID:        p.DCID,
		RequestedBy: changedBy,
		Notes:       p.Notes,
		Items:       make([]replenishment.ItemInput, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		in.Items = append(in.Items, replenishment.ItemInput{
			ProductID:         item.ProductID,
			Size:              item.Size,
			QuantityRequested: item.Quantity,
		})
	}
	if p.ExpectedDelivery != nil {
		day, err := time.Parse(dateLayout, *p.ExpectedDelivery)
		if err != nil {
			return in, err
		}
		in.ExpectedDelivery = &day
	}
	return in, nil
}

// fulfillmentMap rejects an item listed twice rather than guessing which wins.
func fulfillmentMap(lines []fulfillmentLine) (map[uuid.UUID]int, *uuid.UUID) {
	if len(lines) == 0 {
		return nil, nil
	}
	out := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if _, dup := out[line.ItemID]; dup {
			id := line.ItemID
			return nil, &id
		}
		out[line.ItemID] = line.Quantity
	}
	return out, nil
}

func toReplenishmentResponse(req *models.ReplenishmentRequest) replenishmentResponse {
	out := replenishmentResponse{
		ID:          req.ID,
		ClientID:    req.ClientID,
		ShopID:      req.ShopID,
		DCID:        req.DCID,
		RequestedBy: req.RequestedBy,
		Status:      req.Status,
		AllowedNext: replenishment.AllowedNext(req.Status),
		Notes:       req.Notes,
		ReceivedAt:  req.ReceivedAt,
		TotalItems:  req.TotalItems,
		Items:       make([]replenishmentItemResponse, 0, len(req.Items)),
		StatusLog:   make([]statusLogResponse, 0, len(req.StatusLog)),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
	if out.AllowedNext == nil {
		out.AllowedNext = []enums.ReplenishmentStatus{}
	}
	if req.ExpectedDelivery != nil {
		day := req.ExpectedDelivery.UTC().Format(dateLayout)
		out.ExpectedDelivery = &day
	}
	for _, item := range req.Items {
		out.Items = append(out.Items, replenishmentItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			Size:              item.Size,
			QuantityRequested: item.QuantityRequested,
			QuantityFulfilled: item.QuantityFulfilled,
		})
	}
	for _, entry := range req.StatusLog {
		out.StatusLog = append(out.StatusLog, statusLogResponse{
			Sequence:   entry.Sequence,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			ChangedBy:  entry.ChangedBy,
			Notes:      entry.Notes,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}
