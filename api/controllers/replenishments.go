package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/api/responses"
	"github.com/angelmondragon/replenish-backend/api/validators"
	"github.com/angelmondragon/replenish-backend/internal/replenishment"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/pagination"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

// ReplenishmentService is the subset of replenishment.Service the HTTP layer drives.
type ReplenishmentService interface {
	CreateRequest(ctx context.Context, sc scope.Client, in replenishment.CreateInput) (*models.ReplenishmentRequest, error)
	GetRequest(ctx context.Context, sc scope.Client, id uuid.UUID) (*models.ReplenishmentRequest, error)
	ListRequestsPage(ctx context.Context, sc scope.Client, filter replenishment.ListFilter, params pagination.Params) (*pagination.Page[models.ReplenishmentRequest], error)
	AdvanceStatus(ctx context.Context, sc scope.Client, in replenishment.AdvanceInput) (*models.ReplenishmentRequest, error)
	RecordFulfillment(ctx context.Context, sc scope.Client, requestID uuid.UUID, fulfillments map[uuid.UUID]int) (*models.ReplenishmentRequest, error)
}

type replenishmentPageResponse struct {
	Items      []replenishmentResponse `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

func CreateReplenishment(svc ReplenishmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createReplenishmentRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		for i := range payload.Items {
			payload.Items[i].ProductID = validators.SanitizeIdentifier(payload.Items[i].ProductID, 128)
			payload.Items[i].Size = validators.SanitizeIdentifier(payload.Items[i].Size, 32)
		}
		payload.Notes = validators.SanitizeOptional(payload.Notes, maxNotesChars)

		input, err := payload.toInput(sc.Actor())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "expected_delivery must be YYYY-MM-DD"))
			return
		}

		created, err := svc.CreateRequest(r.Context(), sc, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, toReplenishmentResponse(created))
	}
}

func GetReplenishment(svc ReplenishmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.GetRequest(r.Context(), sc, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReplenishmentResponse(req))
	}
}

// ListReplenishments serves one keyset page, filtered by shop_id, dc_id,
// status and active.
func ListReplenishments(svc ReplenishmentService, logg *logger.Logger, defaultLimit int) http.HandlerFunc {
	if defaultLimit <= 0 {
		defaultLimit = pagination.DefaultLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter replenishment.ListFilter
		if filter.ShopID, err = validators.ParseQueryUUID(r, "shop_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.DCID, err = validators.ParseQueryUUID(r, "dc_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Status, err = validators.ParseQueryStatus(r, "status"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.ActiveOnly, err = validators.ParseQueryBool(r, "active"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListRequestsPage(r.Context(), sc, filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := replenishmentPageResponse{
			Items:      make([]replenishmentResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			resp.Items = append(resp.Items, toReplenishmentResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func AdvanceReplenishmentStatus(svc ReplenishmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceStatusRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseReplenishmentStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status").
				WithDetails(map[string]any{"field": "status", "value": payload.Status}))
			return
		}
		fulfillments, dup := fulfillmentMap(payload.Fulfillments)
		if dup != nil {
			responses.WriteError(r.Context(), logg, w, duplicateItemErr(*dup))
			return
		}

		updated, err := svc.AdvanceStatus(r.Context(), sc, replenishment.AdvanceInput{
			RequestID:    id,
			NextStatus:   next,
			ChangedBy:    sc.Actor(),
			Notes:        validators.SanitizeOptional(payload.Notes, maxNotesChars),
			Fulfillments: fulfillments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReplenishmentResponse(updated))
	}
}

// RecordReplenishmentFulfillment overwrites per-item fulfilled quantities
// without changing status.
func RecordReplenishmentFulfillment(svc ReplenishmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := scopeFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordFulfillmentRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fulfillments, dup := fulfillmentMap(payload.Fulfillments)
		if dup != nil {
			responses.WriteError(r.Context(), logg, w, duplicateItemErr(*dup))
			return
		}

		updated, err := svc.RecordFulfillment(r.Context(), sc, id, fulfillments)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReplenishmentResponse(updated))
	}
}

func duplicateItemErr(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "item listed more than once").
		WithDetails(map[string]any{"field": "fulfillments", "item_id": id.String()})
}
