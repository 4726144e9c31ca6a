package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/replenish-backend/internal/replenishment"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/pagination"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

type stubReplenishmentService struct {
	created    replenishment.CreateInput
	advanced   replenishment.AdvanceInput
	fulfilled  map[uuid.UUID]int
	listFilter replenishment.ListFilter
	listParams pagination.Params
	scope      scope.Client
	result     *models.ReplenishmentRequest
	page       *pagination.Page[models.ReplenishmentRequest]
	err        error
}

func (s *stubReplenishmentService) CreateRequest(_ context.Context, sc scope.Client, in replenishment.CreateInput) (*models.ReplenishmentRequest, error) {
	s.scope, s.created = sc, in
	return s.result, s.err
}

func (s *stubReplenishmentService) GetRequest(_ context.Context, sc scope.Client, _ uuid.UUID) (*models.ReplenishmentRequest, error) {
	s.scope = sc
	return s.result, s.err
}

func (s *stubReplenishmentService) ListRequestsPage(_ context.Context, sc scope.Client, filter replenishment.ListFilter, params pagination.Params) (*pagination.Page[models.ReplenishmentRequest], error) {
	s.scope, s.listFilter, s.listParams = sc, filter, params
	return s.page, s.err
}

func (s *stubReplenishmentService) AdvanceStatus(_ context.Context, sc scope.Client, in replenishment.AdvanceInput) (*models.ReplenishmentRequest, error) {
	s.scope, s.advanced = sc, in
	return s.result, s.err
}

func (s *stubReplenishmentService) RecordFulfillment(_ context.Context, sc scope.Client, _ uuid.UUID, fulfillments map[uuid.UUID]int) (*models.ReplenishmentRequest, error) {
	s.scope, s.fulfilled = sc, fulfillments
	return s.result, s.err
}

func sampleRequest(status enums.ReplenishmentStatus) *models.ReplenishmentRequest {
	id := uuid.New()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return &models.ReplenishmentRequest{
		ID:               id,
		ClientID:         testClientID,
		ShopID:           uuid.New(),
		DCID:             uuid.New(),
		Status:           status,
		ExpectedDelivery: &day,
		TotalItems:       5,
		Items: []models.ReplenishmentItem{
			{ID: uuid.New(), RequestID: id, ProductID: "sku-1", Size: "M", QuantityRequested: 5},
		},
		StatusLog: []models.ReplenishmentStatusLog{
			{ID: uuid.New(), RequestID: id, Sequence: 1, ToStatus: enums.ReplenishmentStatusRequested},
		},
	}
}

func TestCreateReplenishment(t *testing.T) {
	svc := &stubReplenishmentService{result: sampleRequest(enums.ReplenishmentStatusRequested)}
	body := map[string]any{
		"shop_id":           uuid.NewString(),
		"dc_id":             uuid.NewString(),
		"items":             []map[string]any{{"product_id": " sku-1 ", "size": "M", "quantity": 5}},
		"expected_delivery": "2026-03-14",
	}
	req := newRequest(t, http.MethodPost, "/api/v1/replenishments", body, nil)
	rec := httptest.NewRecorder()

	CreateReplenishment(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, testClientID, svc.scope.ClientID)
	require.Len(t, svc.created.Items, 1)
	assert.Equal(t, "sku-1", svc.created.Items[0].ProductID)
	assert.Equal(t, 5, svc.created.Items[0].QuantityRequested)
	require.NotNil(t, svc.created.RequestedBy)
	assert.Equal(t, testUserID, *svc.created.RequestedBy)
	require.NotNil(t, svc.created.ExpectedDelivery)
	assert.Equal(t, "2026-03-14", svc.created.ExpectedDelivery.Format(dateLayout))

	var resp replenishmentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Equal(t, enums.ReplenishmentStatusRequested, resp.Status)
	assert.Equal(t, []enums.ReplenishmentStatus{enums.ReplenishmentStatusProcessing, enums.ReplenishmentStatusCancelled}, resp.AllowedNext)
	require.NotNil(t, resp.ExpectedDelivery)
	assert.Equal(t, "2026-03-14", *resp.ExpectedDelivery)
	assert.Len(t, resp.StatusLog, 1)
}

func TestCreateReplenishmentValidation(t *testing.T) {
	cases := map[string]any{
		"no items":       map[string]any{"shop_id": uuid.NewString(), "dc_id": uuid.NewString(), "items": []any{}},
		"zero quantity":  map[string]any{"shop_id": uuid.NewString(), "dc_id": uuid.NewString(), "items": []map[string]any{{"product_id": "a", "quantity": 0}}},
		"bad date":       map[string]any{"shop_id": uuid.NewString(), "dc_id": uuid.NewString(), "items": []map[string]any{{"product_id": "a", "quantity": 1}}, "expected_delivery": "14/03/2026"},
		"unknown field":  map[string]any{"shop_id": uuid.NewString(), "dc_id": uuid.NewString(), "items": []map[string]any{{"product_id": "a", "quantity": 1}}, "client_id": uuid.NewString()},
		"malformed json": `{"shop_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubReplenishmentService{}
			rec := httptest.NewRecorder()
			CreateReplenishment(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/replenishments", body, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(pkgerrors.CodeValidation), decodeEnvelope(t, rec).Error.Code)
			assert.Empty(t, svc.created.Items, "service must not be called")
		})
	}
}

func TestCreateReplenishmentRequiresScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/replenishments", nil)
	rec := httptest.NewRecorder()
	CreateReplenishment(&stubReplenishmentService{}, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetReplenishmentErrors(t *testing.T) {
	svc := &stubReplenishmentService{err: pkgerrors.New(pkgerrors.CodeNotFound, "replenishment request not found")}

	rec := httptest.NewRecorder()
	GetReplenishment(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodGet, "/x", nil, map[string]string{"requestId": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	GetReplenishment(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodGet, "/x", nil, map[string]string{"requestId": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "replenishment request not found", decodeEnvelope(t, rec).Error.Message)
}

func TestListReplenishmentsParsesFilters(t *testing.T) {
	row := sampleRequest(enums.ReplenishmentStatusInTransit)
	svc := &stubReplenishmentService{page: &pagination.Page[models.ReplenishmentRequest]{
		Items:      []models.ReplenishmentRequest{*row},
		NextCursor: "abc",
	}}
	shop := uuid.New()
	target := "/api/v1/replenishments?shop_id=" + shop.String() + "&status=in_transit&active=true&limit=10&cursor=xyz"
	rec := httptest.NewRecorder()

	ListReplenishments(svc, testLogger(), 25).ServeHTTP(rec, newRequest(t, http.MethodGet, target, nil, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.listFilter.ShopID)
	assert.Equal(t, shop, *svc.listFilter.ShopID)
	assert.Nil(t, svc.listFilter.DCID)
	require.NotNil(t, svc.listFilter.Status)
	assert.Equal(t, enums.ReplenishmentStatusInTransit, *svc.listFilter.Status)
	assert.True(t, svc.listFilter.ActiveOnly)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "xyz"}, svc.listParams)

	var page replenishmentPageResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "abc", page.NextCursor)
	assert.Equal(t, []enums.ReplenishmentStatus{enums.ReplenishmentStatusReceived}, page.Items[0].AllowedNext)
}

func TestListReplenishmentsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"status=shipped", "limit=0", "limit=500", "dc_id=abc", "active=maybe"} {
		rec := httptest.NewRecorder()
		ListReplenishments(&stubReplenishmentService{}, testLogger(), 25).ServeHTTP(rec, newRequest(t, http.MethodGet, "/api/v1/replenishments?"+query, nil, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestAdvanceReplenishmentStatus(t *testing.T) {
	svc := &stubReplenishmentService{result: sampleRequest(enums.ReplenishmentStatusReceived)}
	itemID := uuid.New()
	requestID := uuid.New()
	body := map[string]any{
		"status":       "received",
		"notes":        "  all good  ",
		"fulfillments": []map[string]any{{"item_id": itemID.String(), "quantity": 3}},
	}
	rec := httptest.NewRecorder()

	AdvanceReplenishmentStatus(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/x", body, map[string]string{"requestId": requestID.String()}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, requestID, svc.advanced.RequestID)
	assert.Equal(t, enums.ReplenishmentStatusReceived, svc.advanced.NextStatus)
	assert.Equal(t, map[uuid.UUID]int{itemID: 3}, svc.advanced.Fulfillments)
	require.NotNil(t, svc.advanced.ChangedBy)
	assert.Equal(t, testUserID, *svc.advanced.ChangedBy)
	require.NotNil(t, svc.advanced.Notes)
	assert.Equal(t, "all good", *svc.advanced.Notes)

	var resp replenishmentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Empty(t, resp.AllowedNext)
	assert.NotNil(t, resp.AllowedNext)
}

func TestAdvanceReplenishmentStatusErrors(t *testing.T) {
	params := map[string]string{"requestId": uuid.NewString()}
	item := uuid.NewString()

	rec := httptest.NewRecorder()
	AdvanceReplenishmentStatus(&stubReplenishmentService{}, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/x", map[string]any{"status": "shipped"}, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	dup := map[string]any{"status": "received", "fulfillments": []map[string]any{{"item_id": item, "quantity": 1}, {"item_id": item, "quantity": 2}}}
	AdvanceReplenishmentStatus(&stubReplenishmentService{}, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/x", dup, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	svc := &stubReplenishmentService{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move request from received to processing")}
	AdvanceReplenishmentStatus(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/x", map[string]any{"status": "processing"}, params))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), decodeEnvelope(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	svc = &stubReplenishmentService{err: pkgerrors.New(pkgerrors.CodeConflict, "request changed concurrently")}
	AdvanceReplenishmentStatus(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPost, "/x", map[string]any{"status": "processing"}, params))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecordReplenishmentFulfillment(t *testing.T) {
	itemID := uuid.New()
	svc := &stubReplenishmentService{result: sampleRequest(enums.ReplenishmentStatusInTransit)}
	body := map[string]any{"fulfillments": []map[string]any{{"item_id": itemID.String(), "quantity": 2}}}
	rec := httptest.NewRecorder()

	RecordReplenishmentFulfillment(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPut, "/x", body, map[string]string{"requestId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[uuid.UUID]int{itemID: 2}, svc.fulfilled)

	rec = httptest.NewRecorder()
	RecordReplenishmentFulfillment(svc, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPut, "/x", map[string]any{"fulfillments": []any{}}, map[string]string{"requestId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	failing := &stubReplenishmentService{err: pkgerrors.New(pkgerrors.CodeInvalidFulfillment, "fulfilled quantity exceeds requested")}
	RecordReplenishmentFulfillment(failing, testLogger()).ServeHTTP(rec, newRequest(t, http.MethodPut, "/x", body, map[string]string{"requestId": uuid.NewString()}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
