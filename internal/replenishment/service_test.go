package replenishment

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/internal/inventory"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/db/dbtest"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/pagination"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate(context.Context, uuid.UUID, uuid.UUID) {
	c.calls.Add(1)
}

type harness struct {
	client      *db.Client
	svc         *Service
	ledger      *inventory.Ledger
	invalidator *countingInvalidator
	sc          scope.Client
	shopID      uuid.UUID
	dcID        uuid.UUID
}

// steppingClock advances one millisecond per call so created_at is strictly increasing.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newHarness(t *testing.T, wrap func(Repository) Repository) harness {
	t.Helper()
	client := dbtest.Open(t)
	events := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	inv := &countingInvalidator{}
	ledger, err := inventory.NewLedger(inventory.Params{
		DB:          client,
		Repository:  inventory.NewRepository(client.DB()),
		Events:      events,
		Invalidator: inv,
	})
	require.NoError(t, err)

	var repo Repository = NewRepository(client.DB())
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(Params{
		DB:          client,
		Repository:  repo,
		Shipper:     ledger,
		Events:      events,
		Invalidator: inv,
		PageSize:    2,
		Clock:       steppingClock(),
	})
	require.NoError(t, err)

	user := uuid.New()
	return harness{
		client:      client,
		svc:         svc,
		ledger:      ledger,
		invalidator: inv,
		sc:          scope.Client{ClientID: uuid.New(), UserID: &user, Role: "dc_manager"},
		shopID:      uuid.New(),
		dcID:        uuid.New(),
	}
}

func (h harness) stock(t *testing.T, productID, size string, qty int) {
	t.Helper()
	zero := 0
	_, err := h.ledger.Upsert(context.Background(), h.sc, inventory.UpsertInput{
		DCID: h.dcID, ProductID: productID, Size: size, Quantity: qty, LowStockThreshold: &zero,
	})
	require.NoError(t, err)
}

func (h harness) onHand(t *testing.T, productID, size string) int {
	t.Helper()
	rec, err := h.ledger.Get(context.Background(), h.sc, h.dcID, productID, size)
	require.NoError(t, err)
	return rec.Quantity
}

func (h harness) create(t *testing.T, items ...ItemInput) *models.ReplenishmentRequest {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{ProductID: "P1", Size: "M", QuantityRequested: 10}}
	}
	req, err := h.svc.CreateRequest(context.Background(), h.sc, CreateInput{
		ShopID: h.shopID,
		DCID:   h.dcID,
		Items:  items,
	})
	require.NoError(t, err)
	return req
}

func (h harness) advance(t *testing.T, id uuid.UUID, to enums.ReplenishmentStatus) *models.ReplenishmentRequest {
	t.Helper()
	req, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: id, NextStatus: to})
	require.NoError(t, err)
	assertLogConsistent(t, req)
	return req
}

func (h harness) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

// assertLogConsistent checks status equals the newest log entry and that
// sequences run 1..n without gaps.
func assertLogConsistent(t *testing.T, req *models.ReplenishmentRequest) {
	t.Helper()
	require.NotEmpty(t, req.StatusLog)
	for i, entry := range req.StatusLog {
		assert.Equal(t, i+1, entry.Sequence)
		if i > 0 {
			require.NotNil(t, entry.FromStatus)
			assert.Equal(t, req.StatusLog[i-1].ToStatus, *entry.FromStatus)
		}
	}
	assert.Equal(t, req.Status, req.StatusLog[len(req.StatusLog)-1].ToStatus)
}

func TestScenarioA_CreateRequest(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)

	assert.Equal(t, enums.ReplenishmentStatusRequested, req.Status)
	assert.Equal(t, 10, req.TotalItems)
	require.Len(t, req.Items, 1)
	assert.Equal(t, 0, req.Items[0].QuantityFulfilled)
	require.Len(t, req.StatusLog, 1)
	assert.Nil(t, req.StatusLog[0].FromStatus)
	assert.Equal(t, enums.ReplenishmentStatusRequested, req.StatusLog[0].ToStatus)
	assert.Equal(t, h.sc.UserID, req.RequestedBy)

	loaded, err := h.svc.GetRequest(context.Background(), h.sc, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.TotalItems)
	assertLogConsistent(t, loaded)
	assert.EqualValues(t, 1, h.eventCount(t, enums.EventRequestCreated))
}

func TestScenarioB_ShippingDecrementsInventory(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "P1", "M", 25)
	req := h.create(t)

	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	assert.Equal(t, 25, h.onHand(t, "P1", "M"))

	shipped := h.advance(t, req.ID, enums.ReplenishmentStatusInTransit)
	assert.Equal(t, enums.ReplenishmentStatusInTransit, shipped.Status)
	assert.Len(t, shipped.StatusLog, 3)
	assert.Equal(t, 15, h.onHand(t, "P1", "M"))
	assert.EqualValues(t, 2, h.eventCount(t, enums.EventRequestStatusChanged))
}

func TestScenarioC_ReceiveWithFulfillmentThenTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "P1", "M", 25)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	h.advance(t, req.ID, enums.ReplenishmentStatusInTransit)

	received, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{
		RequestID:    req.ID,
		NextStatus:   enums.ReplenishmentStatusReceived,
		Fulfillments: map[uuid.UUID]int{req.Items[0].ID: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReplenishmentStatusReceived, received.Status)
	assert.Equal(t, 8, received.Items[0].QuantityFulfilled)
	require.NotNil(t, received.ReceivedAt)
	assert.True(t, received.Status.IsTerminal())

	_, err = h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusProcessing})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestScenarioD_CannotSkipToReceived(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)

	_, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusReceived})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	loaded, err := h.svc.GetRequest(context.Background(), h.sc, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReplenishmentStatusRequested, loaded.Status)
	assert.Len(t, loaded.StatusLog, 1)
}

func TestScenarioE_CancelProcessingLeavesInventory(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "P1", "M", 25)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)

	cancelled := h.advance(t, req.ID, enums.ReplenishmentStatusCancelled)
	assert.Equal(t, enums.ReplenishmentStatusCancelled, cancelled.Status)
	assert.Equal(t, 25, h.onHand(t, "P1", "M"))
	assert.Nil(t, cancelled.ReceivedAt)
}

func TestAdvanceStatusEveryPair(t *testing.T) {
	pathTo := map[enums.ReplenishmentStatus][]enums.ReplenishmentStatus{
		enums.ReplenishmentStatusRequested:  nil,
		enums.ReplenishmentStatusProcessing: {enums.ReplenishmentStatusProcessing},
		enums.ReplenishmentStatusInTransit:  {enums.ReplenishmentStatusProcessing, enums.ReplenishmentStatusInTransit},
		enums.ReplenishmentStatusReceived:   {enums.ReplenishmentStatusProcessing, enums.ReplenishmentStatusInTransit, enums.ReplenishmentStatusReceived},
		enums.ReplenishmentStatusCancelled:  {enums.ReplenishmentStatusCancelled},
	}

	for _, from := range enums.ReplenishmentStatuses() {
		for _, to := range enums.ReplenishmentStatuses() {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				h := newHarness(t, nil)
				h.stock(t, "P1", "M", 100)
				req := h.create(t)
				for _, step := range pathTo[from] {
					h.advance(t, req.ID, step)
				}
				before := h.onHand(t, "P1", "M")
				logsBefore := len(mustGet(t, h, req.ID).StatusLog)

				got, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: to})
				if ValidateTransition(from, to) != nil {
					assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
					after := mustGet(t, h, req.ID)
					assert.Equal(t, from, after.Status)
					assert.Len(t, after.StatusLog, logsBefore)
					assert.Equal(t, before, h.onHand(t, "P1", "M"))
					return
				}

				require.NoError(t, err)
				assert.Equal(t, to, got.Status)
				assert.Len(t, got.StatusLog, logsBefore+1)
				assertLogConsistent(t, got)
				switch to {
				case enums.ReplenishmentStatusInTransit:
					assert.Equal(t, before-10, h.onHand(t, "P1", "M"))
				case enums.ReplenishmentStatusReceived:
					require.NotNil(t, got.ReceivedAt)
					assert.Equal(t, 10, got.Items[0].QuantityFulfilled)
					assert.Equal(t, before, h.onHand(t, "P1", "M"))
				default:
					assert.Nil(t, got.ReceivedAt)
					assert.Equal(t, before, h.onHand(t, "P1", "M"))
				}
			})
		}
	}
}

func mustGet(t *testing.T, h harness, id uuid.UUID) *models.ReplenishmentRequest {
	t.Helper()
	req, err := h.svc.GetRequest(context.Background(), h.sc, id)
	require.NoError(t, err)
	return req
}

func TestSecondIdenticalAdvanceIsSelfTransition(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)

	_, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusProcessing})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestConcurrentAdvanceHasOneWinner(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "P1", "M", 50)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)

	const racers = 4
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusInTransit})
			switch {
			case err == nil:
				wins.Add(1)
			case pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), pkgerrors.Is(err, pkgerrors.CodeConflict):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, racers-1, rejected.Load())
	assert.Equal(t, 40, h.onHand(t, "P1", "M"), "stock decremented exactly once")
	final := mustGet(t, h, req.ID)
	assert.Len(t, final.StatusLog, 3)
	assertLogConsistent(t, final)
}

// flakyCAS loses the first n compare-and-swaps.
type flakyCAS struct {
	Repository
	remaining *atomic.Int32
	calls     *atomic.Int32
}

func (f flakyCAS) WithTx(tx *gorm.DB) Repository {
	return flakyCAS{Repository: f.Repository.WithTx(tx), remaining: f.remaining, calls: f.calls}
}

func (f flakyCAS) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to enums.ReplenishmentStatus, updates map[string]any) (bool, error) {
	f.calls.Add(1)
	if f.remaining.Add(-1) >= 0 {
		return false, nil
	}
	return f.Repository.CompareAndSwapStatus(ctx, id, from, to, updates)
}

func TestAdvanceRetriesLostSwap(t *testing.T) {
	remaining, calls := &atomic.Int32{}, &atomic.Int32{}
	h := newHarness(t, func(r Repository) Repository {
		return flakyCAS{Repository: r, remaining: remaining, calls: calls}
	})
	req := h.create(t)

	remaining.Store(2)
	got, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, enums.ReplenishmentStatusProcessing, got.Status)
	assert.EqualValues(t, 3, calls.Load())

	remaining.Store(5)
	calls.Store(0)
	_, err = h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusCancelled})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, defaultMaxAttempts, calls.Load())
	assert.Equal(t, enums.ReplenishmentStatusProcessing, mustGet(t, h, req.ID).Status)
}

func TestCreateRequestValidation(t *testing.T) {
	h := newHarness(t, nil)
	cases := map[string]CreateInput{
		"no items":      {ShopID: h.shopID, DCID: h.dcID},
		"blank product": {ShopID: h.shopID, DCID: h.dcID, Items: []ItemInput{{ProductID: " ", QuantityRequested: 1}}},
		"zero quantity": {ShopID: h.shopID, DCID: h.dcID, Items: []ItemInput{{ProductID: "P1", QuantityRequested: 0}}},
		"missing shop":  {DCID: h.dcID, Items: []ItemInput{{ProductID: "P1", QuantityRequested: 1}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateRequest(context.Background(), h.sc, in)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}

	_, err := h.svc.CreateRequest(context.Background(), scope.Client{}, CreateInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.EqualValues(t, 0, h.eventCount(t, enums.EventRequestCreated))
}

func TestTotalItemsIsFixedAtCreation(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "A", "S", 100)
	h.stock(t, "B", "L", 100)
	req := h.create(t,
		ItemInput{ProductID: "A", Size: "S", QuantityRequested: 3},
		ItemInput{ProductID: "B", Size: "L", QuantityRequested: 4},
	)
	assert.Equal(t, 7, req.TotalItems)

	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	_, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{req.Items[0].ID: 1})
	require.NoError(t, err)
	h.advance(t, req.ID, enums.ReplenishmentStatusInTransit)
	final := h.advance(t, req.ID, enums.ReplenishmentStatusReceived)
	assert.Equal(t, 7, final.TotalItems)
}

func TestReceivedKeepsRecordedFulfillment(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "A", "S", 100)
	h.stock(t, "B", "L", 100)
	req := h.create(t,
		ItemInput{ProductID: "A", Size: "S", QuantityRequested: 3},
		ItemInput{ProductID: "B", Size: "L", QuantityRequested: 4},
	)

	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	_, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{req.Items[0].ID: 1})
	require.NoError(t, err)
	h.advance(t, req.ID, enums.ReplenishmentStatusInTransit)
	h.advance(t, req.ID, enums.ReplenishmentStatusReceived)

	got := map[uuid.UUID]int{}
	for _, item := range mustGet(t, h, req.ID).Items {
		got[item.ID] = item.QuantityFulfilled
	}
	assert.Equal(t, 1, got[req.Items[0].ID], "recorded partial quantity survives receipt")
	assert.Equal(t, 4, got[req.Items[1].ID], "unrecorded item defaults to requested")
}

func TestRecordFulfillmentBoundsAndIdempotence(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)
	itemID := req.Items[0].ID

	first, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{itemID: 6})
	require.NoError(t, err)
	second, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{itemID: 6})
	require.NoError(t, err)
	assert.Equal(t, first.Items[0].QuantityFulfilled, second.Items[0].QuantityFulfilled)
	assert.Equal(t, 6, second.Items[0].QuantityFulfilled)

	for _, qty := range []int{-1, 11} {
		_, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{itemID: qty})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidFulfillment), "qty %d", qty)
	}
	for _, item := range mustGet(t, h, req.ID).Items {
		assert.GreaterOrEqual(t, item.QuantityFulfilled, 0)
		assert.LessOrEqual(t, item.QuantityFulfilled, item.QuantityRequested)
	}

	_, err = h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{uuid.New(): 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	other := h.create(t)
	_, err = h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{other.Items[0].ID: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "item of another request")

	_, err = h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRecordFulfillmentClosedOnTerminal(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusCancelled)

	_, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{req.Items[0].ID: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestReceivedRejectsOverFulfillment(t *testing.T) {
	h := newHarness(t, nil)
	h.stock(t, "P1", "M", 100)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	h.advance(t, req.ID, enums.ReplenishmentStatusInTransit)

	_, err := h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{
		RequestID:    req.ID,
		NextStatus:   enums.ReplenishmentStatusReceived,
		Fulfillments: map[uuid.UUID]int{req.Items[0].ID: 11},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidFulfillment))
	assert.Equal(t, enums.ReplenishmentStatusInTransit, mustGet(t, h, req.ID).Status)

	_, err = h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{
		RequestID:    req.ID,
		NextStatus:   enums.ReplenishmentStatusCancelled,
		Fulfillments: map[uuid.UUID]int{req.Items[0].ID: 1},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestGetRequestIsScoped(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)

	_, err := h.svc.GetRequest(context.Background(), scope.ForClient(uuid.New()), req.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = h.svc.AdvanceStatus(context.Background(), scope.ForClient(uuid.New()), AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusProcessing})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListRequestsWalksAllPagesNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, h.create(t).ID)
	}
	h.advance(t, ids[0], enums.ReplenishmentStatusCancelled)
	slices.Reverse(ids)

	seq := h.svc.ListRequests(context.Background(), h.sc, ListFilter{})
	var got []uuid.UUID
	for req, err := range seq {
		require.NoError(t, err)
		got = append(got, req.ID)
	}
	assert.Equal(t, ids, got)

	var again int
	for _, err := range seq {
		require.NoError(t, err)
		again++
	}
	assert.Equal(t, 5, again, "sequence restarts on each range")

	var active int
	for req, err := range h.svc.ListRequests(context.Background(), h.sc, ListFilter{ActiveOnly: true}) {
		require.NoError(t, err)
		assert.True(t, req.Status.IsActive())
		active++
	}
	assert.Equal(t, 4, active)

	var first int
	for range h.svc.ListRequests(context.Background(), h.sc, ListFilter{}) {
		first++
		break
	}
	assert.Equal(t, 1, first)
}

func TestListRequestsPageCursor(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		h.create(t)
	}
	otherShop := uuid.New()
	_, err := h.svc.CreateRequest(context.Background(), h.sc, CreateInput{
		ShopID: otherShop, DCID: h.dcID, Items: []ItemInput{{ProductID: "P9", QuantityRequested: 1}},
	})
	require.NoError(t, err)

	page, err := h.svc.ListRequestsPage(context.Background(), h.sc, ListFilter{ShopID: &h.shopID}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := h.svc.ListRequestsPage(context.Background(), h.sc, ListFilter{ShopID: &h.shopID}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
	assert.NotEqual(t, page.Items[1].ID, next.Items[0].ID)

	_, err = h.svc.ListRequestsPage(context.Background(), h.sc, ListFilter{}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestWritesInvalidateStats(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t)
	h.advance(t, req.ID, enums.ReplenishmentStatusProcessing)
	_, err := h.svc.RecordFulfillment(context.Background(), h.sc, req.ID, map[uuid.UUID]int{req.Items[0].ID: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, h.invalidator.calls.Load())

	_, err = h.svc.AdvanceStatus(context.Background(), h.sc, AdvanceInput{RequestID: req.ID, NextStatus: enums.ReplenishmentStatusReceived})
	require.Error(t, err)
	assert.EqualValues(t, 3, h.invalidator.calls.Load(), "failed writes do not invalidate")
}
