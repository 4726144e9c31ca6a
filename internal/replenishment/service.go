package replenishment

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/internal/inventory"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/replenish-backend/pkg/pagination"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

const (
	defaultMaxAttempts = 3
	defaultPageSize    = 100
)

// Shipper decrements DC stock inside the transition's transaction.
type Shipper interface {
	ShipTx(ctx context.Context, tx *gorm.DB, sc scope.Client, dcID, requestID uuid.UUID, lines []inventory.ShipmentLine) ([]payloads.StockAlert, error)
	RecordAlerts(alerts []payloads.StockAlert)
}

type Params struct {
	DB          db.TxRunner
	Repository  Repository
	Shipper     Shipper
	Events      outbox.Emitter
	Invalidator inventory.Invalidator
	Metrics     *metrics.ReplenishmentMetrics
	Logger      *logger.Logger
	// MaxAttempts bounds retries of a transition that lost a concurrent race.
	MaxAttempts int
	PageSize    int
	Clock       func() time.Time
}

// Service owns the request lifecycle: creation, transitions with their side
// effects, and fulfillment tracking.
type Service struct {
	db          db.TxRunner
	repo        Repository
	shipper     Shipper
	events      outbox.Emitter
	invalidator inventory.Invalidator
	metrics     *metrics.ReplenishmentMetrics
	logg        *logger.Logger
	maxAttempts int
	pageSize    int
	now         func() time.Time
}

func NewService(p Params) (*Service, error) {
	if p.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	if p.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "replenishment repository required")
	}
	if p.Shipper == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory shipper required")
	}
	if p.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:          p.DB,
		repo:        p.Repository,
		shipper:     p.Shipper,
		events:      p.Events,
		invalidator: p.Invalidator,
		metrics:     p.Metrics,
		logg:        p.Logger,
		maxAttempts: maxAttempts,
		pageSize:    pageSize,
		now:         func() time.Time { return clock().UTC() },
	}, nil
}

// CreateRequest persists a request in requested status together with its
// items, the first log entry and a request.created intent.
func (s *Service) CreateRequest(ctx context.Context, sc scope.Client, in CreateInput) (*models.ReplenishmentRequest, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	requestedBy := in.RequestedBy
	if requestedBy == nil {
		requestedBy = sc.Actor()
	}
	req := &models.ReplenishmentRequest{
		ID:               uuid.New(),
		ClientID:         sc.ClientID,
		ShopID:           in.ShopID,
		DCID:             in.DCID,
		RequestedBy:      requestedBy,
		Status:           enums.ReplenishmentStatusRequested,
		Notes:            cleanNotes(in.Notes),
		ExpectedDelivery: in.ExpectedDelivery,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, item := range in.Items {
		req.Items = append(req.Items, models.ReplenishmentItem{
			ID:                uuid.New(),
			RequestID:         req.ID,
			ProductID:         strings.TrimSpace(item.ProductID),
			Size:              strings.TrimSpace(item.Size),
			QuantityRequested: item.QuantityRequested,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		req.TotalItems += item.QuantityRequested
	}
	req.StatusLog = []models.ReplenishmentStatusLog{{
		ID:        uuid.New(),
		RequestID: req.ID,
		Sequence:  1,
		ToStatus:  enums.ReplenishmentStatusRequested,
		ChangedBy: requestedBy,
		Notes:     req.Notes,
		CreatedAt: now,
	}}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replenishment request")
		}
		return s.emitIntent(ctx, tx, sc, req, enums.EventRequestCreated, nil, requestedBy, req.Notes, now)
	})
	if err != nil {
		return nil, storageErr(err, "create replenishment request")
	}

	s.invalidate(ctx, req)
	if s.logg != nil {
		s.logg.Info(s.requestCtx(ctx, req), "replenishment request created")
	}
	return req, nil
}

// GetRequest loads a request with its items and status log.
func (s *Service) GetRequest(ctx context.Context, sc scope.Client, id uuid.UUID) (*models.ReplenishmentRequest, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	req, err := s.repo.FindByID(ctx, sc.ClientID, id)
	if err != nil {
		return nil, loadErr(err)
	}
	return req, nil
}

// ListRequests yields matching requests newest first, fetching keyset pages
// lazily. Each range over the sequence starts a fresh scan; iteration stops
// after the first error.
func (s *Service) ListRequests(ctx context.Context, sc scope.Client, filter ListFilter) iter.Seq2[models.ReplenishmentRequest, error] {
	return func(yield func(models.ReplenishmentRequest, error) bool) {
		if err := sc.Validate(); err != nil {
			yield(models.ReplenishmentRequest{}, err)
			return
		}
		var cursor *pagination.Cursor
		for {
			rows, next, err := s.repo.List(ctx, sc.ClientID, filter, cursor, s.pageSize)
			if err != nil {
				yield(models.ReplenishmentRequest{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list replenishment requests"))
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if next == nil {
				return
			}
			cursor = next
		}
	}
}

// ListRequestsPage serves one cursor page for HTTP callers.
func (s *Service) ListRequestsPage(ctx context.Context, sc scope.Client, filter ListFilter, params pagination.Params) (*pagination.Page[models.ReplenishmentRequest], error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, sc.ClientID, filter, cursor, pagination.NormalizeLimit(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list replenishment requests")
	}
	page := &pagination.Page[models.ReplenishmentRequest]{Items: rows}
	if page.Items == nil {
		page.Items = []models.ReplenishmentRequest{}
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// AdvanceStatus validates and applies one transition atomically. A lost
// compare-and-swap is retried against fresh state up to MaxAttempts times.
func (s *Service) AdvanceStatus(ctx context.Context, sc scope.Client, in AdvanceInput) (*models.ReplenishmentRequest, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if in.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if !in.NextStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status").
			WithDetails(map[string]any{"status": in.NextStatus})
	}
	if len(in.Fulfillments) > 0 && in.NextStatus != enums.ReplenishmentStatusReceived {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillments are only accepted when marking a request received")
	}

	for attempt := 1; ; attempt++ {
		result, err := s.advanceOnce(ctx, sc, in)
		if err == nil {
			s.afterTransition(ctx, result)
			return result.request, nil
		}
		if !pkgerrors.Is(err, pkgerrors.CodeConflict) || attempt >= s.maxAttempts {
			return nil, err
		}
		s.metrics.IncConflict()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"replenishment_id": in.RequestID.String(),
				"attempt":          attempt,
				"to_status":        in.NextStatus,
			})
			s.logg.Warn(logCtx, "status transition conflict, retrying")
		}
	}
}

type transitionResult struct {
	request *models.ReplenishmentRequest
	from    enums.ReplenishmentStatus
	alerts  []payloads.StockAlert
}

func (s *Service) advanceOnce(ctx context.Context, sc scope.Client, in AdvanceInput) (*transitionResult, error) {
	var result transitionResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindByIDForUpdate(ctx, sc.ClientID, in.RequestID)
		if err != nil {
			return loadErr(err)
		}
		if err := ValidateTransition(req.Status, in.NextStatus); err != nil {
			return err
		}

		now := s.now()
		from := req.Status
		updates := map[string]any{"updated_at": now}

		var fulfilled map[uuid.UUID]int
		if in.NextStatus == enums.ReplenishmentStatusReceived {
			fulfilled, err = resolveFulfillments(req.Items, in.Fulfillments, true)
			if err != nil {
				return err
			}
			updates["received_at"] = now
		}

		// The swap runs first so side effects never apply to a stale status.
		swapped, err := repo.CompareAndSwapStatus(ctx, req.ID, from, in.NextStatus, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "request status changed concurrently").
				WithDetails(map[string]any{"expected": from, "to": in.NextStatus})
		}

		switch in.NextStatus {
		case enums.ReplenishmentStatusInTransit:
			lines := make([]inventory.ShipmentLine, 0, len(req.Items))
			for _, item := range req.Items {
				lines = append(lines, inventory.ShipmentLine{
					ProductID: item.ProductID,
					Size:      item.Size,
					Quantity:  item.QuantityRequested,
				})
			}
			alerts, err := s.shipper.ShipTx(ctx, tx, sc, req.DCID, req.ID, lines)
			if err != nil {
				return err
			}
			result.alerts = alerts
		case enums.ReplenishmentStatusReceived:
			for itemID, qty := range fulfilled {
				if err := repo.SetItemFulfilled(ctx, req.ID, itemID, qty, now); err != nil {
					return loadErr(err)
				}
			}
		}

		changedBy := in.ChangedBy
		if changedBy == nil {
			changedBy = sc.Actor()
		}
		notes := cleanNotes(in.Notes)
		entry := &models.ReplenishmentStatusLog{
			ID:         uuid.New(),
			RequestID:  req.ID,
			FromStatus: &from,
			ToStatus:   in.NextStatus,
			ChangedBy:  changedBy,
			Notes:      notes,
			CreatedAt:  now,
		}
		if err := repo.AppendStatusLog(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "status log sequence taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status log")
		}

		updated, err := repo.FindByID(ctx, sc.ClientID, req.ID)
		if err != nil {
			return loadErr(err)
		}
		if err := s.emitIntent(ctx, tx, sc, updated, enums.EventRequestStatusChanged, &from, changedBy, notes, now); err != nil {
			return err
		}
		result.request = updated
		result.from = from
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "advance request status")
	}
	return &result, nil
}

func (s *Service) afterTransition(ctx context.Context, result *transitionResult) {
	req := result.request
	s.metrics.IncTransition(string(result.from), string(req.Status))
	s.shipper.RecordAlerts(result.alerts)
	s.invalidate(ctx, req)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.requestCtx(ctx, req), map[string]any{
			"from_status": result.from,
			"to_status":   req.Status,
		})
		s.logg.Info(logCtx, "replenishment status changed")
	}
}

// RecordFulfillment sets quantity_fulfilled for the given items; repeating
// the same call leaves the same state. Terminal requests are closed.
func (s *Service) RecordFulfillment(ctx context.Context, sc scope.Client, requestID uuid.UUID, fulfillments map[uuid.UUID]int) (*models.ReplenishmentRequest, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if len(fulfillments) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one fulfillment is required")
	}

	var updated *models.ReplenishmentRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindByIDForUpdate(ctx, sc.ClientID, requestID)
		if err != nil {
			return loadErr(err)
		}
		if req.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "fulfillment cannot change on a "+string(req.Status)+" request").
				WithDetails(map[string]any{"status": req.Status})
		}
		resolved, err := resolveFulfillments(req.Items, fulfillments, false)
		if err != nil {
			return err
		}
		now := s.now()
		for itemID, qty := range resolved {
			if err := repo.SetItemFulfilled(ctx, req.ID, itemID, qty, now); err != nil {
				return loadErr(err)
			}
		}
		if err := repo.Touch(ctx, req.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch request")
		}
		updated, err = repo.FindByID(ctx, sc.ClientID, req.ID)
		if err != nil {
			return loadErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "record fulfillment")
	}
	s.invalidate(ctx, updated)
	return updated, nil
}

func (s *Service) emitIntent(ctx context.Context, tx *gorm.DB, sc scope.Client, req *models.ReplenishmentRequest, eventType enums.OutboxEventType, from *enums.ReplenishmentStatus, changedBy *uuid.UUID, notes *string, at time.Time) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReplenishmentRequest,
		AggregateID:   req.ID,
		OccurredAt:    at,
		Data: payloads.RequestIntent{
			Type:       eventType,
			RequestID:  req.ID,
			ClientID:   req.ClientID,
			ShopID:     req.ShopID,
			DCID:       req.DCID,
			FromStatus: from,
			ToStatus:   req.Status,
			ChangedBy:  changedBy,
			Notes:      notes,
			TotalItems: req.TotalItems,
			Timestamp:  at,
		},
	}
	if actor := sc.Actor(); actor != nil {
		clientID := sc.ClientID
		event.Actor = &outbox.ActorRef{UserID: *actor, ClientID: &clientID, Role: sc.Role}
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, req *models.ReplenishmentRequest) {
	if s.invalidator == nil || req == nil {
		return
	}
	s.invalidator.Invalidate(ctx, req.ClientID, req.DCID)
}

func (s *Service) requestCtx(ctx context.Context, req *models.ReplenishmentRequest) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"replenishment_id": req.ID.String(),
		"shop_id":          req.ShopID.String(),
		"dc_id":            req.DCID.String(),
		"status":           req.Status,
	})
}

func validateCreate(in CreateInput) error {
	if in.ShopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if in.DCID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dc id required")
	}
	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required").
				WithDetails(map[string]any{"item_index": i})
		}
		if item.QuantityRequested <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity requested must be greater than zero").
				WithDetails(map[string]any{"item_index": i, "quantity_requested": item.QuantityRequested})
		}
	}
	return nil
}

func cleanNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func loadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "replenishment request not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load replenishment request")
}

// storageErr keeps typed errors and marks anything else, such as a failed
// commit, as a dependency failure.
func storageErr(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
