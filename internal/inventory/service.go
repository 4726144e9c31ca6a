package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

// Invalidator drops cached aggregates after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context, clientID, dcID uuid.UUID)
}

// AdjustInput is a manual stock correction.
type AdjustInput struct {
	DCID      uuid.UUID
	ProductID string
	Size      string
	Delta     int
}

// UpsertInput sets absolute levels for a SKU, creating it when absent.
type UpsertInput struct {
	DCID              uuid.UUID
	ProductID         string
	Size              string
	Quantity          int
	LowStockThreshold *int
}

// ShipmentLine is one SKU leaving the DC.
type ShipmentLine struct {
	ProductID string
	Size      string
	Quantity  int
}

type Params struct {
	DB          db.TxRunner
	Repository  Repository
	Events      outbox.Emitter
	Invalidator Invalidator
	Metrics     *metrics.ReplenishmentMetrics
	Logger      *logger.Logger
}

// Ledger owns per-DC stock levels. Every mutation locks the record row so
// writes to one key serialize while different keys proceed in parallel.
type Ledger struct {
	db          db.TxRunner
	repo        Repository
	events      outbox.Emitter
	invalidator Invalidator
	metrics     *metrics.ReplenishmentMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewLedger(p Params) (*Ledger, error) {
	if p.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	if p.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if p.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &Ledger{
		db:          p.DB,
		repo:        p.Repository,
		events:      p.Events,
		invalidator: p.Invalidator,
		metrics:     p.Metrics,
		logg:        p.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// IsLowStock reports whether the record sits at or below its threshold.
func IsLowStock(record models.InventoryRecord) bool {
	return record.IsLowStock()
}

// Adjust applies delta to an existing record and returns it. A result below
// zero is rejected; stock that never arrived cannot be removed by hand.
func (l *Ledger) Adjust(ctx context.Context, sc scope.Client, in AdjustInput) (*models.InventoryRecord, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	key, err := normalizeKey(sc.ClientID, in.DCID, in.ProductID, in.Size)
	if err != nil {
		return nil, err
	}
	if in.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var (
		updated *models.InventoryRecord
		alerts  []payloads.StockAlert
	)
	err = l.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		record, err := repo.FindByKeyForUpdate(ctx, key)
		if err != nil {
			return notFoundOr(err, "inventory record not found", "load inventory record")
		}

		next := record.Quantity + in.Delta
		if next < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment would make quantity negative").
				WithDetails(map[string]any{"quantity": record.Quantity, "delta": in.Delta})
		}
		wasLow := record.IsLowStock()
		now := l.now()
		if err := repo.UpdateLevels(ctx, record.ID, next, record.LowStockThreshold, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory record")
		}
		record.Quantity = next
		record.UpdatedAt = now

		if !wasLow && record.IsLowStock() {
			alert := newAlert(*record, enums.StockAlertReasonLowStock, 0, nil, now)
			if err := l.emitAlert(ctx, tx, sc, alert); err != nil {
				return err
			}
			alerts = append(alerts, alert)
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.afterCommit(ctx, sc.ClientID, key.DCID, alerts)
	return updated, nil
}

// Upsert sets quantity (and optionally threshold) for a SKU.
func (l *Ledger) Upsert(ctx context.Context, sc scope.Client, in UpsertInput) (*models.InventoryRecord, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	key, err := normalizeKey(sc.ClientID, in.DCID, in.ProductID, in.Size)
	if err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}
	if in.LowStockThreshold != nil && *in.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be >= 0")
	}

	var saved *models.InventoryRecord
	err = l.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		now := l.now()
		record, err := repo.FindByKeyForUpdate(ctx, key)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = &models.InventoryRecord{
				ID:        uuid.New(),
				ClientID:  key.ClientID,
				DCID:      key.DCID,
				ProductID: key.ProductID,
				Size:      key.Size,
				Quantity:  in.Quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if in.LowStockThreshold != nil {
				record.LowStockThreshold = *in.LowStockThreshold
			}
			if err := repo.Create(ctx, record); err != nil {
				return createErr(err)
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
		default:
			threshold := record.LowStockThreshold
			if in.LowStockThreshold != nil {
				threshold = *in.LowStockThreshold
			}
			if err := repo.UpdateLevels(ctx, record.ID, in.Quantity, threshold, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory record")
			}
			record.Quantity = in.Quantity
			record.LowStockThreshold = threshold
			record.UpdatedAt = now
		}
		saved = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.afterCommit(ctx, sc.ClientID, key.DCID, nil)
	return saved, nil
}

func (l *Ledger) Get(ctx context.Context, sc scope.Client, dcID uuid.UUID, productID, size string) (*models.InventoryRecord, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	key, err := normalizeKey(sc.ClientID, dcID, productID, size)
	if err != nil {
		return nil, err
	}
	record, err := l.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, notFoundOr(err, "inventory record not found", "load inventory record")
	}
	return record, nil
}

func (l *Ledger) List(ctx context.Context, sc scope.Client, dcID uuid.UUID, lowStockOnly bool) ([]models.InventoryRecord, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if dcID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dc id required")
	}
	records, err := l.repo.List(ctx, sc.ClientID, dcID, lowStockOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return records, nil
}

// ShipTx decrements stock for a shipment inside the caller's transaction.
// Shipping never blocks: a shortfall clamps the record at zero and a missing
// record is created at zero; both raise a stock alert, as does any record
// left at or below its threshold. Keys are locked in sorted order.
func (l *Ledger) ShipTx(ctx context.Context, tx *gorm.DB, sc scope.Client, dcID, requestID uuid.UUID, lines []ShipmentLine) ([]payloads.StockAlert, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	repo := l.repo.WithTx(tx)
	now := l.now()

	var alerts []payloads.StockAlert
	for _, line := range mergeLines(lines) {
		key := Key{ClientID: sc.ClientID, DCID: dcID, ProductID: line.ProductID, Size: line.Size}
		record, err := repo.FindByKeyForUpdate(ctx, key)
		reason := enums.StockAlertReason("")
		shortfall := 0

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = &models.InventoryRecord{
				ID:        uuid.New(),
				ClientID:  key.ClientID,
				DCID:      key.DCID,
				ProductID: key.ProductID,
				Size:      key.Size,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repo.Create(ctx, record); err != nil {
				return nil, createErr(err)
			}
			reason = enums.StockAlertReasonMissing
			shortfall = line.Quantity
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
		default:
			next := record.Quantity - line.Quantity
			if next < 0 {
				shortfall = -next
				next = 0
				reason = enums.StockAlertReasonShortfall
			}
			if err := repo.UpdateLevels(ctx, record.ID, next, record.LowStockThreshold, now); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
			}
			record.Quantity = next
			record.UpdatedAt = now
			if reason == "" && record.IsLowStock() {
				reason = enums.StockAlertReasonLowStock
			}
		}

		if reason == "" {
			continue
		}
		reqID := requestID
		alert := newAlert(*record, reason, shortfall, &reqID, now)
		if err := l.emitAlert(ctx, tx, sc, alert); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// RaiseLowStock re-reads record under lock and emits a low_stock alert when
// it is still at or below its threshold. It reports whether an alert was
// written.
func (l *Ledger) RaiseLowStock(ctx context.Context, record models.InventoryRecord) (bool, error) {
	key := Key{ClientID: record.ClientID, DCID: record.DCID, ProductID: record.ProductID, Size: record.Size}
	sc := scope.ForClient(record.ClientID)
	var raised []payloads.StockAlert
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := l.repo.WithTx(tx).FindByKeyForUpdate(ctx, key)
		if err != nil {
			return notFoundOr(err, "inventory record not found", "load inventory record")
		}
		if !current.IsLowStock() {
			return nil
		}
		alert := newAlert(*current, enums.StockAlertReasonLowStock, 0, nil, l.now())
		if err := l.emitAlert(ctx, tx, sc, alert); err != nil {
			return err
		}
		raised = append(raised, alert)
		return nil
	})
	if err != nil {
		return false, err
	}
	l.RecordAlerts(raised)
	return len(raised) > 0, nil
}

// RecordAlerts counts alerts raised inside a transaction the caller committed.
func (l *Ledger) RecordAlerts(alerts []payloads.StockAlert) {
	for _, alert := range alerts {
		l.metrics.IncStockAlert(string(alert.Reason))
	}
}

func (l *Ledger) afterCommit(ctx context.Context, clientID, dcID uuid.UUID, alerts []payloads.StockAlert) {
	l.RecordAlerts(alerts)
	if l.invalidator != nil {
		l.invalidator.Invalidate(ctx, clientID, dcID)
	}
}

func (l *Ledger) emitAlert(ctx context.Context, tx *gorm.DB, sc scope.Client, alert payloads.StockAlert) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventInventoryStockAlert,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   alert.RecordID,
		Data:          alert,
		OccurredAt:    alert.Timestamp,
	}
	if actor := sc.Actor(); actor != nil {
		clientID := sc.ClientID
		event.Actor = &outbox.ActorRef{UserID: *actor, ClientID: &clientID, Role: sc.Role}
	}
	if err := l.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock alert")
	}
	if l.logg != nil {
		l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
			"dc_id":      alert.DCID.String(),
			"product_id": alert.ProductID,
			"size":       alert.Size,
			"quantity":   alert.Quantity,
			"shortfall":  alert.Shortfall,
			"reason":     alert.Reason,
		}), "inventory stock alert")
	}
	return nil
}

func newAlert(record models.InventoryRecord, reason enums.StockAlertReason, shortfall int, requestID *uuid.UUID, at time.Time) payloads.StockAlert {
	return payloads.StockAlert{
		ClientID:  record.ClientID,
		DCID:      record.DCID,
		RecordID:  record.ID,
		ProductID: record.ProductID,
		Size:      record.Size,
		Quantity:  record.Quantity,
		Threshold: record.LowStockThreshold,
		Shortfall: shortfall,
		Reason:    reason,
		RequestID: requestID,
		Timestamp: at,
	}
}

// mergeLines sums duplicate SKUs and sorts by key.
func mergeLines(lines []ShipmentLine) []ShipmentLine {
	totals := make(map[[2]string]int, len(lines))
	for _, line := range lines {
		k := [2]string{strings.TrimSpace(line.ProductID), strings.TrimSpace(line.Size)}
		totals[k] += line.Quantity
	}
	out := make([]ShipmentLine, 0, len(totals))
	for k, qty := range totals {
		out = append(out, ShipmentLine{ProductID: k[0], Size: k[1], Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Size < out[j].Size
	})
	return out
}

func normalizeKey(clientID, dcID uuid.UUID, productID, size string) (Key, error) {
	if dcID == uuid.Nil {
		return Key{}, pkgerrors.New(pkgerrors.CodeValidation, "dc id required")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Key{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return Key{ClientID: clientID, DCID: dcID, ProductID: productID, Size: strings.TrimSpace(size)}, nil
}

func notFoundOr(err error, notFound, storage string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, storage)
}

// createErr maps a lost insert race on the unique key to a retryable conflict.
func createErr(err error) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "inventory record created concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("create inventory record: %w", err), "create inventory record")
}
