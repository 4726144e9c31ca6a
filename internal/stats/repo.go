package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// Repository runs the aggregate queries behind DCStats.
type Repository interface {
	Inventory(ctx context.Context, clientID, dcID uuid.UUID) (inventoryTotals, error)
	StatusCounts(ctx context.Context, clientID, dcID uuid.UUID) ([]statusCount, error)
	ActiveLoad(ctx context.Context, clientID, dcID uuid.UUID) (activeTotals, error)
	Received(ctx context.Context, clientID, dcID uuid.UUID, since time.Time) (receivedTotals, error)
	Shops(ctx context.Context, clientID, dcID uuid.UUID) ([]ShopLoad, error)
}

type inventoryTotals struct {
	SKUs     int64 `gorm:"column:skus"`
	Units    int64 `gorm:"column:units"`
	LowStock int64 `gorm:"column:low_stock"`
}

type statusCount struct {
	Status enums.ReplenishmentStatus `gorm:"column:status"`
	Total  int64                     `gorm:"column:total"`
}

type activeTotals struct {
	Shops int64 `gorm:"column:shops"`
	Items int64 `gorm:"column:items"`
}

type receivedTotals struct {
	Requests  int64 `gorm:"column:requests"`
	Requested int64 `gorm:"column:requested"`
	Fulfilled int64 `gorm:"column:fulfilled"`
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Inventory(ctx context.Context, clientID, dcID uuid.UUID) (inventoryTotals, error) {
	var out inventoryTotals
	err := r.db.WithContext(ctx).Raw(`
SELECT COUNT(*) AS skus,
       COALESCE(SUM(quantity), 0) AS units,
       COALESCE(SUM(CASE WHEN quantity <= low_stock_threshold THEN 1 ELSE 0 END), 0) AS low_stock
FROM inventory_records
WHERE client_id = ? AND dc_id = ?`, clientID, dcID).Scan(&out).Error
	return out, err
}

func (r *repositoryImpl) StatusCounts(ctx context.Context, clientID, dcID uuid.UUID) ([]statusCount, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Raw(`
SELECT status, COUNT(*) AS total
FROM replenishment_requests
WHERE client_id = ? AND dc_id = ?
GROUP BY status`, clientID, dcID).Scan(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ActiveLoad(ctx context.Context, clientID, dcID uuid.UUID) (activeTotals, error) {
	var out activeTotals
	err := r.db.WithContext(ctx).Raw(`
SELECT COUNT(DISTINCT r.shop_id) AS shops,
       COALESCE(SUM(i.quantity_requested), 0) AS items
FROM replenishment_requests r
LEFT JOIN replenishment_items i ON i.request_id = r.id
WHERE r.client_id = ? AND r.dc_id = ? AND r.status IN ?`,
		clientID, dcID, enums.ActiveReplenishmentStatuses()).Scan(&out).Error
	return out, err
}

func (r *repositoryImpl) Received(ctx context.Context, clientID, dcID uuid.UUID, since time.Time) (receivedTotals, error) {
	var out receivedTotals
	err := r.db.WithContext(ctx).Raw(`
SELECT COUNT(DISTINCT r.id) AS requests,
       COALESCE(SUM(i.quantity_requested), 0) AS requested,
       COALESCE(SUM(i.quantity_fulfilled), 0) AS fulfilled
FROM replenishment_requests r
LEFT JOIN replenishment_items i ON i.request_id = r.id
WHERE r.client_id = ? AND r.dc_id = ? AND r.status = ? AND r.received_at >= ?`,
		clientID, dcID, enums.ReplenishmentStatusReceived, since).Scan(&out).Error
	return out, err
}

func (r *repositoryImpl) Shops(ctx context.Context, clientID, dcID uuid.UUID) ([]ShopLoad, error) {
	var rows []ShopLoad
	active := enums.ActiveReplenishmentStatuses()
	err := r.db.WithContext(ctx).Raw(`
SELECT shop_id,
       COUNT(*) AS total_requests,
       COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS pending_requests,
       COALESCE(SUM(CASE WHEN status IN ? THEN total_items ELSE 0 END), 0) AS pending_items
FROM replenishment_requests
WHERE client_id = ? AND dc_id = ?
GROUP BY shop_id
ORDER BY shop_id`, active, active, clientID, dcID).Scan(&rows).Error
	return rows, err
}
