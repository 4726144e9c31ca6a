package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
)

// Key addresses one SKU at one distribution center.
type Key struct {
	ClientID  uuid.UUID
	DCID      uuid.UUID
	ProductID string
	Size      string
}

// Repository exposes persistence helpers for inventory records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByKey(ctx context.Context, key Key) (*models.InventoryRecord, error)
	FindByKeyForUpdate(ctx context.Context, key Key) (*models.InventoryRecord, error)
	Create(ctx context.Context, record *models.InventoryRecord) error
	UpdateLevels(ctx context.Context, id uuid.UUID, quantity, threshold int, now time.Time) error
	List(ctx context.Context, clientID, dcID uuid.UUID, lowStockOnly bool) ([]models.InventoryRecord, error)
	ListLowStock(ctx context.Context, after *models.InventoryRecord, limit int) ([]models.InventoryRecord, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) keyed(ctx context.Context, key Key) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("client_id = ? AND dc_id = ? AND product_id = ? AND size = ?", key.ClientID, key.DCID, key.ProductID, key.Size)
}

func (r *repositoryImpl) FindByKey(ctx context.Context, key Key) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.keyed(ctx, key).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKeyForUpdate holds the row lock until the surrounding transaction ends.
func (r *repositoryImpl) FindByKeyForUpdate(ctx context.Context, key Key) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.keyed(ctx, key).Clauses(clause.Locking{Strength: "UPDATE"}).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) Create(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) UpdateLevels(ctx context.Context, id uuid.UUID, quantity, threshold int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":            quantity,
			"low_stock_threshold": threshold,
			"updated_at":          now,
		}).Error
}

func (r *repositoryImpl) List(ctx context.Context, clientID, dcID uuid.UUID, lowStockOnly bool) ([]models.InventoryRecord, error) {
	query := r.db.WithContext(ctx).Where("client_id = ? AND dc_id = ?", clientID, dcID)
	if lowStockOnly {
		query = query.Where("quantity <= low_stock_threshold")
	}
	var records []models.InventoryRecord
	err := query.Order("product_id ASC, size ASC").Find(&records).Error
	return records, err
}

// ListLowStock scans every tenant in key order, starting after the given
// record when one is passed; only background jobs call it.
func (r *repositoryImpl) ListLowStock(ctx context.Context, after *models.InventoryRecord, limit int) ([]models.InventoryRecord, error) {
	query := r.db.WithContext(ctx).
		Where("quantity <= low_stock_threshold").
		Order("client_id ASC, dc_id ASC, product_id ASC, size ASC")
	if after != nil {
		query = query.Where("(client_id, dc_id, product_id, size) > (?, ?, ?, ?)",
			after.ClientID, after.DCID, after.ProductID, after.Size)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.InventoryRecord
	err := query.Find(&records).Error
	return records, err
}
