package replenishment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/pagination"
)

// Repository defines persistence operations for replenishment tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.ReplenishmentRequest) error
	FindByID(ctx context.Context, clientID, id uuid.UUID) (*models.ReplenishmentRequest, error)
	FindByIDForUpdate(ctx context.Context, clientID, id uuid.UUID) (*models.ReplenishmentRequest, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to enums.ReplenishmentStatus, updates map[string]any) (bool, error)
	AppendStatusLog(ctx context.Context, entry *models.ReplenishmentStatusLog) error
	SetItemFulfilled(ctx context.Context, requestID, itemID uuid.UUID, quantity int, now time.Time) error
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error
	List(ctx context.Context, clientID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.ReplenishmentRequest, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a replenishment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Create inserts the request, its items and its log entries.
func (r *repositoryImpl) Create(ctx context.Context, req *models.ReplenishmentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, clientID, id uuid.UUID) (*models.ReplenishmentRequest, error) {
	return r.find(ctx, clientID, id, false)
}

// FindByIDForUpdate locks the request row; status changes on one request
// queue behind it until the transaction ends.
func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, clientID, id uuid.UUID) (*models.ReplenishmentRequest, error) {
	return r.find(ctx, clientID, id, true)
}

func (r *repositoryImpl) find(ctx context.Context, clientID, id uuid.UUID, lock bool) (*models.ReplenishmentRequest, error) {
	query := r.db.WithContext(ctx).Where("id = ? AND client_id = ?", id, clientID)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var req models.ReplenishmentRequest
	if err := query.First(&req).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", req.ID).
		Order("product_id ASC, size ASC, id ASC").
		Find(&req.Items).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", req.ID).
		Order("sequence ASC").
		Find(&req.StatusLog).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// CompareAndSwapStatus writes to only if the row still holds from.
func (r *repositoryImpl) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to enums.ReplenishmentStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.ReplenishmentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AppendStatusLog assigns the next sequence for the request. Callers hold the
// request row lock, so sequence order is commit order.
func (r *repositoryImpl) AppendStatusLog(ctx context.Context, entry *models.ReplenishmentStatusLog) error {
	var maxSeq int
	if err := r.db.WithContext(ctx).
		Model(&models.ReplenishmentStatusLog{}).
		Where("request_id = ?", entry.RequestID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	entry.Sequence = maxSeq + 1
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) SetItemFulfilled(ctx context.Context, requestID, itemID uuid.UUID, quantity int, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReplenishmentItem{}).
		Where("id = ? AND request_id = ?", itemID, requestID).
		Updates(map[string]any{"quantity_fulfilled": quantity, "updated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReplenishmentRequest{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", now).Error
}

// List returns one keyset page ordered by created_at DESC, id DESC, without
// items or log. The returned cursor is nil on the last page.
func (r *repositoryImpl) List(ctx context.Context, clientID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.ReplenishmentRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ReplenishmentRequest{}).Where("client_id = ?", clientID)
	if filter.ShopID != nil {
		query = query.Where("shop_id = ?", *filter.ShopID)
	}
	if filter.DCID != nil {
		query = query.Where("dc_id = ?", *filter.DCID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ActiveOnly {
		query = query.Where("status IN ?", enums.ActiveReplenishmentStatuses())
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ReplenishmentRequest
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.FetchLimit(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(rows, limit, func(row models.ReplenishmentRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
