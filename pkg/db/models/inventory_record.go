package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord holds on-hand stock for one SKU at one distribution center.
type InventoryRecord struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID          uuid.UUID `gorm:"column:client_id;type:uuid;not null"`
	DCID              uuid.UUID `gorm:"column:dc_id;type:uuid;not null"`
	ProductID         string    `gorm:"column:product_id;not null"`
	Size              string    `gorm:"column:size;not null;default:''"`
	Quantity          int       `gorm:"column:quantity;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLowStock is true at or below the threshold.
func (r InventoryRecord) IsLowStock() bool {
	return r.Quantity <= r.LowStockThreshold
}
