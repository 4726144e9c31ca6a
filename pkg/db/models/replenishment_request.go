package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// ReplenishmentRequest is a shop's request for stock from a distribution center.
type ReplenishmentRequest struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID         uuid.UUID                 `gorm:"column:client_id;type:uuid;not null"`
	ShopID           uuid.UUID                 `gorm:"column:shop_id;type:uuid;not null"`
	DCID             uuid.UUID                 `gorm:"column:dc_id;type:uuid;not null"`
	RequestedBy      *uuid.UUID                `gorm:"column:requested_by;type:uuid"`
	Status           enums.ReplenishmentStatus `gorm:"column:status;type:replenishment_status;not null;default:'requested'"`
	Notes            *string                   `gorm:"column:notes"`
	ExpectedDelivery *time.Time                `gorm:"column:expected_delivery;type:date"`
	ReceivedAt       *time.Time                `gorm:"column:received_at"`
	TotalItems       int                       `gorm:"column:total_items;not null"`
	Items            []ReplenishmentItem       `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	StatusLog        []ReplenishmentStatusLog  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// ReplenishmentItem is one (product, size) line of a request.
type ReplenishmentItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID         uuid.UUID `gorm:"column:request_id;type:uuid;not null"`
	ProductID         string    `gorm:"column:product_id;not null"`
	Size              string    `gorm:"column:size;not null;default:''"`
	QuantityRequested int       `gorm:"column:quantity_requested;not null"`
	QuantityFulfilled int       `gorm:"column:quantity_fulfilled;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ReplenishmentStatusLog is an append-only audit entry. Sequence is assigned
// under the request row lock, so it follows commit order.
type ReplenishmentStatusLog struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID  uuid.UUID                  `gorm:"column:request_id;type:uuid;not null"`
	Sequence   int                        `gorm:"column:sequence;not null"`
	FromStatus *enums.ReplenishmentStatus `gorm:"column:from_status;type:replenishment_status"`
	ToStatus   enums.ReplenishmentStatus  `gorm:"column:to_status;type:replenishment_status;not null"`
	ChangedBy  *uuid.UUID                 `gorm:"column:changed_by;type:uuid"`
	Notes      *string                    `gorm:"column:notes"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (ReplenishmentStatusLog) TableName() string {
	return "replenishment_status_logs"
}
