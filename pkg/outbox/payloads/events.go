package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// RequestIntent is the notification intent for request.created and
// request.status_changed. FromStatus is nil on creation.
type RequestIntent struct {
	Type       enums.OutboxEventType      `json:"type"`
	RequestID  uuid.UUID                  `json:"requestId"`
	ClientID   uuid.UUID                  `json:"clientId"`
	ShopID     uuid.UUID                  `json:"shopId"`
	DCID       uuid.UUID                  `json:"dcId"`
	FromStatus *enums.ReplenishmentStatus `json:"fromStatus,omitempty"`
	ToStatus   enums.ReplenishmentStatus  `json:"toStatus"`
	ChangedBy  *uuid.UUID                 `json:"changedBy,omitempty"`
	Notes      *string                    `json:"notes,omitempty"`
	TotalItems int                        `json:"totalItems"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// StockAlert flags a DC inventory record that ran short or fell to its
// low-stock threshold.
type StockAlert struct {
	ClientID  uuid.UUID              `json:"clientId"`
	DCID      uuid.UUID              `json:"dcId"`
	RecordID  uuid.UUID              `json:"recordId"`
	ProductID string                 `json:"productId"`
	Size      string                 `json:"size"`
	Quantity  int                    `json:"quantity"`
	Threshold int                    `json:"threshold"`
	Shortfall int                    `json:"shortfall"`
	Reason    enums.StockAlertReason `json:"reason"`
	RequestID *uuid.UUID             `json:"requestId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
