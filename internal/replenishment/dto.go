package replenishment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// ItemInput is one requested (product, size) line.
type ItemInput struct {
	ProductID         string
	Size              string
	QuantityRequested int
}

type CreateInput struct {
	ShopID           uuid.UUID
	DCID             uuid.UUID
	RequestedBy      *uuid.UUID
	Items            []ItemInput
	Notes            *string
	ExpectedDelivery *time.Time
}

// AdvanceInput moves a request to NextStatus. Fulfillments apply only when
// NextStatus is received; items left out default to their requested quantity.
type AdvanceInput struct {
	RequestID    uuid.UUID
	NextStatus   enums.ReplenishmentStatus
	ChangedBy    *uuid.UUID
	Notes        *string
	Fulfillments map[uuid.UUID]int
}

// ListFilter narrows ListRequests; nil fields match everything.
type ListFilter struct {
	ShopID     *uuid.UUID
	DCID       *uuid.UUID
	Status     *enums.ReplenishmentStatus
	ActiveOnly bool
}
