package stats

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// ShopLoad is one shop's share of a DC's requests.
type ShopLoad struct {
	ShopID          uuid.UUID `json:"shop_id" gorm:"column:shop_id"`
	TotalRequests   int64     `json:"total_requests" gorm:"column:total_requests"`
	PendingRequests int64     `json:"pending_requests" gorm:"column:pending_requests"`
	PendingItems    int64     `json:"pending_items" gorm:"column:pending_items"`
}

// DCStats is the derived view of one distribution center for one client.
type DCStats struct {
	ClientID              uuid.UUID                           `json:"client_id"`
	DCID                  uuid.UUID                           `json:"dc_id"`
	TotalSKUs             int64                               `json:"total_skus"`
	TotalUnits            int64                               `json:"total_units"`
	LowStockCount         int64                               `json:"low_stock_count"`
	ActiveRequests        int64                               `json:"active_requests"`
	TotalRequests         int64                               `json:"total_requests"`
	UniqueShopsRequesting int64                               `json:"unique_shops_requesting"`
	TotalItemsRequested   int64                               `json:"total_items_requested"`
	RecentTransfers       int64                               `json:"recent_transfers"`
	FillRate              decimal.Decimal                     `json:"fill_rate"`
	StatusBreakdown       map[enums.ReplenishmentStatus]int64 `json:"status_breakdown"`
	Shops                 []ShopLoad                          `json:"shops"`
}

// emptyBreakdown lists every status at zero so consumers never see gaps.
func emptyBreakdown() map[enums.ReplenishmentStatus]int64 {
	out := make(map[enums.ReplenishmentStatus]int64, len(enums.ReplenishmentStatuses()))
	for _, status := range enums.ReplenishmentStatuses() {
		out[status] = 0
	}
	return out
}

// fillRate is fulfilled/requested rounded to four places; zero when nothing was requested.
func fillRate(fulfilled, requested int64) decimal.Decimal {
	if requested <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(fulfilled).DivRound(decimal.NewFromInt(requested), 4)
}
