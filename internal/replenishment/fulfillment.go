package replenishment

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

// resolveFulfillments checks every entry against the request's items. With
// fillMissing set, items missing from the map keep a quantity already
// recorded on them, or resolve to their requested quantity when none was;
// otherwise only the supplied items are returned.
func resolveFulfillments(items []models.ReplenishmentItem, fulfillments map[uuid.UUID]int, fillMissing bool) (map[uuid.UUID]int, error) {
	byID := make(map[uuid.UUID]models.ReplenishmentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	resolved := make(map[uuid.UUID]int, len(items))
	for itemID, qty := range fulfillments {
		item, ok := byID[itemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found on request").
				WithDetails(map[string]any{"item_id": itemID})
		}
		if qty < 0 || qty > item.QuantityRequested {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidFulfillment, "fulfilled quantity must be between 0 and the requested quantity").
				WithDetails(map[string]any{
					"item_id":            itemID,
					"quantity":           qty,
					"quantity_requested": item.QuantityRequested,
				})
		}
		resolved[itemID] = qty
	}

	if fillMissing {
		for _, item := range items {
			if _, ok := resolved[item.ID]; ok {
				continue
			}
			if item.QuantityFulfilled > 0 {
				resolved[item.ID] = item.QuantityFulfilled
			} else {
				resolved[item.ID] = item.QuantityRequested
			}
		}
	}
	return resolved, nil
}
