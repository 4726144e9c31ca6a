package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

const defaultRecentWindow = 30 * 24 * time.Hour

type Params struct {
	Repository Repository
	// Cache is optional; without it every read recomputes.
	Cache *Cache
	// RecentWindow bounds recentTransfers and fillRate.
	RecentWindow time.Duration
	Clock        func() time.Time
}

// Aggregator computes DC statistics from committed state on each read.
type Aggregator struct {
	repo   Repository
	cache  *Cache
	window time.Duration
	now    func() time.Time
}

func NewAggregator(p Params) (*Aggregator, error) {
	if p.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats repository required")
	}
	window := p.RecentWindow
	if window <= 0 {
		window = defaultRecentWindow
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{
		repo:   p.Repository,
		cache:  p.Cache,
		window: window,
		now:    func() time.Time { return clock().UTC() },
	}, nil
}

// Invalidate drops cached stats after a write; a no-op without a cache.
func (a *Aggregator) Invalidate(ctx context.Context, clientID, dcID uuid.UUID) {
	if a.cache != nil {
		a.cache.Invalidate(ctx, clientID, dcID)
	}
}

// DCStats returns the aggregates for one DC within the caller's client.
func (a *Aggregator) DCStats(ctx context.Context, sc scope.Client, dcID uuid.UUID) (*DCStats, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if dcID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dc id required")
	}

	gen := ""
	if a.cache != nil {
		cached, g, ok := a.cache.load(ctx, sc.ClientID, dcID)
		if ok {
			return cached, nil
		}
		gen = g
	}

	out, err := a.compute(ctx, sc.ClientID, dcID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute dc stats")
	}
	if a.cache != nil {
		a.cache.save(ctx, gen, out)
	}
	return out, nil
}

func (a *Aggregator) compute(ctx context.Context, clientID, dcID uuid.UUID) (*DCStats, error) {
	out := &DCStats{
		ClientID:        clientID,
		DCID:            dcID,
		StatusBreakdown: emptyBreakdown(),
		Shops:           []ShopLoad{},
	}

	inv, err := a.repo.Inventory(ctx, clientID, dcID)
	if err != nil {
		return nil, err
	}
	out.TotalSKUs = inv.SKUs
	out.TotalUnits = inv.Units
	out.LowStockCount = inv.LowStock

	counts, err := a.repo.StatusCounts(ctx, clientID, dcID)
	if err != nil {
		return nil, err
	}
	for _, row := range counts {
		out.StatusBreakdown[row.Status] = row.Total
		out.TotalRequests += row.Total
		if row.Status.IsActive() {
			out.ActiveRequests += row.Total
		}
	}

	active, err := a.repo.ActiveLoad(ctx, clientID, dcID)
	if err != nil {
		return nil, err
	}
	out.UniqueShopsRequesting = active.Shops
	out.TotalItemsRequested = active.Items

	received, err := a.repo.Received(ctx, clientID, dcID, a.now().Add(-a.window))
	if err != nil {
		return nil, err
	}
	out.RecentTransfers = received.Requests
	out.FillRate = fillRate(received.Fulfilled, received.Requested)

	shops, err := a.repo.Shops(ctx, clientID, dcID)
	if err != nil {
		return nil, err
	}
	if shops != nil {
		out.Shops = shops
	}
	return out, nil
}

var _ inventory.Invalidator = (*Aggregator)(nil)
