package aggregate

import (
	"context"
	"fmt"
	"time"

	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
)

// ProductCounters folds events into the per-product counter record. Each
// mapped action increments exactly one counter; counters never decrease.
// A remove event bumps its removed_* counter, it does not undo the add.
type ProductCounters struct {
	gateway store.Gateway
}

// NewProductCounters builds the aggregator on top of a persistence gateway.
func NewProductCounters(gateway store.Gateway) *ProductCounters {
	return &ProductCounters{gateway: gateway}
}

// Apply upserts the product record for one event. Events without a product
// identity, or with an action that maps to no counter, are a silent no-op.
func (p *ProductCounters) Apply(ctx context.Context, evt model.Event) error {
	if evt.ProductID == "" {
		return nil
	}
	counter, ok := model.CounterFor(evt.Action)
	if !ok {
		return nil
	}
	if err := p.gateway.UpsertProductAnalytics(ctx, evt.ProductID, evt.ShopID, counter, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert product %s: %w", evt.ProductID, err)
	}
	return nil
}
