package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
)

func TestProductFirstPurchaseSeedsRecord(t *testing.T) {
	mem := store.NewMemory()
	p := NewProductCounters(mem)

	require.NoError(t, p.Apply(context.Background(), event(model.ActionPurchase, "u1", "p1")))

	rec := mem.Product("p1")
	require.NotNil(t, rec)
	require.Equal(t, uint64(1), rec.Purchases)
	require.Zero(t, rec.Views)
	require.Zero(t, rec.AddedToCarts)
	require.Zero(t, rec.AddedToWishlists)
	require.Zero(t, rec.RemovedFromCarts)
	require.Zero(t, rec.RemovedFromWishlists)
	require.Equal(t, "s1", rec.ShopID)
	require.False(t, rec.LastVisitedAt.IsZero())
}

func TestProductCountersOnlyGrow(t *testing.T) {
	mem := store.NewMemory()
	p := NewProductCounters(mem)
	ctx := context.Background()

	require.NoError(t, p.Apply(ctx, event(model.ActionAddToCart, "u1", "p1")))
	require.NoError(t, p.Apply(ctx, event(model.ActionRemoveFromCart, "u1", "p1")))

	rec := mem.Product("p1")
	// A remove never decrements the add counter; it counts separately.
	require.Equal(t, uint64(1), rec.AddedToCarts)
	require.Equal(t, uint64(1), rec.RemovedFromCarts)
}

func TestProductEachEventIncrementsExactlyOneCounter(t *testing.T) {
	mem := store.NewMemory()
	p := NewProductCounters(mem)
	ctx := context.Background()

	require.NoError(t, p.Apply(ctx, event(model.ActionProductView, "u1", "p1")))
	require.NoError(t, p.Apply(ctx, event(model.ActionProductView, "u2", "p1")))
	require.NoError(t, p.Apply(ctx, event(model.ActionAddToWishlist, "u1", "p1")))

	rec := mem.Product("p1")
	require.Equal(t, uint64(2), rec.Views)
	require.Equal(t, uint64(1), rec.AddedToWishlists)
	require.Zero(t, rec.Purchases)
}

func TestProductMissingIDIsNoOp(t *testing.T) {
	mem := store.NewMemory()
	p := NewProductCounters(mem)

	require.NoError(t, p.Apply(context.Background(), event(model.ActionProductView, "u1", "")))

	_, products := mem.Len()
	require.Zero(t, products)
}

func TestProductShopVisitIncrementsNothing(t *testing.T) {
	mem := store.NewMemory()
	p := NewProductCounters(mem)

	require.NoError(t, p.Apply(context.Background(), event(model.ActionShopVisit, "u1", "p1")))

	require.Nil(t, mem.Product("p1"))
}
