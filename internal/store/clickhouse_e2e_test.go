//go:build e2e

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shop-analytics/internal/model"
)

// Needs a live ClickHouse, e.g. via deployments/docker-compose.yml:
//
//	CLICKHOUSE_DSN=clickhouse://default:@localhost:9000?database=default go test -tags e2e ./internal/store
func newTestClickHouse(t *testing.T) *ClickHouse {
	t.Helper()
	dsn := os.Getenv("CLICKHOUSE_DSN")
	if dsn == "" {
		t.Skip("CLICKHOUSE_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ch, err := NewClickHouse(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	require.NoError(t, ch.EnsureSchema(ctx))
	return ch
}

func TestClickHouseUserUpsertRoundTrip(t *testing.T) {
	ch := newTestClickHouse(t)
	ctx := context.Background()
	userID := "e2e-user-" + time.Now().Format("150405.000")

	actions, err := ch.ReadUserActions(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, actions)

	now := time.Now().UTC().Truncate(time.Millisecond)
	fields := UserRecordFields{
		Actions: []model.ActionEntry{
			{ProductID: "p1", ShopID: "s1", Action: model.ActionAddToCart, Timestamp: now},
		},
		LastVisited: now,
		Country:     "DE",
	}
	require.NoError(t, ch.UpsertUserAnalytics(ctx, userID, fields))

	rec, err := ch.ReadUserAnalytics(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Actions, 1)
	require.Equal(t, model.ActionAddToCart, rec.Actions[0].Action)
	require.Equal(t, "DE", rec.Country)

	// Second upsert without a country keeps the stored one.
	fields.Country = ""
	fields.Actions = nil
	require.NoError(t, ch.UpsertUserAnalytics(ctx, userID, fields))
	rec, err = ch.ReadUserAnalytics(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "DE", rec.Country)
	require.Empty(t, rec.Actions)
}

func TestClickHouseProductUpsertIncrements(t *testing.T) {
	ch := newTestClickHouse(t)
	ctx := context.Background()
	productID := "e2e-product-" + time.Now().Format("150405.000")

	now := time.Now().UTC()
	require.NoError(t, ch.UpsertProductAnalytics(ctx, productID, "s1", model.CounterViews, now))
	require.NoError(t, ch.UpsertProductAnalytics(ctx, productID, "other-shop", model.CounterViews, now))
	require.NoError(t, ch.UpsertProductAnalytics(ctx, productID, "s1", model.CounterPurchases, now))

	rec, err := ch.ReadProductAnalytics(ctx, productID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, uint64(2), rec.Views)
	require.Equal(t, uint64(1), rec.Purchases)
	// ShopID is fixed at creation.
	require.Equal(t, "s1", rec.ShopID)
}
