package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
)

// flakyGateway wraps Memory and fails user upserts for one chosen user.
type flakyGateway struct {
	*store.Memory
	failUser string
}

var errInjected = errors.New("injected persistence failure")

func (f *flakyGateway) UpsertUserAnalytics(ctx context.Context, userID string, fields store.UserRecordFields) error {
	if userID == f.failUser {
		return errInjected
	}
	return f.Memory.UpsertUserAnalytics(ctx, userID, fields)
}

func TestProcessorDropsMalformedWithoutPersistence(t *testing.T) {
	mem := store.NewMemory()
	p := NewProcessor(mem, time.Second)

	report := p.Process(context.Background(), []model.Event{
		{Action: "FOO", UserID: "u1", ProductID: "p1"},
		{UserID: "u1", ProductID: "p1"}, // no action at all
	})

	require.Equal(t, 2, report.Dropped)
	require.Zero(t, report.Processed)
	require.False(t, report.HasErrors())
	users, products := mem.Len()
	require.Zero(t, users)
	require.Zero(t, products)
}

func TestProcessorShopVisitIsRecognizedButUnhandled(t *testing.T) {
	mem := store.NewMemory()
	p := NewProcessor(mem, time.Second)

	report := p.Process(context.Background(), []model.Event{
		{Action: model.ActionShopVisit, UserID: "u1", ShopID: "s1"},
	})

	require.Equal(t, 1, report.Skipped)
	require.Zero(t, report.Dropped)
	users, products := mem.Len()
	require.Zero(t, users)
	require.Zero(t, products)
}

func TestProcessorDoubleAddThenRemoveScenario(t *testing.T) {
	mem := store.NewMemory()
	p := NewProcessor(mem, time.Second)

	report := p.Process(context.Background(), []model.Event{
		event(model.ActionAddToCart, "u1", "p1"),
		event(model.ActionAddToCart, "u1", "p1"),
		event(model.ActionRemoveFromCart, "u1", "p1"),
	})
	require.Equal(t, 3, report.Processed)
	require.False(t, report.HasErrors())

	// User log dedups the second add, then the remove cancels the first:
	// zero entries left.
	user := mem.User("u1")
	require.NotNil(t, user)
	require.Empty(t, user.Actions)

	// Product counters count every event independently of the user-log dedup.
	product := mem.Product("p1")
	require.Equal(t, uint64(2), product.AddedToCarts)
	require.Equal(t, uint64(1), product.RemovedFromCarts)
}

func TestProcessorOneFailureDoesNotBlockSiblings(t *testing.T) {
	gw := &flakyGateway{Memory: store.NewMemory(), failUser: "bad"}
	p := NewProcessor(gw, time.Second)

	report := p.Process(context.Background(), []model.Event{
		event(model.ActionProductView, "bad", "p1"),
		event(model.ActionProductView, "good", "p2"),
	})

	require.Equal(t, 2, report.Processed)
	require.Len(t, report.Errors, 1)
	require.Equal(t, StageUser, report.Errors[0].Stage)
	require.Equal(t, "bad", report.Errors[0].UserID)
	require.ErrorIs(t, report.Errors[0].Err, errInjected)

	// The failed event's product stage still ran, and the sibling landed in
	// full.
	require.Equal(t, uint64(1), gw.Product("p1").Views)
	require.Equal(t, uint64(1), gw.Product("p2").Views)
	require.NotNil(t, gw.User("good"))
}

func TestProcessorPreservesArrivalOrder(t *testing.T) {
	mem := store.NewMemory()
	p := NewProcessor(mem, time.Second)

	report := p.Process(context.Background(), []model.Event{
		event(model.ActionProductView, "u1", "p1"),
		event(model.ActionAddToCart, "u1", "p2"),
		event(model.ActionPurchase, "u1", "p2"),
	})
	require.Equal(t, 3, report.Processed)

	user := mem.User("u1")
	require.Len(t, user.Actions, 3)
	require.Equal(t, model.ActionProductView, user.Actions[0].Action)
	require.Equal(t, model.ActionAddToCart, user.Actions[1].Action)
	require.Equal(t, model.ActionPurchase, user.Actions[2].Action)
}
