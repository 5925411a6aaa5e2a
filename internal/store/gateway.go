package store

import (
	"context"
	"time"

	"shop-analytics/internal/model"
)

// UserRecordFields carries the computed state for a user-analytics upsert.
// Actions and LastVisited are always written. Country, City and Device are
// merged: an empty value leaves the previously stored value untouched.
type UserRecordFields struct {
	Actions     []model.ActionEntry
	LastVisited time.Time
	Country     string
	City        string
	Device      string
}

// Gateway is the read-modify-write storage the aggregators run against.
// Both upserts must be atomic per key: no partial write may become visible.
// The aggregator is assumed to be the sole writer of both record types.
type Gateway interface {
	// ReadUserActions returns the retained action log for a user, or
	// (nil, nil) when no record exists yet.
	ReadUserActions(ctx context.Context, userID string) ([]model.ActionEntry, error)

	// UpsertUserAnalytics creates or updates the per-user record keyed by
	// userID, applying the merge semantics of UserRecordFields.
	UpsertUserAnalytics(ctx context.Context, userID string, fields UserRecordFields) error

	// UpsertProductAnalytics creates the per-product record with counters
	// seeded from the given counter, or increments that counter by exactly
	// one on an existing record. ShopID is fixed at creation and ignored on
	// update. LastVisitedAt is refreshed either way.
	UpsertProductAnalytics(ctx context.Context, productID, shopID string, counter model.Counter, at time.Time) error
}
