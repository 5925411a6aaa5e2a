package aggregate

import (
	"context"
	"fmt"
	"time"

	"shop-analytics/internal/model"
	"shop-analytics/internal/store"
)

// UserHistory folds events into the per-user action log.
//
// Views and purchases always append. Adds are idempotent against duplicate
// delivery: a second ADD for the same (product, action) pair is ignored.
// Removes never record themselves; they delete the first matching paired
// add entry, or do nothing when no pair exists. The retained log is capped,
// oldest entries evicted first.
type UserHistory struct {
	gateway store.Gateway
}

// NewUserHistory builds the aggregator on top of a persistence gateway.
func NewUserHistory(gateway store.Gateway) *UserHistory {
	return &UserHistory{gateway: gateway}
}

// Apply performs one read-modify-write cycle for the event's user. Events
// missing a user or product identity are a silent no-op.
func (u *UserHistory) Apply(ctx context.Context, evt model.Event) error {
	if evt.UserID == "" || evt.ProductID == "" {
		return nil
	}
	actions, err := u.gateway.ReadUserActions(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("read actions for user %s: %w", evt.UserID, err)
	}

	fields := store.UserRecordFields{
		Actions:     nextActions(actions, evt),
		LastVisited: time.Now().UTC(),
		Device:      model.NormalizeDevice(evt.Device),
	}
	if evt.Location != nil {
		fields.Country = evt.Location.Country
		fields.City = evt.Location.City
	}

	if err := u.gateway.UpsertUserAnalytics(ctx, evt.UserID, fields); err != nil {
		return fmt.Errorf("upsert user %s: %w", evt.UserID, err)
	}
	return nil
}

// nextActions computes the new action log for one event. It never mutates
// the input slice's retained prefix semantics beyond append/delete.
func nextActions(log []model.ActionEntry, evt model.Event) []model.ActionEntry {
	entry := model.ActionEntry{
		ProductID: evt.ProductID,
		ShopID:    evt.ShopID,
		Action:    evt.Action,
		Timestamp: evt.Time(),
	}

	switch {
	case evt.Action.IsAdd():
		if !containsPair(log, evt.ProductID, evt.Action) {
			log = append(log, entry)
		}
	case evt.Action.PairedAdd() != "":
		// First match from the start, not the most recent.
		log = removeFirstPair(log, evt.ProductID, evt.Action.PairedAdd())
	default:
		log = append(log, entry)
	}

	if len(log) > model.MaxUserActions {
		log = log[len(log)-model.MaxUserActions:]
	}
	return log
}

func containsPair(log []model.ActionEntry, productID string, action model.Action) bool {
	for _, e := range log {
		if e.ProductID == productID && e.Action == action {
			return true
		}
	}
	return false
}

func removeFirstPair(log []model.ActionEntry, productID string, action model.Action) []model.ActionEntry {
	for i, e := range log {
		if e.ProductID == productID && e.Action == action {
			return append(log[:i], log[i+1:]...)
		}
	}
	return log
}
