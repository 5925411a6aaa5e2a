package model

import (
	"encoding/json"
	"time"
)

// Action is one of the recognized behavioral event kinds.
type Action string

const (
	ActionProductView        Action = "PRODUCT_VIEW"
	ActionPurchase           Action = "PURCHASE"
	ActionAddToCart          Action = "ADD_TO_CART"
	ActionAddToWishlist      Action = "ADD_TO_WISHLIST"
	ActionRemoveFromCart     Action = "REMOVE_FROM_CART"
	ActionRemoveFromWishlist Action = "REMOVE_FROM_WISHLIST"
	ActionShopVisit          Action = "SHOP_VISIT"
)

// Recognized reports whether a is a member of the known action set.
// SHOP_VISIT is recognized even though no aggregate currently consumes it.
func (a Action) Recognized() bool {
	switch a {
	case ActionProductView, ActionPurchase, ActionAddToCart, ActionAddToWishlist,
		ActionRemoveFromCart, ActionRemoveFromWishlist, ActionShopVisit:
		return true
	}
	return false
}

// IsAdd reports whether a is one of the deduplicated "add" actions.
func (a Action) IsAdd() bool {
	return a == ActionAddToCart || a == ActionAddToWishlist
}

// PairedAdd returns the add-action a remove-action reverses, or "" when a
// is not a remove.
func (a Action) PairedAdd() Action {
	switch a {
	case ActionRemoveFromCart:
		return ActionAddToCart
	case ActionRemoveFromWishlist:
		return ActionAddToWishlist
	}
	return ""
}

// Location is the optional client-supplied geo context on an event.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Event is a single behavioral signal consumed from the behavior topic.
// Events are immutable; aggregates are derived from them, never the other
// way around. Unknown top-level fields in the payload are ignored.
type Event struct {
	EventID   string          `json:"eventId"`
	Action    Action          `json:"action"`
	UserID    string          `json:"userId"`
	ProductID string          `json:"productId"`
	ShopID    string          `json:"shopId"`
	Location  *Location       `json:"location,omitempty"`
	Device    json.RawMessage `json:"device,omitempty"`
	TS        int64           `json:"ts"` // milliseconds epoch
	Props     map[string]any  `json:"props,omitempty"`
}

// Time returns the event timestamp, falling back to now when unset.
func (e Event) Time() time.Time {
	if e.TS == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(e.TS).UTC()
}

// ActionEntry is one element of a user's retained action log.
type ActionEntry struct {
	ProductID string    `json:"productId"`
	ShopID    string    `json:"shopId,omitempty"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxUserActions caps the per-user action log; oldest entries are evicted
// first once the cap is exceeded.
const MaxUserActions = 100

// UserAnalyticsRecord is the per-user aggregate, upserted on every
// qualifying event.
type UserAnalyticsRecord struct {
	UserID      string        `json:"userId"`
	Actions     []ActionEntry `json:"actions"`
	LastVisited time.Time     `json:"lastVisited"`
	Country     string        `json:"country,omitempty"`
	City        string        `json:"city,omitempty"`
	Device      string        `json:"device,omitempty"`
}

// ProductAnalyticsRecord is the per-product aggregate. Counters only ever
// grow; a remove event affects the user log, never these counters.
type ProductAnalyticsRecord struct {
	ProductID            string    `json:"productId"`
	ShopID               string    `json:"shopId,omitempty"`
	Views                uint64    `json:"views"`
	Purchases            uint64    `json:"purchases"`
	AddedToCarts         uint64    `json:"addedToCarts"`
	AddedToWishlists     uint64    `json:"addedToWishlists"`
	RemovedFromCarts     uint64    `json:"removedFromCarts"`
	RemovedFromWishlists uint64    `json:"removedFromWishlists"`
	LastVisitedAt        time.Time `json:"lastVisitedAt"`
}

// Counter identifies one of the six product counters.
type Counter string

const (
	CounterViews                Counter = "views"
	CounterPurchases            Counter = "purchases"
	CounterAddedToCarts         Counter = "added_to_carts"
	CounterAddedToWishlists     Counter = "added_to_wishlists"
	CounterRemovedFromCarts     Counter = "removed_from_carts"
	CounterRemovedFromWishlists Counter = "removed_from_wishlists"
)

// CounterFor maps an action to the product counter it increments. The second
// return is false for actions that increment nothing (e.g. SHOP_VISIT).
func CounterFor(a Action) (Counter, bool) {
	switch a {
	case ActionProductView:
		return CounterViews, true
	case ActionPurchase:
		return CounterPurchases, true
	case ActionAddToCart:
		return CounterAddedToCarts, true
	case ActionAddToWishlist:
		return CounterAddedToWishlists, true
	case ActionRemoveFromCart:
		return CounterRemovedFromCarts, true
	case ActionRemoveFromWishlist:
		return CounterRemovedFromWishlists, true
	}
	return "", false
}

// Increment bumps the named counter by one on r.
func (r *ProductAnalyticsRecord) Increment(c Counter) {
	switch c {
	case CounterViews:
		r.Views++
	case CounterPurchases:
		r.Purchases++
	case CounterAddedToCarts:
		r.AddedToCarts++
	case CounterAddedToWishlists:
		r.AddedToWishlists++
	case CounterRemovedFromCarts:
		r.RemovedFromCarts++
	case CounterRemovedFromWishlists:
		r.RemovedFromWishlists++
	}
}
