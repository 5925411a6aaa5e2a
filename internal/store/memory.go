package store

import (
	"context"
	"sync"
	"time"

	"shop-analytics/internal/model"
)

// Memory is an in-process Gateway backed by maps. It exists for unit tests
// and for running the aggregator without a database.
type Memory struct {
	mu       sync.Mutex
	users    map[string]*model.UserAnalyticsRecord
	products map[string]*model.ProductAnalyticsRecord
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*model.UserAnalyticsRecord),
		products: make(map[string]*model.ProductAnalyticsRecord),
	}
}

func (m *Memory) ReadUserActions(_ context.Context, userID string) ([]model.ActionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return append([]model.ActionEntry(nil), rec.Actions...), nil
}

func (m *Memory) UpsertUserAnalytics(_ context.Context, userID string, fields UserRecordFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[userID]
	if !ok {
		rec = &model.UserAnalyticsRecord{UserID: userID}
		m.users[userID] = rec
	}
	rec.Actions = append([]model.ActionEntry(nil), fields.Actions...)
	rec.LastVisited = fields.LastVisited
	if fields.Country != "" {
		rec.Country = fields.Country
	}
	if fields.City != "" {
		rec.City = fields.City
	}
	if fields.Device != "" {
		rec.Device = fields.Device
	}
	return nil
}

func (m *Memory) UpsertProductAnalytics(_ context.Context, productID, shopID string, counter model.Counter, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.products[productID]
	if !ok {
		rec = &model.ProductAnalyticsRecord{ProductID: productID, ShopID: shopID}
		m.products[productID] = rec
	}
	rec.Increment(counter)
	rec.LastVisitedAt = at
	return nil
}

// User returns a copy of the stored record for a user, or nil.
func (m *Memory) User(userID string) *model.UserAnalyticsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[userID]
	if !ok {
		return nil
	}
	cp := *rec
	cp.Actions = append([]model.ActionEntry(nil), rec.Actions...)
	return &cp
}

// Product returns a copy of the stored record for a product, or nil.
func (m *Memory) Product(productID string) *model.ProductAnalyticsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.products[productID]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Len reports how many user and product records exist.
func (m *Memory) Len() (users, products int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), len(m.products)
}
