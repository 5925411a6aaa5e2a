package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"shop-analytics/internal/model"
)

// ClickHouse implements Gateway on top of two ReplacingMergeTree tables.
// An upsert reads the current row version, merges, and inserts a fresh row
// stamped with updated_at; the newest version wins at merge/FINAL time, so
// each upsert is a single atomic INSERT per key.
type ClickHouse struct {
	db *sql.DB
}

// NewClickHouse opens a connection from a DSN and verifies it.
func NewClickHouse(ctx context.Context, dsn string) (*ClickHouse, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &ClickHouse{db: db}, nil
}

// Close releases database resources.
func (c *ClickHouse) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Ping ensures the database is reachable.
func (c *ClickHouse) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// EnsureSchema creates both aggregate tables if they do not exist.
func (c *ClickHouse) EnsureSchema(ctx context.Context) error {
	const users = `
CREATE TABLE IF NOT EXISTS user_analytics
(
  user_id       String,
  actions       String,
  last_visited  DateTime64(3, 'UTC'),
  country       LowCardinality(String),
  city          String,
  device        String,
  updated_at    DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(updated_at)
ORDER BY user_id`
	const products = `
CREATE TABLE IF NOT EXISTS product_analytics
(
  product_id              String,
  shop_id                 String,
  views                   UInt64,
  purchases               UInt64,
  added_to_carts          UInt64,
  added_to_wishlists      UInt64,
  removed_from_carts      UInt64,
  removed_from_wishlists  UInt64,
  last_visited_at         DateTime64(3, 'UTC'),
  updated_at              DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(updated_at)
ORDER BY product_id`
	if _, err := c.db.ExecContext(ctx, users); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, products)
	return err
}

// ReadUserActions returns the retained action log for a user, or (nil, nil)
// when no record exists.
func (c *ClickHouse) ReadUserActions(ctx context.Context, userID string) ([]model.ActionEntry, error) {
	rec, err := c.ReadUserAnalytics(ctx, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Actions, nil
}

// ReadUserAnalytics returns the full user record, or nil when absent.
func (c *ClickHouse) ReadUserAnalytics(ctx context.Context, userID string) (*model.UserAnalyticsRecord, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT actions, last_visited, country, city, device
FROM user_analytics FINAL
WHERE user_id = ?`, userID)
	var (
		actionsJSON string
		rec         = model.UserAnalyticsRecord{UserID: userID}
	)
	err := row.Scan(&actionsJSON, &rec.LastVisited, &rec.Country, &rec.City, &rec.Device)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user analytics %s: %w", userID, err)
	}
	if actionsJSON != "" {
		if err := json.Unmarshal([]byte(actionsJSON), &rec.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for %s: %w", userID, err)
		}
	}
	return &rec, nil
}

// UpsertUserAnalytics writes a new row version for the user. Country, city
// and device merge against the current row: empty incoming values keep what
// is already stored.
func (c *ClickHouse) UpsertUserAnalytics(ctx context.Context, userID string, fields UserRecordFields) error {
	existing, err := c.ReadUserAnalytics(ctx, userID)
	if err != nil {
		return err
	}
	merged := model.UserAnalyticsRecord{
		UserID:      userID,
		Actions:     fields.Actions,
		LastVisited: fields.LastVisited,
		Country:     fields.Country,
		City:        fields.City,
		Device:      fields.Device,
	}
	if existing != nil {
		if merged.Country == "" {
			merged.Country = existing.Country
		}
		if merged.City == "" {
			merged.City = existing.City
		}
		if merged.Device == "" {
			merged.Device = existing.Device
		}
	}
	actionsJSON, err := json.Marshal(merged.Actions)
	if err != nil {
		return fmt.Errorf("encode actions for %s: %w", userID, err)
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO user_analytics (user_id, actions, last_visited, country, city, device, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		merged.UserID,
		string(actionsJSON),
		merged.LastVisited,
		merged.Country,
		merged.City,
		merged.Device,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert user analytics %s: %w", userID, err)
	}
	return nil
}

// ReadProductAnalytics returns the product record, or nil when absent.
func (c *ClickHouse) ReadProductAnalytics(ctx context.Context, productID string) (*model.ProductAnalyticsRecord, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT shop_id, views, purchases, added_to_carts, added_to_wishlists,
       removed_from_carts, removed_from_wishlists, last_visited_at
FROM product_analytics FINAL
WHERE product_id = ?`, productID)
	rec := model.ProductAnalyticsRecord{ProductID: productID}
	err := row.Scan(
		&rec.ShopID,
		&rec.Views,
		&rec.Purchases,
		&rec.AddedToCarts,
		&rec.AddedToWishlists,
		&rec.RemovedFromCarts,
		&rec.RemovedFromWishlists,
		&rec.LastVisitedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read product analytics %s: %w", productID, err)
	}
	return &rec, nil
}

// UpsertProductAnalytics seeds a fresh record from the counter on create,
// or bumps that single counter on update. ShopID never changes after
// creation.
func (c *ClickHouse) UpsertProductAnalytics(ctx context.Context, productID, shopID string, counter model.Counter, at time.Time) error {
	existing, err := c.ReadProductAnalytics(ctx, productID)
	if err != nil {
		return err
	}
	rec := model.ProductAnalyticsRecord{ProductID: productID, ShopID: shopID}
	if existing != nil {
		rec = *existing
	}
	rec.Increment(counter)
	rec.LastVisitedAt = at
	_, err = c.db.ExecContext(ctx, `
INSERT INTO product_analytics (
	product_id, shop_id, views, purchases, added_to_carts, added_to_wishlists,
	removed_from_carts, removed_from_wishlists, last_visited_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ProductID,
		rec.ShopID,
		rec.Views,
		rec.Purchases,
		rec.AddedToCarts,
		rec.AddedToWishlists,
		rec.RemovedFromCarts,
		rec.RemovedFromWishlists,
		rec.LastVisitedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert product analytics %s: %w", productID, err)
	}
	return nil
}

// TopProduct holds one row of the top-products ranking.
type TopProduct struct {
	ProductID string `json:"productId"`
	ShopID    string `json:"shopId"`
	Views     uint64 `json:"views"`
	Purchases uint64 `json:"purchases"`
}

// TopProducts returns products ordered by views, optionally scoped to a shop.
func (c *ClickHouse) TopProducts(ctx context.Context, shopID string, limit int) ([]TopProduct, error) {
	query := `
SELECT product_id, shop_id, views, purchases
FROM product_analytics FINAL`
	args := []any{}
	if shopID != "" {
		query += `
WHERE shop_id = ?`
		args = append(args, shopID)
	}
	query += `
ORDER BY views DESC
LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.ShopID, &p.Views, &p.Purchases); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
