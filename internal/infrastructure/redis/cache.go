package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// ViewCache is a generic JSON-backed cache for one report view type T. Misses
// and cache errors are never fatal; callers fall back to recomputing.
type ViewCache[T any] struct {
	client *Client
	ttl    time.Duration
}

func NewViewCache[T any](client *Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

// Get retrieves and unmarshals a cached value. Returns (zero, false) on any
// miss or deserialization error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, false
	}
	return v, true
}

// Set marshals and stores a value. Errors are logged, not returned.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("ViewCache: marshal error for key %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("ViewCache: write error for key %s: %v", key, err)
	}
}

// Report view keys are all prefixed per user so invalidation after a sync can
// drop everything for that user in one pass.

func SummaryKey(userID int64) string {
	return fmt.Sprintf("report:%d:summary", userID)
}

func MonthlySeriesKey(userID int64, months int) string {
	return fmt.Sprintf("report:%d:monthly:%d", userID, months)
}

func DailySeriesKey(userID int64) string {
	return fmt.Sprintf("report:%d:daily", userID)
}

func CategoriesKey(userID int64) string {
	return fmt.Sprintf("report:%d:categories", userID)
}

// Invalidator deletes all cached report views for a user.
type Invalidator struct {
	client *Client
}

func NewInvalidator(client *Client) *Invalidator {
	return &Invalidator{client: client}
}

// InvalidateUser scans and deletes every report key belonging to the user.
func (i *Invalidator) InvalidateUser(ctx context.Context, userID int64) error {
	pattern := fmt.Sprintf("report:%d:*", userID)

	iter := i.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan report keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete report keys: %w", err)
	}
	return nil
}
