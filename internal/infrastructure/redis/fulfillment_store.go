// Package redis keeps fulfillment records in Redis so that several worker
// instances share one view of what was already fulfilled.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/fulfillment"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fulfillment:"

// DefaultTTL outlives Kafka's default 7-day log retention several times over,
// so a replay from the oldest retained offset still finds the key.
const DefaultTTL = 30 * 24 * time.Hour

type FulfillmentStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewFulfillmentStore(rdb redis.Cmdable, ttl time.Duration) *FulfillmentStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FulfillmentStore{rdb: rdb, ttl: ttl}
}

var _ fulfillment.Store = (*FulfillmentStore)(nil)

func Key(orderID string) string { return keyPrefix + orderID }

// Create stores the record with SETNX; the first writer for an order wins.
func (s *FulfillmentStore) Create(ctx context.Context, r fulfillment.Record) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, Key(r.OrderID), r.FulfilledAt.UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: record fulfillment %s: %w", r.OrderID, err)
	}
	return ok, nil
}

// Ping reports whether the server answers, for readiness checks.
func (s *FulfillmentStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
