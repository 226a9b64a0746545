package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/fulfillment"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "fulfillment:abc", Key("abc"))
}

func TestDefaultTTLOutlivesBrokerRetention(t *testing.T) {
	t.Parallel()
	const kafkaDefaultRetention = 7 * 24 * time.Hour
	assert.GreaterOrEqual(t, DefaultTTL, 4*kafkaDefaultRetention)
	assert.Equal(t, 42*time.Hour, NewFulfillmentStore(nil, 42*time.Hour).ttl)
}

func TestCreateSurfacesConnectionErrors(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewFulfillmentStore(rdb, 0)
	assert.Equal(t, DefaultTTL, store.ttl)

	created, err := store.Create(context.Background(), fulfillment.Record{OrderID: "o-1", FulfilledAt: time.Now()})
	require.Error(t, err)
	assert.False(t, created)
	assert.Contains(t, err.Error(), "o-1")
}
