package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-checkout-service/internal/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestCartCache_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCartCache(client, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	cart := &model.Cart{UserID: "u1", Items: []model.CartItem{{ProductID: "p1", Quantity: 2}}}
	require.NoError(t, c.Set(ctx, "u1", cart))

	ttl := mr.TTL("cart:u1")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+20*time.Second+time.Nanosecond)

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	require.NoError(t, c.Delete(ctx, "u1"))
	_, err = c.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCartCache_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCartCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", &model.Cart{UserID: "u1"}))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCartCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCartCache(client, time.Minute)

	require.NoError(t, mr.Set("cart:u1", "{not json"))
	_, err := c.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCartCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCartCache(client, time.Minute)
	mr.Close()

	_, err := c.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestIdempotencyStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	_, ok, err := s.Recall(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := s.TryLock(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = s.TryLock(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, locked)

	// same key from another user is independent
	locked, err = s.TryLock(ctx, "u2", "k1")
	require.NoError(t, err)
	assert.True(t, locked)

	_, ok, err = s.Recall(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, ok, "in-flight claim is not a result")

	require.NoError(t, s.Remember(ctx, "u1", "k1", "order-1"))
	id, ok, err := s.Recall(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", id)
	assert.Equal(t, time.Hour, mr.TTL("idem:u1:k1"))

	require.NoError(t, s.Release(ctx, "u2", "k1"))
	locked, err = s.TryLock(ctx, "u2", "k1")
	require.NoError(t, err)
	assert.True(t, locked)
}
