package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockValue = "-"
	lockTTL   = 30 * time.Second
)

// RedisIdempotencyStore asocia el X-Idempotency-Key del cliente con la orden
// que generó. Las claves son por usuario.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

// TryLock toma la clave para un pedido en curso. Devuelve false si ya está
// tomada o ya tiene una orden asociada.
func (s *RedisIdempotencyStore) TryLock(ctx context.Context, userID, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, idemKey(userID, key), lockValue, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Remember asocia la clave con orderID durante el TTL configurado.
func (s *RedisIdempotencyStore) Remember(ctx context.Context, userID, key, orderID string) error {
	if err := s.client.Set(ctx, idemKey(userID, key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Release suelta la clave para que el cliente reintente después de un error.
func (s *RedisIdempotencyStore) Release(ctx context.Context, userID, key string) error {
	if err := s.client.Del(ctx, idemKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Recall devuelve la orden asociada a key. Una clave en curso no cuenta.
func (s *RedisIdempotencyStore) Recall(ctx context.Context, userID, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, idemKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	if v == lockValue {
		return "", false, nil
	}
	return v, true, nil
}

func idemKey(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}
