package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront-platform/backend/services/cart-service/cart"
)

// RedisCartStorage keeps one JSON list of items per store and shopper. Every
// save refreshes the TTL so active carts do not expire.
type RedisCartStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStorage(client *redis.Client, ttl time.Duration) *RedisCartStorage {
	return &RedisCartStorage{client: client, ttl: ttl}
}

func cartKey(key cart.Key) string {
	return fmt.Sprintf("cart:store:%s:shopper:%s", key.StoreID, key.ShopperID)
}

func (r *RedisCartStorage) Load(ctx context.Context, key cart.Key) ([]cart.Item, error) {
	data, err := r.client.Get(ctx, cartKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []cart.Item{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []cart.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cartKey(key), err)
	}
	return items, nil
}

func (r *RedisCartStorage) Save(ctx context.Context, key cart.Key, items []cart.Item) error {
	if items == nil {
		items = []cart.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cartKey(key), data, r.ttl).Err()
}

func idemKey(key string) string {
	return "idem:checkout:" + key
}

// GetIdempotency returns the checkout id recorded for key, or "".
func (r *RedisCartStorage) GetIdempotency(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisCartStorage) SetIdempotency(ctx context.Context, key, checkoutID string, ttl time.Duration) error {
	return r.client.Set(ctx, idemKey(key), checkoutID, ttl).Err()
}
