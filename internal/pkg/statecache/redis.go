package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"saot-service/internal/pkg/fingerprint"
	xerrors "saot-service/internal/pkg/errors"
)

const keyPrefix = "state:device:"

// RedisCache persists device state in redis with a TTL so abandoned
// devices age out on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Put(ctx context.Context, state *DeviceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal device state: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+string(state.DeviceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store device state: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, deviceID fingerprint.ID) (*DeviceState, error) {
	data, err := c.client.Get(ctx, keyPrefix+string(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("load device state: %w", err)
	}
	var state DeviceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode device state: %w", err)
	}
	return &state, nil
}

func (c *RedisCache) Clear(ctx context.Context, deviceID fingerprint.ID) error {
	if err := c.client.Del(ctx, keyPrefix+string(deviceID)).Err(); err != nil {
		return fmt.Errorf("clear device state: %w", err)
	}
	return nil
}
