// Package redis provides redis-backed stores for volatile coordination
// state that multiple processes share: the telegram update offset and
// geofence notification cooldowns.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	updateOffsetKey   = "geomail:telegram:update_offset"
	cooldownKeyPrefix = "geomail:cooldown:"
)

// Store implements persistence.PairingStateStore and persistence.CooldownStore
// on a redis connection.
type Store struct {
	client redis.UniversalClient
}

// NewStore connects to redis at the given URL (redis://host:port/db).
func NewStore(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client, for tests.
func NewStoreWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// UpdateOffset returns the last processed bot update id, 0 if none.
func (s *Store) UpdateOffset(ctx context.Context) (int64, error) {
	offset, err := s.client.Get(ctx, updateOffsetKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read update offset: %w", err)
	}

	return offset, nil
}

// SetUpdateOffset persists the last processed bot update id.
func (s *Store) SetUpdateOffset(ctx context.Context, offset int64) error {
	err := s.client.Set(ctx, updateOffsetKey, offset, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to persist update offset: %w", err)
	}

	return nil
}

// TryAcquire begins a suppression window for key using SET NX with a TTL,
// which makes the check-and-set atomic across processes.
func (s *Store) TryAcquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, cooldownKeyPrefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cooldown for %s: %w", key, err)
	}

	return acquired, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}
