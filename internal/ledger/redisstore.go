package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bulwise/bulwise/config"
)

// RedisStore keeps the usage period in a single Redis key, making Redis the
// authoritative record when more than one process shares the budget.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	key := cfg.Key
	if key == "" {
		key = "bulwise:usage_ledger"
	}
	return &RedisStore{client: client, key: key}, nil
}

// NewRedisStoreWithClient wraps an existing client, for tests.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (UsagePeriod, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return UsagePeriod{}, false, nil
	}
	if err != nil {
		return UsagePeriod{}, false, err
	}
	var period UsagePeriod
	if err := json.Unmarshal(raw, &period); err != nil {
		return UsagePeriod{}, false, fmt.Errorf("parse ledger key %s: %w", s.key, err)
	}
	return period, true, nil
}

func (s *RedisStore) Save(ctx context.Context, period UsagePeriod) error {
	raw, err := json.Marshal(period)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error { return s.client.Close() }
