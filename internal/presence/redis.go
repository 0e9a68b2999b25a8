// Package presence mirrors which usernames hold a live connection into Redis
// so that other tooling can observe the relay without calling it.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the presence store.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
	Key          string
}

// DefaultKey is the sorted set holding connected usernames.
const DefaultKey = "pushrelay:presence"

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisStore keeps connected usernames in a sorted set scored by the time
// they connected.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore wraps rdb. An empty key selects DefaultKey.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// MarkOnline adds or refreshes username in the set.
func (s *RedisStore) MarkOnline(ctx context.Context, username string) error {
	err := s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: username,
	}).Err()
	if err != nil {
		return fmt.Errorf("mark %q online: %w", username, err)
	}
	return nil
}

// MarkOffline removes username from the set.
func (s *RedisStore) MarkOffline(ctx context.Context, username string) error {
	if err := s.rdb.ZRem(ctx, s.key, username).Err(); err != nil {
		return fmt.Errorf("mark %q offline: %w", username, err)
	}
	return nil
}

// Online lists the usernames currently marked online, oldest connection first.
func (s *RedisStore) Online(ctx context.Context) ([]string, error) {
	return s.rdb.ZRange(ctx, s.key, 0, -1).Result()
}

// Clear deletes the set. It is called at startup since entries left by a
// previous process no longer have connections behind them.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}
