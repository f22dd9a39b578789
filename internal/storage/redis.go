package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trade-history-sync/internal/config"
)

const redisKeyPrefix = "tradesync:"

// checkAndArmScript compares the stored timestamp (ms) with now and stores
// now when the interval has elapsed. Returns -1 when armed, otherwise the
// remaining milliseconds.
var checkAndArmScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local interval = tonumber(ARGV[2])
	local last = tonumber(redis.call('GET', KEYS[1]) or '0')

	if last and now - last < interval then
		return interval - (now - last)
	end

	redis.call('SET', KEYS[1], ARGV[1])
	return -1
`)

// RedisCache wraps the Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RedisStateStore keeps sync state in Redis strings
type RedisStateStore struct {
	cache *RedisCache
}

// NewRedisStateStore creates a state store on cache
func NewRedisStateStore(cache *RedisCache) *RedisStateStore {
	return &RedisStateStore{cache: cache}
}

// Get returns the value stored under key
func (s *RedisStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.cache.Client().Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry
func (s *RedisStateStore) Set(ctx context.Context, key, value string) error {
	if err := s.cache.Client().Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// CheckAndArm atomically arms the cooldown stored under key
func (s *RedisStateStore) CheckAndArm(ctx context.Context, key string, now time.Time, interval time.Duration) (time.Duration, bool, error) {
	res, err := checkAndArmScript.Run(ctx, s.cache.Client(), []string{redisKeyPrefix + key},
		strconv.FormatInt(now.UnixMilli(), 10), interval.Milliseconds()).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to arm %s: %w", key, err)
	}
	if res < 0 {
		return 0, true, nil
	}
	return time.Duration(res) * time.Millisecond, false, nil
}
