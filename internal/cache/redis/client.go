package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/metrics"
	"github.com/campus-card/backend/pkg/logger"
)

func NewClient(ctx context.Context, host string, port int, password string, db int) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return client, nil
}

// Store keeps JSON-encoded values under prefix:key with a fixed TTL.
// Redis errors degrade to misses and dropped writes.
type Store[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore[V any](client *redis.Client, prefix string, ttl time.Duration) *Store[V] {
	return &Store[V]{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store[V]) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *Store[V]) Get(ctx context.Context, key string) (V, bool) {
	var value V

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return value, false
	}
	if err != nil {
		logger.Warn("Failed to read cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		logger.Warn("Failed to decode cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		var zero V
		return zero, false
	}

	metrics.CacheHits.WithLabelValues("redis").Inc()
	return value, true
}

func (s *Store[V]) Put(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		logger.Warn("Failed to write cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	logger.Debug("Resolution cached", zap.String("key", key), zap.Duration("ttl", s.ttl))
}

// PurgeExpired is a no-op; Redis expires keys itself.
func (s *Store[V]) PurgeExpired(context.Context) int {
	return 0
}

// Invalidate deletes every key under the store prefix.
func (s *Store[V]) Invalidate(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Resolution cache invalidated", zap.String("prefix", s.prefix))
	return nil
}
