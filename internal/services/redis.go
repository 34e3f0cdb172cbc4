package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks the Redis server holding progress, quota and rate limits
type RedisChecker struct {
	BaseChecker
	client *redis.Client
	prefix string
}

// NewRedisChecker creates a checker; prefix is the progress key prefix counted in Describe
func NewRedisChecker(client *redis.Client, prefix string) *RedisChecker {
	return &RedisChecker{
		BaseChecker: BaseChecker{name: "redis"},
		client:      client,
		prefix:      prefix,
	}
}

// HealthCheck verifies Redis connectivity
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Describe reports how many progress entries are stored
func (r *RedisChecker) Describe(ctx context.Context) (map[string]any, error) {
	if r.prefix == "" {
		return nil, nil
	}

	n, err := r.CountKeys(ctx, r.prefix+"*")
	if err != nil {
		return nil, err
	}
	return map[string]any{"progress_entries": n}, nil
}

// CountKeys counts keys matching pattern with SCAN
func (r *RedisChecker) CountKeys(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	count := 0

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return count, nil
}
