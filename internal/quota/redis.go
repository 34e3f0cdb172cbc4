package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sets the window expiry on the first increment only
const addScript = `
local current = redis.call("INCRBY", KEYS[1], ARGV[1])
if current == tonumber(ARGV[1]) and tonumber(ARGV[2]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return current
`

// RedisCounter keeps usage in a Redis key shared by every instance
type RedisCounter struct {
	client *redis.Client
	key    string
	window time.Duration
	script *redis.Script
}

// NewRedisCounter creates a counter under key. A positive window resets the
// total window after the first usage; zero keeps it forever.
func NewRedisCounter(client *redis.Client, key string, window time.Duration) *RedisCounter {
	if key == "" {
		key = "quota:tokens"
	}
	return &RedisCounter{
		client: client,
		key:    key,
		window: window,
		script: redis.NewScript(addScript),
	}
}

// Used returns the current total, 0 when the key is absent
func (c *RedisCounter) Used(ctx context.Context) (int64, error) {
	used, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token usage: %w", err)
	}
	return used, nil
}

// Add increments the total atomically
func (c *RedisCounter) Add(ctx context.Context, tokens int64) (int64, error) {
	ttl := c.window.Milliseconds()
	if ttl < 0 {
		ttl = 0
	}

	total, err := c.script.Run(ctx, c.client, []string{c.key}, tokens, ttl).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to add token usage: %w", err)
	}
	return total, nil
}
