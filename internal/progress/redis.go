package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/interview-engine/internal/models"
)

const defaultUpdateRetries = 5

// RedisStore keeps progress as JSON values, one key per candidate task.
// Updates use WATCH/MULTI so concurrent instances never interleave writes.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	retries int
}

// NewRedisStore creates a store; ttl 0 keeps entries forever
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "progress:"
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		retries: defaultUpdateRetries,
	}
}

func (s *RedisStore) redisKey(key models.ProgressKey) string {
	return s.prefix + key.String()
}

// Load fetches and decodes the stored progress
func (s *RedisStore) Load(ctx context.Context, key models.ProgressKey) (*models.StageProgress, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p models.StageProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

// Update runs fn inside an optimistic transaction, retrying when the key changed underneath
func (s *RedisStore) Update(ctx context.Context, key models.ProgressKey, fn UpdateFunc) (*models.StageProgress, error) {
	rk := s.redisKey(key)

	for attempt := 0; attempt < s.retries; attempt++ {
		var result *models.StageProgress

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			p := models.NewStageProgress(key)

			data, err := tx.Get(ctx, rk).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return fmt.Errorf("failed to load progress: %w", err)
			default:
				if err := json.Unmarshal(data, p); err != nil {
					return fmt.Errorf("failed to decode progress: %w", err)
				}
			}

			if err := fn(p); err != nil {
				return err
			}

			payload, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode progress: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, rk, payload, s.ttl)
				return nil
			})
			if err != nil {
				return err
			}

			result = p
			return nil
		}, rk)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, ErrConflict
}

// Clear deletes the stored progress
func (s *RedisStore) Clear(ctx context.Context, key models.ProgressKey) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}
