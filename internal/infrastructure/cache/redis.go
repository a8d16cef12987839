package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

const (
	// progressKeyPrefix is the prefix for progress hashes in Redis.
	// One hash per footage item, one field per quality.
	progressKeyPrefix = "progress:"

	// DefaultProgressTTL bounds how long an abandoned hash survives.
	DefaultProgressTTL = 24 * time.Hour
)

// progressJSON is the JSON representation of a progress entry inside a hash field.
// Using explicit struct avoids coupling to domain model's JSON tags.
type progressJSON struct {
	Percent   int    `json:"percent"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// RedisProgressStore implements repository.ProgressStore on Redis hashes.
// HSET overwrites a single field, so each (footage, quality) pair keeps
// exactly one entry and the last write wins.
type RedisProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressStore creates a new Redis-backed progress store.
// A non-positive ttl falls back to DefaultProgressTTL.
func NewRedisProgressStore(client *redis.Client, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &RedisProgressStore{
		client: client,
		ttl:    ttl,
	}
}

// Upsert writes the entry for (footageID, quality) and refreshes the hash TTL.
func (s *RedisProgressStore) Upsert(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus) error {
	data, err := json.Marshal(progressJSON{
		Percent:   model.ClampPercent(percent),
		Status:    status.String(),
		UpdatedAt: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("serialize progress: %w", err)
	}

	key := s.buildKey(footageID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, quality, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}

	return nil
}

// ReadAll returns every entry in the footage hash keyed by quality.
// A missing hash yields an empty map.
func (s *RedisProgressStore) ReadAll(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.buildKey(footageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	entries := make(map[string]model.ProgressEntry, len(fields))
	for quality, raw := range fields {
		var v progressJSON
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("deserialize progress %s: %w", quality, err)
		}

		updatedAt, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}

		entries[quality] = model.ProgressEntry{
			FootageID: footageID,
			Quality:   quality,
			Percent:   v.Percent,
			Status:    model.ProgressStatus(v.Status),
			UpdatedAt: updatedAt,
		}
	}

	return entries, nil
}

// ClearAll removes the footage hash.
func (s *RedisProgressStore) ClearAll(ctx context.Context, footageID int64) error {
	if err := s.client.Del(ctx, s.buildKey(footageID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// buildKey constructs the Redis key for a footage item.
func (s *RedisProgressStore) buildKey(footageID int64) string {
	return progressKeyPrefix + strconv.FormatInt(footageID, 10)
}

// Compile-time verification that RedisProgressStore implements repository.ProgressStore.
var _ repository.ProgressStore = (*RedisProgressStore)(nil)
