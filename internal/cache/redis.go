package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

const searchKeyPrefix = "docgraph:search:"

// Redis shares cached search results between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) generateKey(key string) string {
	return fmt.Sprintf("%s%s", searchKeyPrefix, key)
}

func (r *Redis) Get(ctx context.Context, key string) ([]storage.SearchHit, bool, error) {
	data, err := r.client.Get(ctx, r.generateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var hits []storage.SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, false, fmt.Errorf("decode cached hits: %w", err)
	}
	return hits, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, hits []storage.SearchHit) error {
	data, err := json.Marshal(hits)
	if err != nil {
		return fmt.Errorf("encode hits: %w", err)
	}
	// A zero ttl stores the key without expiry.
	return r.client.Set(ctx, r.generateKey(key), data, r.ttl).Err()
}
