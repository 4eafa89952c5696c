package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/options-edge-scanner/internal/config"
)

// indexKey is the sorted set ordering snapshot keys by save time.
const indexKey = "strategy:index"

// RedisStore persists snapshots as JSON blobs with a sorted-set index for
// newest-first listing.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Save(ctx context.Context, snapshot Snapshot) (string, error) {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now()
	}
	snapshot.SchemaVersion = SchemaVersion
	key := snapshot.Key()

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, blob, 0)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(snapshot.SavedAt.UnixNano()),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	return key, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Snapshot, error) {
	blob, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisStore) List(ctx context.Context) ([]Snapshot, error) {
	keys, err := r.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	blobs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	out := make([]Snapshot, 0, len(blobs))
	for _, blob := range blobs {
		s, ok := blob.(string)
		if !ok {
			continue // index entry whose blob expired
		}
		var snapshot Snapshot
		if err := json.Unmarshal([]byte(s), &snapshot); err != nil {
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
