// Package state provides the Redis-backed checkpoint store, used when
// batch progress should survive independently of the primary database.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealersync/internal/syncer"

	"github.com/redis/go-redis/v9"
)

// StaleStateTTL bounds how long an abandoned checkpoint lingers. A run
// that is never resumed expires instead of pinning a stale snapshot of
// the remote inventory forever.
const StaleStateTTL = 24 * time.Hour

// RedisConfig holds connection settings for the checkpoint store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCheckpointStore keeps the resumable batch state in Redis.
type RedisCheckpointStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCheckpointStore connects and verifies the Redis instance is
// reachable before returning.
func NewRedisCheckpointStore(cfg RedisConfig) (*RedisCheckpointStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "dealersync:batch_state"
	}

	return &RedisCheckpointStore{client: client, keyPrefix: keyPrefix}, nil
}

func (r *RedisCheckpointStore) key(targetID string) string {
	return r.keyPrefix + ":" + targetID
}

func (r *RedisCheckpointStore) Load(ctx context.Context, targetID string) (*syncer.BatchState, error) {
	raw, err := r.client.Get(ctx, r.key(targetID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load batch state: %w", err)
	}

	var st syncer.BatchState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", syncer.ErrStateCorrupt, err)
	}
	return &st, nil
}

func (r *RedisCheckpointStore) Save(ctx context.Context, targetID string, st *syncer.BatchState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode batch state: %w", err)
	}
	return r.client.Set(ctx, r.key(targetID), raw, StaleStateTTL).Err()
}

func (r *RedisCheckpointStore) Clear(ctx context.Context, targetID string) error {
	return r.client.Del(ctx, r.key(targetID)).Err()
}

func (r *RedisCheckpointStore) Close() error {
	return r.client.Close()
}
