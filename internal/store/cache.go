package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recollect-labs/recollect/internal/cluster"
)

const sessionKeyPrefix = "session:"

// CachedStore is a read-through Redis cache in front of a ResultStore.
// Cache misses and Redis failures fall back to the inner store; writes go
// through to the inner store first and only then refresh the cache, so a
// cache entry never outlives a failed persist.
type CachedStore struct {
	inner  cluster.ResultStore
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedStore wraps inner with a Redis result cache.
func NewCachedStore(inner cluster.ResultStore, client *redis.Client, ttl time.Duration, logger *log.Logger) *CachedStore {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Conn dials Redis and verifies the connection.
func Conn(ctx context.Context, host, port, pass string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: pass,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *CachedStore) GetClusteringResult(ctx context.Context, canonicalID string) (*cluster.ClusteringResult, bool, error) {
	key := sessionKeyPrefix + canonicalID
	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var result cluster.ClusteringResult
		if err := json.Unmarshal([]byte(val), &result); err == nil {
			return &result, true, nil
		}
		// A corrupt entry is dropped and re-read from the inner store.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Printf("redis get %s failed, falling back to store: %v", key, err)
	}

	result, found, err := c.inner.GetClusteringResult(ctx, canonicalID)
	if err != nil || !found {
		return result, found, err
	}
	c.fill(ctx, key, result)
	return result, true, nil
}

func (c *CachedStore) SaveClusteringResult(ctx context.Context, ownerID string, result *cluster.ClusteringResult, replaceIfExists bool) (string, error) {
	id, err := c.inner.SaveClusteringResult(ctx, ownerID, result, replaceIfExists)
	if err != nil {
		return id, err
	}
	c.fill(ctx, sessionKeyPrefix+result.SessionIdentifier, result)
	return id, nil
}

func (c *CachedStore) fill(ctx context.Context, key string, result *cluster.ClusteringResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Printf("redis set %s failed: %v", key, err)
	}
}
