package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates the key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// KVStore abstracts the KV backend so unit tests can swap Redis out.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore is the go-redis backed KV implementation.
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// RealtimeCache keeps the most recent reading of each plot in a TTL'd KV
// entry so latest-value queries skip the database.
type RealtimeCache struct {
	kv     KVStore
	cfg    *config.MonitorConfig
	logger *zap.Logger
}

// NewRealtimeCache creates a realtime cache manager.
func NewRealtimeCache(kv KVStore, cfg *config.MonitorConfig, logger *zap.Logger) *RealtimeCache {
	return &RealtimeCache{
		kv:     kv,
		cfg:    cfg,
		logger: logger,
	}
}

func (c *RealtimeCache) key(plotID string) string {
	return c.cfg.Cache.KeyPrefix + plotID + c.cfg.Cache.Suffix
}

// StoreLatest caches the reading as the plot's latest.
func (c *RealtimeCache) StoreLatest(ctx context.Context, reading *models.SensorReading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	ttl := time.Duration(c.cfg.Cache.TTL) * time.Second
	if err := c.kv.Set(ctx, c.key(reading.PlotID), string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// GetLatest returns the cached latest reading, or ErrCacheMiss.
func (c *RealtimeCache) GetLatest(ctx context.Context, plotID string) (*models.SensorReading, error) {
	val, err := c.kv.Get(ctx, c.key(plotID))
	if err != nil {
		if err == ErrCacheMiss {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var reading models.SensorReading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}

	return &reading, nil
}
