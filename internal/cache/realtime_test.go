package cache

import (
	"context"
	"testing"
	"time"

	"ecosmart-monitor/internal/config"
	"ecosmart-monitor/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*RealtimeCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.MonitorConfig{}
	cfg.Cache.KeyPrefix = "ecosmart:plot:"
	cfg.Cache.Suffix = ":latest"
	cfg.Cache.TTL = 120

	return NewRealtimeCache(NewRedisKVStore(client), cfg, zap.NewNop()), mr
}

func TestRealtimeCache_StoreAndGetLatest(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	reading := &models.SensorReading{
		ID:           42,
		PlotID:       "plot-1",
		SoilMoisture: 55.5,
		SoilPH:       6.8,
		Temperature:  21.3,
		Nitrogen:     74.1,
		Phosphorus:   33.2,
		Potassium:    107.0,
		Timestamp:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, c.StoreLatest(ctx, reading))

	got, err := c.GetLatest(ctx, "plot-1")
	require.NoError(t, err)
	assert.Equal(t, reading.PlotID, got.PlotID)
	assert.Equal(t, reading.SoilPH, got.SoilPH)
	assert.True(t, reading.Timestamp.Equal(got.Timestamp))
}

func TestRealtimeCache_GetLatestMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	_, err := c.GetLatest(context.Background(), "plot-unknown")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRealtimeCache_KeyAndTTL(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	reading := &models.SensorReading{PlotID: "plot-7", Timestamp: time.Now().UTC()}
	require.NoError(t, c.StoreLatest(ctx, reading))

	assert.True(t, mr.Exists("ecosmart:plot:plot-7:latest"))
	ttl := mr.TTL("ecosmart:plot:plot-7:latest")
	assert.Equal(t, 120*time.Second, ttl)
}

func TestRealtimeCache_OverwriteKeepsNewest(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	first := &models.SensorReading{PlotID: "plot-2", Temperature: 18.0, Timestamp: time.Now().UTC()}
	second := &models.SensorReading{PlotID: "plot-2", Temperature: 24.5, Timestamp: time.Now().UTC()}
	require.NoError(t, c.StoreLatest(ctx, first))
	require.NoError(t, c.StoreLatest(ctx, second))

	got, err := c.GetLatest(ctx, "plot-2")
	require.NoError(t, err)
	assert.Equal(t, 24.5, got.Temperature)
}
