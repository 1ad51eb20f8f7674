package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

func newCacheWithMiniredis(t *testing.T, ttl time.Duration) (*LatestCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewLatestCache(client, ttl, zap.NewNop()), mr
}

func TestLatestCache_SetAndGet(t *testing.T) {
	cache, _ := newCacheWithMiniredis(t, time.Minute)
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	hr := 72.0
	contact := true

	m := &models.Measurement{
		DeviceID:  "dev-001",
		Timestamp: ts,
		HR:        &hr,
		Contact:   &contact,
	}

	require.NoError(t, cache.SetLatest(context.Background(), m))

	got, err := cache.GetLatest(context.Background(), "dev-001")
	require.NoError(t, err)
	assert.Equal(t, "dev-001", got.DeviceID)
	assert.True(t, got.Timestamp.Equal(ts))
	require.NotNil(t, got.HR)
	assert.Equal(t, 72.0, *got.HR)
	require.NotNil(t, got.Contact)
	assert.True(t, *got.Contact)
}

func TestLatestCache_Miss(t *testing.T) {
	cache, _ := newCacheWithMiniredis(t, time.Minute)

	_, err := cache.GetLatest(context.Background(), "dev-missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLatestCache_TTLExpiry(t *testing.T) {
	cache, mr := newCacheWithMiniredis(t, time.Minute)
	hr := 72.0

	m := &models.Measurement{
		DeviceID:  "dev-001",
		Timestamp: time.Now().UTC(),
		HR:        &hr,
	}
	require.NoError(t, cache.SetLatest(context.Background(), m))

	// 离线超时后缓存过期
	mr.FastForward(time.Minute + time.Second)

	_, err := cache.GetLatest(context.Background(), "dev-001")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "healthpulse:device:dev-001:latest", Key("dev-001"))
}
