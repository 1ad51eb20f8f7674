package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

const latestKeyPrefix = "healthpulse:device:"
const latestKeySuffix = ":latest"

// LatestCache 每设备最新读数缓存
// TTL 与离线超时一致：设备静默到被判离线时缓存随之过期
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLatestCache 创建最新读数缓存
func NewLatestCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LatestCache {
	return &LatestCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Key 构建缓存键
func Key(deviceID string) string {
	return latestKeyPrefix + deviceID + latestKeySuffix
}

// SetLatest 写入设备最新读数
func (c *LatestCache) SetLatest(ctx context.Context, m *models.Measurement) error {
	jsonData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal measurement: %w", err)
	}

	if err := c.client.Set(ctx, Key(m.DeviceID), jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest measurement: %w", err)
	}

	return nil
}

// GetLatest 读取设备最新读数
func (c *LatestCache) GetLatest(ctx context.Context, deviceID string) (*models.Measurement, error) {
	val, err := c.client.Get(ctx, Key(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get latest measurement: %w", err)
	}

	var m models.Measurement
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached measurement: %w", err)
	}

	return &m, nil
}
