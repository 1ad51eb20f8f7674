package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 遥测管线配置
	Ingest struct {
		Topic              string // 遥测主题，如 "health/+/telemetry"
		OfflineTimeoutSec  int    // 设备静默多久标记离线
		SweepIntervalMs    int    // 离线巡检间隔
		DownsampleSec      int    // 降采样窗口（秒），0 表示禁用
		StateTTLSweeps     int    // 状态条目多少个巡检周期未更新后清除
		DispatchShards     int    // 按设备哈希的分片数
		DispatchQueueSize  int    // 每个分片的队列长度
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "healthpulse")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "healthpulse")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":4000")

	cfg.Ingest.Topic = getEnv("TELEMETRY_TOPIC", "health/+/telemetry")
	cfg.Ingest.OfflineTimeoutSec = getEnvInt("OFFLINE_TIMEOUT_SEC", 60)
	cfg.Ingest.SweepIntervalMs = getEnvInt("SWEEP_INTERVAL_MS", 5000)
	cfg.Ingest.DownsampleSec = getEnvInt("DOWNSAMPLE_WINDOW_SEC", 30)
	cfg.Ingest.StateTTLSweeps = getEnvInt("STATE_TTL_SWEEPS", 720)
	cfg.Ingest.DispatchShards = getEnvInt("DISPATCH_SHARDS", 16)
	cfg.Ingest.DispatchQueueSize = getEnvInt("DISPATCH_QUEUE_SIZE", 256)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Ingest.DispatchShards <= 0 {
		return nil, fmt.Errorf("DISPATCH_SHARDS must be positive, got %d", cfg.Ingest.DispatchShards)
	}
	if cfg.Ingest.SweepIntervalMs <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL_MS must be positive, got %d", cfg.Ingest.SweepIntervalMs)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
