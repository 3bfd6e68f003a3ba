package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/config"
)

// Config 标签数据服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Persist  config.RetryConfig

	// 标签服务特定配置
	Tag struct {
		Namespace     string        // 主题命名空间，如 "yyy" -> /yyy/+/+/+
		Workers       int           // 分片 worker 数
		QueueSize     int           // 每个 worker 的队列长度
		SequenceTTL   time.Duration // 未完成序列的空闲超时，0 表示不超时
		SweepInterval time.Duration // 清理周期
		ReadingStream string        // Redis Streams 输出流
		StreamMaxLen  int64         // 输出流近似最大长度
	}

	HTTP struct {
		Addr string // 健康检查与指标地址，为空则不启动
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Driver = getEnv("DB_DRIVER", config.DriverSQLite)
	cfg.Database.Path = getEnv("DB_PATH", "location_data.db")
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "PIServer")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	qos := getEnvInt("MQTT_QOS", 1)
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", qos)
	}
	cfg.MQTT.QoS = byte(qos)
	cfg.MQTT.ConnectTimeout = 10 * time.Second

	cfg.Persist.MaxAttempts = getEnvInt("PERSIST_MAX_ATTEMPTS", 3)
	cfg.Persist.InitialBackoff = time.Duration(getEnvInt("PERSIST_INITIAL_BACKOFF_MS", 100)) * time.Millisecond
	cfg.Persist.MaxBackoff = time.Duration(getEnvInt("PERSIST_MAX_BACKOFF_MS", 2000)) * time.Millisecond

	cfg.Tag.Namespace = getEnv("TAG_TOPIC_NAMESPACE", "yyy")
	cfg.Tag.Workers = getEnvInt("TAG_WORKERS", 1)
	cfg.Tag.QueueSize = getEnvInt("TAG_QUEUE_SIZE", 256)
	cfg.Tag.SequenceTTL = time.Duration(getEnvInt("TAG_SEQUENCE_TTL", 60)) * time.Second
	cfg.Tag.SweepInterval = time.Duration(getEnvInt("TAG_SWEEP_INTERVAL", 10)) * time.Second
	cfg.Tag.ReadingStream = getEnv("TAG_READING_STREAM", "tag:reading:stream")
	cfg.Tag.StreamMaxLen = int64(getEnvInt("TAG_READING_STREAM_MAXLEN", 10000))

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":9100")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case config.DriverSQLite, config.DriverPostgres:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: expected %q or %q", c.Database.Driver, config.DriverSQLite, config.DriverPostgres)
	}
	if c.Tag.Namespace == "" || strings.Contains(c.Tag.Namespace, "/") {
		return fmt.Errorf("invalid TAG_TOPIC_NAMESPACE %q", c.Tag.Namespace)
	}
	if c.Tag.Workers < 1 {
		return fmt.Errorf("TAG_WORKERS must be >= 1, got %d", c.Tag.Workers)
	}
	if c.Tag.QueueSize < 1 {
		return fmt.Errorf("TAG_QUEUE_SIZE must be >= 1, got %d", c.Tag.QueueSize)
	}
	if c.Tag.SequenceTTL < 0 {
		return fmt.Errorf("TAG_SEQUENCE_TTL must be >= 0")
	}
	if c.Tag.SequenceTTL > 0 && c.Tag.SweepInterval <= 0 {
		return fmt.Errorf("TAG_SWEEP_INTERVAL must be > 0 when TAG_SEQUENCE_TTL is set")
	}
	if c.Database.MaxConns < 0 || c.Database.MaxIdle < 0 {
		return fmt.Errorf("DB_MAX_CONNS and DB_MAX_IDLE must be >= 0")
	}
	if c.Persist.MaxAttempts < 1 {
		return fmt.Errorf("PERSIST_MAX_ATTEMPTS must be >= 1, got %d", c.Persist.MaxAttempts)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
