package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Expected DB_DRIVER default 'sqlite3', got '%s'", cfg.Database.Driver)
	}

	if cfg.Database.Path != "location_data.db" {
		t.Errorf("Expected DB_PATH default 'location_data.db', got '%s'", cfg.Database.Path)
	}

	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Expected MQTT_BROKER default 'tcp://localhost:1883', got '%s'", cfg.MQTT.Broker)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("Expected MQTT_QOS default 1, got %d", cfg.MQTT.QoS)
	}

	if cfg.Tag.Namespace != "yyy" {
		t.Errorf("Expected TAG_TOPIC_NAMESPACE default 'yyy', got '%s'", cfg.Tag.Namespace)
	}

	if cfg.Tag.Workers != 1 {
		t.Errorf("Expected TAG_WORKERS default 1, got %d", cfg.Tag.Workers)
	}

	if cfg.Tag.SequenceTTL != 60*time.Second {
		t.Errorf("Expected TAG_SEQUENCE_TTL default 60s, got %s", cfg.Tag.SequenceTTL)
	}

	if cfg.Persist.MaxAttempts != 3 {
		t.Errorf("Expected PERSIST_MAX_ATTEMPTS default 3, got %d", cfg.Persist.MaxAttempts)
	}

	if cfg.Redis.Enabled() {
		t.Errorf("Expected redis disabled by default, got addr '%s'", cfg.Redis.Addr)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}

	if cfg.Database.MaxConns != 10 || cfg.Database.MaxIdle != 5 {
		t.Errorf("Expected pool defaults 10/5, got %d/%d", cfg.Database.MaxConns, cfg.Database.MaxIdle)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_DRIVER", "postgres")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "6543")
	os.Setenv("TAG_TOPIC_NAMESPACE", "site7")
	os.Setenv("TAG_WORKERS", "4")
	os.Setenv("TAG_SEQUENCE_TTL", "0")
	os.Setenv("PERSIST_INITIAL_BACKOFF_MS", "250")
	os.Setenv("REDIS_ADDR", "redis:6379")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("DB_MAX_CONNS", "20")
	os.Setenv("DB_MAX_IDLE", "2")

	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected DB_DRIVER 'postgres', got '%s'", cfg.Database.Driver)
	}

	if cfg.Database.Host != "test-host" || cfg.Database.Port != 6543 {
		t.Errorf("Expected test-host:6543, got %s:%d", cfg.Database.Host, cfg.Database.Port)
	}

	if cfg.Tag.Namespace != "site7" {
		t.Errorf("Expected namespace 'site7', got '%s'", cfg.Tag.Namespace)
	}

	if cfg.Tag.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Tag.Workers)
	}

	if cfg.Tag.SequenceTTL != 0 {
		t.Errorf("Expected TTL disabled, got %s", cfg.Tag.SequenceTTL)
	}

	if cfg.Persist.InitialBackoff != 250*time.Millisecond {
		t.Errorf("Expected 250ms backoff, got %s", cfg.Persist.InitialBackoff)
	}

	if !cfg.Redis.Enabled() {
		t.Errorf("Expected redis enabled")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}

	if cfg.Database.MaxConns != 20 || cfg.Database.MaxIdle != 2 {
		t.Errorf("Expected pool 20/2, got %d/%d", cfg.Database.MaxConns, cfg.Database.MaxIdle)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"DB_DRIVER":            "mysql",
		"TAG_TOPIC_NAMESPACE":  "a/b",
		"TAG_WORKERS":          "0",
		"TAG_QUEUE_SIZE":       "0",
		"PERSIST_MAX_ATTEMPTS": "0",
		"MQTT_QOS":             "3",
		"DB_MAX_CONNS":         "-1",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(key, value)
			defer os.Clearenv()

			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", key, value)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_INT", "12")
	defer os.Unsetenv("TEST_INT")

	if v := getEnvInt("TEST_INT", 1); v != 12 {
		t.Errorf("Expected 12, got %d", v)
	}

	// 非数字回退默认值
	os.Setenv("TEST_INT", "abc")
	if v := getEnvInt("TEST_INT", 7); v != 7 {
		t.Errorf("Expected default 7, got %d", v)
	}

	if v := getEnvInt("NON_EXISTENT_INT", 3); v != 3 {
		t.Errorf("Expected default 3, got %d", v)
	}
}

func TestLoad_QoSOutsideByteRange(t *testing.T) {
	for _, value := range []string{"257", "-1", "258"} {
		t.Run(value, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("MQTT_QOS", value)
			defer os.Clearenv()

			if _, err := Load(); err == nil {
				t.Errorf("Expected error for MQTT_QOS=%s", value)
			}
		})
	}
}
