package server

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("MaxMessageSize = %d, want 512", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.PingInterval != 54*time.Second {
		t.Errorf("PingInterval = %v, want 54s", cfg.PingInterval)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("MAX_PUBLISH_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("PING_INTERVAL", "20")
	t.Setenv("SHUTDOWN_TIMEOUT", "4")
	t.Setenv("SERVICE_NAME", "relay-test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 2048 || cfg.MaxPublishSize != 1024 {
		t.Errorf("sizes = %d/%d", cfg.MaxMessageSize, cfg.MaxPublishSize)
	}
	if cfg.RateLimit.Burst != 10 || cfg.RateLimit.RefillInterval != 3*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.PingInterval != 20*time.Second || cfg.ShutdownTimeout != 4*time.Second {
		t.Errorf("intervals = %v/%v", cfg.PingInterval, cfg.ShutdownTimeout)
	}
	if cfg.ServiceName != "relay-test" || cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
		t.Errorf("service/log = %q %q %q", cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.RedisURL != "redis://localhost:6379/1" || cfg.OTLPEndpoint != "collector:4317" {
		t.Errorf("redis/otlp = %q %q", cfg.RedisURL, cfg.OTLPEndpoint)
	}
}

func TestNewConfigFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("PING_INTERVAL", "0")

	cfg := NewConfigFromEnv()

	if cfg.MaxMessageSize != 512 {
		t.Errorf("MaxMessageSize = %d, want default", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("Burst = %d, want default", cfg.RateLimit.Burst)
	}
	if cfg.PingInterval != 54*time.Second {
		t.Errorf("PingInterval = %v, want default", cfg.PingInterval)
	}
}

func TestSanitize(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := Config{AllowedOrigins: origins}.Sanitize()

	if cfg.Port != ":8080" || cfg.MaxMessageSize != 512 || cfg.MaxPublishSize != 64*1024 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.ServiceName != "pushrelay" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}

	cfg.AllowedOrigins[0] = "changed"
	if origins[0] != "http://a.example" {
		t.Error("Sanitize shares the origins slice with its input")
	}
}
