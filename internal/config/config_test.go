package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DEFAULT_TIMEZONE", "")
	t.Setenv("HISTORY_LIMIT", "")
	t.Setenv("EXTERNAL_CALL_TIMEOUT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DefaultTimezone != "America/Sao_Paulo" {
		t.Fatalf("expected Sao Paulo timezone, got %s", cfg.DefaultTimezone)
	}
	if cfg.HistoryLimit != 20 {
		t.Fatalf("expected history limit 20, got %d", cfg.HistoryLimit)
	}
	if cfg.ExternalCallTimeout != 10*time.Second {
		t.Fatalf("expected 10s external timeout, got %s", cfg.ExternalCallTimeout)
	}
	if cfg.GoogleCalendarID != "primary" {
		t.Fatalf("expected primary calendar, got %s", cfg.GoogleCalendarID)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no kafka brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("USER_CACHE_KEY", "cache-secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("REMINDER_LEAD", "90m")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("HISTORY_LIMIT", "not-a-number")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("unexpected database url %s", cfg.DatabaseURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if cfg.UserCacheKey != "cache-secret" {
		t.Fatalf("unexpected user cache key %q", cfg.UserCacheKey)
	}
	if cfg.ReminderLead != 90*time.Minute {
		t.Fatalf("expected reminder lead 90m, got %s", cfg.ReminderLead)
	}
	if cfg.OTELSampleRatio != 0.25 {
		t.Fatalf("expected sample ratio 0.25, got %v", cfg.OTELSampleRatio)
	}
	if cfg.HistoryLimit != 20 {
		t.Fatalf("expected invalid history limit to fall back to 20, got %d", cfg.HistoryLimit)
	}
}
