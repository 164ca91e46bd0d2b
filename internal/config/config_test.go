package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "")
	t.Setenv("AGGREGATION_INTERVAL", "")
	t.Setenv("AGGREGATION_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("expected default lock timeout 5s, got %s", cfg.LockTimeout)
	}
	if cfg.AggregationInterval != time.Hour {
		t.Errorf("expected default aggregation interval 1h, got %s", cfg.AggregationInterval)
	}
	if !cfg.AggregationEnabled {
		t.Error("expected aggregation to be enabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("AGGREGATION_INTERVAL", "15m")
	t.Setenv("AGGREGATION_ENABLED", "false")
	t.Setenv("PIPELINE_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.LockTimeout)
	}
	if cfg.AggregationInterval != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.AggregationInterval)
	}
	if cfg.AggregationEnabled {
		t.Error("expected aggregation to be disabled")
	}
	if cfg.PipelineAPIKey != "k" {
		t.Errorf("expected pipeline key k, got %q", cfg.PipelineAPIKey)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "soon")
	t.Setenv("EVENT_HANDLER_TIMEOUT", "-1s")

	cfg, _ := Load()
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("expected fallback 5s, got %s", cfg.LockTimeout)
	}
	if cfg.EventHandlerTimeout != 5*time.Second {
		t.Errorf("expected fallback 5s, got %s", cfg.EventHandlerTimeout)
	}
}

func TestLoad_DatabasePool(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "80")
	t.Setenv("DB_MAX_IDLE_CONNS", "zero")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")

	cfg, _ := Load()
	if cfg.DBMaxOpenConns != 80 {
		t.Errorf("expected 80 open conns, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns != 10 {
		t.Errorf("expected fallback of 10 idle conns, got %d", cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Errorf("expected 30m lifetime, got %s", cfg.DBConnMaxLifetime)
	}
	if cfg.MigrationsPath != "migrations" {
		t.Errorf("expected default migrations path, got %q", cfg.MigrationsPath)
	}
}
