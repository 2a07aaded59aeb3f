package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled {
		t.Error("rate limiting disabled by default")
	}
	if cfg.Capacity != 60 {
		t.Errorf("Capacity = %d, want 60", cfg.Capacity)
	}
	if cfg.RefillInterval != time.Second {
		t.Errorf("RefillInterval = %s, want 1s", cfg.RefillInterval)
	}
	if cfg.KeyStrategy != "ip_route" {
		t.Errorf("KeyStrategy = %q, want ip_route", cfg.KeyStrategy)
	}
}

func TestLoadRateLimitConfigSanitizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want floor of 1", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 {
		t.Errorf("RefillTokens = %d, want floor of 1", cfg.RefillTokens)
	}
	// The TTL is stretched to cover a full refill cycle.
	if want := 5 * cfg.RefillInterval; cfg.TTL != want {
		t.Errorf("TTL = %s, want %s", cfg.TTL, want)
	}
}

func TestLoadReadsPoolSettings(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080",
		"DB_USER": "u", "DB_HOST": "localhost", "DB_PORT": "3306", "DB_NAME": "d",
		"JWT_SECRET":        "s",
		"DB_MAX_OPEN_CONNS": "40",
		"DB_CONN_LIFETIME":  "10m",
	} {
		t.Setenv(k, v)
	}

	cfg := Load()
	if cfg.DBMaxOpen != 40 {
		t.Errorf("DBMaxOpen = %d, want 40", cfg.DBMaxOpen)
	}
	if cfg.DBMaxIdle != 25 {
		t.Errorf("DBMaxIdle = %d, want default 25", cfg.DBMaxIdle)
	}
	if cfg.DBConnLifetime != 10*time.Minute {
		t.Errorf("DBConnLifetime = %s, want 10m", cfg.DBConnLifetime)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "value")
	t.Setenv("X_BOOL", "yes")
	t.Setenv("X_INT", "42")
	t.Setenv("X_DUR", "90s")
	t.Setenv("X_BAD_INT", "nope")

	if got := envStr("X_STR", "d"); got != "value" {
		t.Errorf("envStr = %q", got)
	}
	if got := envStr("X_MISSING", "d"); got != "d" {
		t.Errorf("envStr default = %q", got)
	}
	if !envBool("X_BOOL", false) {
		t.Error("envBool did not parse yes")
	}
	if got := envInt("X_INT", 0); got != 42 {
		t.Errorf("envInt = %d", got)
	}
	if got := envInt("X_BAD_INT", 7); got != 7 {
		t.Errorf("envInt fallback = %d", got)
	}
	if got := envDur("X_DUR", 0); got != 90*time.Second {
		t.Errorf("envDur = %s", got)
	}
}
