package config

import (
	"os"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	// Unset key returns fallback
	os.Unsetenv("TEST_ENVOR_KEY")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "default" {
		t.Errorf("envOr unset key = %q, want %q", got, "default")
	}

	// Set key returns value
	os.Setenv("TEST_ENVOR_KEY", "custom")
	defer os.Unsetenv("TEST_ENVOR_KEY")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "custom" {
		t.Errorf("envOr set key = %q, want %q", got, "custom")
	}

	// Empty string returns fallback
	os.Setenv("TEST_ENVOR_KEY", "")
	if got := envOr("TEST_ENVOR_KEY", "fallback"); got != "fallback" {
		t.Errorf("envOr empty key = %q, want %q", got, "fallback")
	}
}

func TestDurationOr(t *testing.T) {
	os.Unsetenv("TEST_DURATION_KEY")
	if got := durationOr("TEST_DURATION_KEY", time.Minute); got != time.Minute {
		t.Errorf("durationOr unset = %v, want %v", got, time.Minute)
	}

	os.Setenv("TEST_DURATION_KEY", "45s")
	defer os.Unsetenv("TEST_DURATION_KEY")
	if got := durationOr("TEST_DURATION_KEY", time.Minute); got != 45*time.Second {
		t.Errorf("durationOr set = %v, want 45s", got)
	}

	os.Setenv("TEST_DURATION_KEY", "not-a-duration")
	if got := durationOr("TEST_DURATION_KEY", time.Minute); got != time.Minute {
		t.Errorf("durationOr invalid = %v, want fallback", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	// Clear all relevant env vars
	for _, k := range []string{"PORT", "DATABASE_URL", "FRONTEND_ORIGIN", "REDIS_URL", "REDIS_PASSWORD",
		"REFRESH_INTERVAL", "WEBHOOK_RETENTION", "PUSHOVER_API_TOKEN", "INFISICAL_CLIENT_ID", "INFISICAL_CLIENT_SECRET"} {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.FrontendOrigin != "*" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "*")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.RefreshInterval)
	}
	if cfg.WebhookRetention != 90*24*time.Hour {
		t.Errorf("WebhookRetention = %v, want 90 days", cfg.WebhookRetention)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("DATABASE_URL", "postgres://test")
	os.Setenv("FRONTEND_ORIGIN", "http://localhost:3000")
	os.Setenv("REFRESH_INTERVAL", "1m")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("FRONTEND_ORIGIN")
		os.Unsetenv("REFRESH_INTERVAL")
	}()

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DatabaseURL != "postgres://test" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://test")
	}
	if cfg.FrontendOrigin != "http://localhost:3000" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "http://localhost:3000")
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("RefreshInterval = %v, want 1m", cfg.RefreshInterval)
	}
}
