package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("CALENDAR_TIMEZONE", "UTC")
	t.Setenv("FEATURES", "event_hooks_enabled:false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Database.Driver != "sqlite3" {
		t.Errorf("Unexpected store config: %+v %+v", cfg.Store, cfg.Database)
	}
	if enabled, ok := cfg.Features["event_hooks_enabled"]; !ok || enabled {
		t.Errorf("Expected feature override, got %v", cfg.Features)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoadConfig_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "7070"
  shutdown_timeout: 3s
store:
  backend: redis
redis:
  addr: redis:6379
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected 3s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Errorf("Expected env to override file, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.KeyPrefix != "rewards" {
		t.Errorf("Expected default key prefix to survive, got %s", cfg.Redis.KeyPrefix)
	}
	if cfg.Calendar.Timezone != "Local" {
		t.Errorf("Expected default timezone to survive, got %s", cfg.Calendar.Timezone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected config to validate, got %v", err)
	}
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"store":{"backend":"sqlite"},"database":{"path":"/tmp/r.db"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/r.db" || cfg.Database.Driver != "sqlite" {
		t.Errorf("Unexpected database config: %+v", cfg.Database)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing config file")
	}

	t.Setenv("REDIS_DB", "not-an-int")
	_, err := LoadConfig("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("Expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"bad driver", func(c *Config) { c.Store.Backend = BackendSQLite; c.Database.Driver = "pg" }},
		{"bad timezone", func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"redis without addr", func(c *Config) { c.Store.Backend = BackendRedis; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	cfg := &Config{Security: SecurityConfig{AllowedOrigins: "https://a.example, https://b.example,,"}}
	got := cfg.Origins()
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("Unexpected origins: %v", got)
	}
}
