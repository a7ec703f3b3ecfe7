package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Calendar CalendarConfig `json:"calendar" yaml:"calendar" envPrefix:"CALENDAR_"`
	Store    StoreConfig    `json:"store" yaml:"store" envPrefix:"STORE_"`
	Database DatabaseConfig `json:"database" yaml:"database" envPrefix:"DATABASE_"`
	Redis    RedisConfig    `json:"redis" yaml:"redis" envPrefix:"REDIS_"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing" envPrefix:"OTEL_"`
	Log      LogConfig      `json:"log" yaml:"log" envPrefix:"LOG_"`
	// Features overrides predefined feature flags by name.
	Features map[string]bool `json:"features" yaml:"features" env:"FEATURES"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string        `json:"port" yaml:"port" env:"PORT" envDefault:"8080"`
	Host            string        `json:"host" yaml:"host" env:"HOST"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// CalendarConfig holds the fixed calendar all instants are interpreted in.
type CalendarConfig struct {
	// Timezone is an IANA name, "Local" or "UTC".
	Timezone string `json:"timezone" yaml:"timezone" env:"TIMEZONE" envDefault:"Local"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend" env:"BACKEND" envDefault:"memory"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER" envDefault:"sqlite"`
	Path   string `json:"path" yaml:"path" env:"PATH" envDefault:"./weekly_rewards.db"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr" env:"ADDR" envDefault:"localhost:6379"`
	Password  string `json:"password" yaml:"password" env:"PASSWORD"`
	DB        int    `json:"db" yaml:"db" env:"DB"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX" envDefault:"rewards"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envDefault:"*"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"ENABLED" envDefault:"true"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `json:"service_name" yaml:"service_name" env:"SERVICE_NAME" envDefault:"weekly-rewards-api"`
	Environment string `json:"environment" yaml:"environment" env:"ENVIRONMENT" envDefault:"development"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `json:"level" yaml:"level" env:"LEVEL" envDefault:"info"`
}

// LoadConfig loads configuration from defaults, an optional config file and
// environment variables, in increasing precedence.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{}

	// Defaults first so file values can override them.
	if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Only variables that are actually set override. Defaults were applied
	// above, so the default tag is pointed at a name no field uses.
	if err := env.ParseWithOptions(cfg, env.Options{
		Environment:         setVariables(os.Environ()),
		DefaultValueTagName: "noDefault",
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// setVariables maps KEY=value pairs, dropping empty values so they do not
// clear configured ones.
func setVariables(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && v != "" {
			out[k] = v
		}
	}
	return out
}

// loadFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Location resolves the calendar timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Calendar.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Calendar.Timezone)
	}
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Origins returns the allowed CORS origins.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Security.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid calendar timezone %q: %w", c.Calendar.Timezone, err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required")
		}
		if c.Database.Driver != "sqlite" && c.Database.Driver != "sqlite3" {
			return fmt.Errorf("database driver must be sqlite or sqlite3, got %q", c.Database.Driver)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	return nil
}
