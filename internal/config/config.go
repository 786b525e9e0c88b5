package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Coach     CoachConfig     `yaml:"coach"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// CoachConfig configures the optional OpenAI-compatible text polisher.
// With no base_url, coach text is produced heuristically.
type CoachConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Debounce time.Duration `yaml:"debounce"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultCoachTimeout  = 30 * time.Second
	defaultCoachDebounce = 250 * time.Millisecond
	defaultSQLitePath    = "freecoach.db"
	defaultTSHostname    = "freecoach"
)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps log.level to a slog level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix FREECOACH_ and underscore-separated paths:
//
//	FREECOACH_SERVER_HOST, FREECOACH_SERVER_PORT,
//	FREECOACH_DB_DRIVER, FREECOACH_DB_HOST, FREECOACH_DB_PORT, FREECOACH_DB_NAME,
//	FREECOACH_DB_USER, FREECOACH_DB_PASSWORD, FREECOACH_DB_SSLMODE, FREECOACH_DB_PATH,
//	FREECOACH_AUTH_API_KEY,
//	FREECOACH_TAILSCALE_ENABLED, FREECOACH_TAILSCALE_HOSTNAME, FREECOACH_TAILSCALE_STATE_DIR,
//	FREECOACH_COACH_BASE_URL, FREECOACH_COACH_MODEL, FREECOACH_COACH_API_KEY,
//	FREECOACH_COACH_TIMEOUT, FREECOACH_COACH_DEBOUNCE,
//	FREECOACH_CATALOG_PATH, FREECOACH_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("FREECOACH_SERVER_HOST", &cfg.Server.Host)
	num("FREECOACH_SERVER_PORT", &cfg.Server.Port)

	str("FREECOACH_DB_DRIVER", &cfg.Database.Driver)
	str("FREECOACH_DB_HOST", &cfg.Database.Host)
	num("FREECOACH_DB_PORT", &cfg.Database.Port)
	str("FREECOACH_DB_NAME", &cfg.Database.Name)
	str("FREECOACH_DB_USER", &cfg.Database.User)
	str("FREECOACH_DB_PASSWORD", &cfg.Database.Password)
	str("FREECOACH_DB_SSLMODE", &cfg.Database.SSLMode)
	str("FREECOACH_DB_PATH", &cfg.Database.Path)

	str("FREECOACH_AUTH_API_KEY", &cfg.Auth.APIKey)

	if v := os.Getenv("FREECOACH_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	str("FREECOACH_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	str("FREECOACH_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)

	str("FREECOACH_COACH_BASE_URL", &cfg.Coach.BaseURL)
	str("FREECOACH_COACH_MODEL", &cfg.Coach.Model)
	str("FREECOACH_COACH_API_KEY", &cfg.Coach.APIKey)
	dur("FREECOACH_COACH_TIMEOUT", &cfg.Coach.Timeout)
	dur("FREECOACH_COACH_DEBOUNCE", &cfg.Coach.Debounce)

	str("FREECOACH_CATALOG_PATH", &cfg.Catalog.Path)
	str("FREECOACH_LOG_LEVEL", &cfg.Log.Level)
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = defaultSQLitePath
	}
	if c.Coach.Timeout == 0 {
		c.Coach.Timeout = defaultCoachTimeout
	}
	if c.Coach.Debounce == 0 {
		c.Coach.Debounce = defaultCoachDebounce
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = defaultTSHostname
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Coach.BaseURL != "" && c.Coach.Model == "" {
		return fmt.Errorf("coach.model is required when coach.base_url is set")
	}
	if c.Coach.Timeout < 0 || c.Coach.Debounce < 0 {
		return fmt.Errorf("coach durations must not be negative")
	}
	return nil
}
