// Package config loads the gateway configuration from a YAML file with
// environment variable overrides. Environment variables always win so that
// containerised deployments can tune a shared config file per instance.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the treasury gateway.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Executor ExecutorConfig `yaml:"executor"`
}

// ServerConfig controls the HTTP listener. RateLimitPerSecond of zero
// disables per-caller rate limiting.
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	RateLimitBurst     int    `yaml:"rate_limit_burst"`
}

// Address returns the host:port pair the server binds to.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig selects and tunes the proposal store backend. Driver may be
// "memory" for a non-durable in-process store or "postgres".
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig holds the JWT verification settings for the HTTP API.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ExecutorConfig selects the transaction executor. Mode "mock" acknowledges
// executions without submitting anywhere and is the safe default.
type ExecutorConfig struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Executor: ExecutorConfig{
			Mode: "mock",
		},
	}
}

// Load reads the config file named by CONFIG_PATH (default config.yaml) if it
// exists, then applies environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from the given file, falling back to
// defaults when the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.RateLimitPerSecond, "SERVER_RATE_LIMIT_PER_SECOND")
	setInt(&cfg.Server.RateLimitBurst, "SERVER_RATE_LIMIT_BURST")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setInt(&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setInt(&cfg.Database.MaxIdleConns, "DATABASE_MAX_IDLE_CONNS")
	setInt(&cfg.Database.ConnMaxLifetime, "DATABASE_CONN_MAX_LIFETIME")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Output, "LOG_OUTPUT")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Executor.Mode, "EXECUTOR_MODE")
	setString(&cfg.Executor.Endpoint, "EXECUTOR_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitPerSecond < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must be non-negative")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Executor.Mode {
	case "", "mock":
	case "http":
		if c.Executor.Endpoint == "" {
			return fmt.Errorf("executor endpoint is required for http mode")
		}
	default:
		return fmt.Errorf("unknown executor mode %q", c.Executor.Mode)
	}
	return nil
}
