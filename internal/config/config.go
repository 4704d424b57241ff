package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the docrel server configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Backend     BackendConfig     `yaml:"backend"`
	Identifiers IdentifiersConfig `yaml:"identifiers"`
	Commit      CommitConfig      `yaml:"commit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// BackendConfig selects and configures the storage backend.
type BackendConfig struct {
	Driver string       `yaml:"driver"` // sqlite, redis (default: sqlite)
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IdentifiersConfig holds the SQL identifier constraints.
type IdentifiersConfig struct {
	MaxLength int `yaml:"max_length"`
}

// CommitConfig holds the retry policy for conflicting metadata commits.
type CommitConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	MinBackoffMs int `yaml:"min_backoff_ms"`
	MaxBackoffMs int `yaml:"max_backoff_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverSQLite
	}
	if c.Backend.SQLite.Path == "" {
		c.Backend.SQLite.Path = "docrel.db"
	}
	if c.Backend.Redis.KeyPrefix == "" {
		c.Backend.Redis.KeyPrefix = "docrel:"
	}
	if c.Backend.Redis.ReadinessTimeout <= 0 {
		c.Backend.Redis.ReadinessTimeout = 10
	}
	if c.Identifiers.MaxLength <= 0 {
		c.Identifiers.MaxLength = 63
	}
	if c.Commit.MaxAttempts <= 0 {
		c.Commit.MaxAttempts = 5
	}
	if c.Commit.MinBackoffMs <= 0 {
		c.Commit.MinBackoffMs = 5
	}
	if c.Commit.MaxBackoffMs <= 0 {
		c.Commit.MaxBackoffMs = 200
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case DriverSQLite:
		if c.Backend.SQLite.Path == "" {
			return fmt.Errorf("backend.sqlite.path is required")
		}
	case DriverRedis:
		if len(c.Backend.Redis.Addrs) == 0 {
			return fmt.Errorf("backend.redis.addrs is required")
		}
	default:
		return fmt.Errorf("backend.driver must be %q or %q, got %q", DriverSQLite, DriverRedis, c.Backend.Driver)
	}
	// identifiers shorter than this cannot hold a type suffix and a counter
	if c.Identifiers.MaxLength < 8 {
		return fmt.Errorf("identifiers.max_length must be at least 8, got %d", c.Identifiers.MaxLength)
	}
	if c.Commit.MinBackoffMs > c.Commit.MaxBackoffMs {
		return fmt.Errorf("commit.min_backoff_ms (%d) exceeds commit.max_backoff_ms (%d)",
			c.Commit.MinBackoffMs, c.Commit.MaxBackoffMs)
	}
	return nil
}

// MinBackoff returns the first retry delay.
func (c CommitConfig) MinBackoff() time.Duration {
	return time.Duration(c.MinBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (c CommitConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
