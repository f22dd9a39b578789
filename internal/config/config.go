// Package config provides configuration management for the trade history synchronizer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// State backends
const (
	StateBackendStore = "store"
	StateBackendRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Auth     AuthConfig
	Feed     FeedConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port              string
	Host              string
	RequestsPerSecond int
}

// DatabaseConfig holds local store and state configuration
type DatabaseConfig struct {
	Driver       string
	StateBackend string
	SQLite       SQLiteConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// SyncConfig holds synchronization settings
type SyncConfig struct {
	Cooldown     time.Duration // Minimum time between two fetches (default: 60s)
	Leagues      []string      // Leagues the worker keeps in sync
	Locale       string        // Locale used by the worker and as CLI default
	PollInterval time.Duration // Worker tick (default: 5m, never below Cooldown)
}

// AuthConfig holds session credentials per locale
type AuthConfig struct {
	SessionID       string
	SessionByLocale map[string]string
}

// FeedConfig holds remote host overrides per locale
type FeedConfig struct {
	Hosts map[string]string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:              getEnv("SERVER_PORT", "8080"),
			Host:              getEnv("SERVER_HOST", "127.0.0.1"),
			RequestsPerSecond: getEnvAsInt("API_REQUESTS_PER_SECOND", 5),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			StateBackend: strings.ToLower(getEnv("STATE_BACKEND", StateBackendStore)),
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "trade_history.db"),
			},
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "trade_history"),
				User:           getEnv("POSTGRES_USER", "trade"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Sync: SyncConfig{
			Cooldown:     getEnvAsDuration("SYNC_COOLDOWN", 60*time.Second),
			Leagues:      getEnvAsList("SYNC_LEAGUES"),
			Locale:       getEnv("SYNC_LOCALE", "en"),
			PollInterval: getEnvAsDuration("SYNC_POLL_INTERVAL", 5*time.Minute),
		},
		Auth: AuthConfig{
			SessionID: getEnv("POESESSID", ""),
			SessionByLocale: map[string]string{
				"en": getEnv("POESESSID_EN", ""),
				"ja": getEnv("POESESSID_JA", ""),
			},
		},
		Feed: FeedConfig{
			Hosts: map[string]string{
				"en": getEnv("FEED_HOST_EN", ""),
				"ja": getEnv("FEED_HOST_JA", ""),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	switch c.Database.StateBackend {
	case StateBackendStore, StateBackendRedis:
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q (want %s or %s)", c.Database.StateBackend, StateBackendStore, StateBackendRedis)
	}

	if c.Sync.Cooldown <= 0 {
		return fmt.Errorf("SYNC_COOLDOWN must be positive, got %v", c.Sync.Cooldown)
	}

	if c.Sync.PollInterval < c.Sync.Cooldown {
		return fmt.Errorf("SYNC_POLL_INTERVAL (%v) must not be shorter than SYNC_COOLDOWN (%v)", c.Sync.PollInterval, c.Sync.Cooldown)
	}

	return nil
}

// SessionFor returns the session credential for a locale, preferring the
// locale-specific value over the shared one.
func (a AuthConfig) SessionFor(locale string) string {
	if v := a.SessionByLocale[locale]; v != "" {
		return v
	}
	return a.SessionID
}

// PostgresURL builds a connection URL with the given scheme (postgres, pgx5).
func (p PostgresConfig) PostgresURL(scheme string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%s/%s?sslmode=disable",
		scheme, p.User, p.Password, p.Host, p.Port, p.Database)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
