package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/finsuite/accessgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig

	// PolicyPath is the YAML policy file (always-on modules, super-admin
	// bypass roles). Empty disables file policy.
	PolicyPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds the Postgres connection settings for the
// entitlement, role and audit stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// CacheConfig holds decision cache settings. RedisURL empty selects the
// in-process memory backend.
type CacheConfig struct {
	EntitlementTTL time.Duration
	RBACTTL        time.Duration
	MaxEntries     int

	RedisURL      string
	RedisPassword string
	RedisDB       int

	// WarmupSchedule is a cron expression for the periodic entitlement
	// cache refresh. Empty disables the refresher.
	WarmupSchedule string
}

// AuditConfig selects the decision sinks.
type AuditConfig struct {
	// LogEnabled emits decisions to the structured audit log.
	LogEnabled bool

	// FilePath appends decisions to a rotating JSON-lines file. Empty
	// disables the file sink.
	FilePath     string
	FileMaxSize  int64
	FileMaxFiles int

	// DBEnabled persists decisions to the access_decisions table.
	DBEnabled bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
		PolicyPath:    getEnv("ACCESSGATE_POLICY_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ACCESSGATE_HOST", "0.0.0.0"),
		Port:            getEnv("ACCESSGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ACCESSGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ACCESSGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ACCESSGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ACCESSGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ACCESSGATE_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("ACCESSGATE_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("ACCESSGATE_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("ACCESSGATE_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("ACCESSGATE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		EntitlementTTL: getEnvDuration("ACCESSGATE_ENTITLEMENT_TTL", 60*time.Second),
		RBACTTL:        getEnvDuration("ACCESSGATE_RBAC_TTL", 60*time.Second),
		MaxEntries:     getEnvInt("ACCESSGATE_CACHE_MAX_ENTRIES", 10000),
		RedisURL:       getEnv("ACCESSGATE_REDIS_URL", ""),
		RedisPassword:  getEnv("ACCESSGATE_REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("ACCESSGATE_REDIS_DB", 0),
		WarmupSchedule: getEnv("ACCESSGATE_WARMUP_SCHEDULE", ""),
	}
}

// loadAuditConfig loads audit sink configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		LogEnabled:   getEnvBool("ACCESSGATE_AUDIT_LOG_ENABLED", true),
		FilePath:     getEnv("ACCESSGATE_AUDIT_FILE_PATH", ""),
		FileMaxSize:  getEnvInt64("ACCESSGATE_AUDIT_FILE_MAX_SIZE", 64<<20),
		FileMaxFiles: getEnvInt("ACCESSGATE_AUDIT_FILE_MAX_FILES", 8),
		DBEnabled:    getEnvBool("ACCESSGATE_AUDIT_DB_ENABLED", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("ACCESSGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ACCESSGATE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.EntitlementTTL <= 0 || c.Cache.RBACTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}

	if c.Audit.DBEnabled && c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required for the audit DB sink")
	}
	if c.Audit.FilePath != "" && c.Audit.FileMaxSize <= 0 {
		return fmt.Errorf("audit file max size must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
