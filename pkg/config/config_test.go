package config

import (
	"os"
	"testing"
	"time"

	"github.com/finsuite/accessgate/pkg/observability"
)

// TestEnvHelpers covers the typed env lookup helpers, including fallback on
// unset and unparseable values.
func TestEnvHelpers(t *testing.T) {
	t.Setenv("ACCESSGATE_TEST_HOST", "gate.internal")
	t.Setenv("ACCESSGATE_TEST_TLS", "TRUE")
	t.Setenv("ACCESSGATE_TEST_POOL", "25")
	t.Setenv("ACCESSGATE_TEST_BYTES", "67108864")
	t.Setenv("ACCESSGATE_TEST_TTL", "90s")
	t.Setenv("ACCESSGATE_TEST_GARBAGE", "ninety seconds")

	if got := getEnv("ACCESSGATE_TEST_HOST", "0.0.0.0"); got != "gate.internal" {
		t.Errorf("getEnv = %q, want gate.internal", got)
	}
	if got := getEnv("ACCESSGATE_TEST_UNSET", "0.0.0.0"); got != "0.0.0.0" {
		t.Errorf("getEnv unset = %q, want default", got)
	}

	if !getEnvBool("ACCESSGATE_TEST_TLS", false) {
		t.Error("getEnvBool should accept TRUE regardless of case")
	}
	t.Setenv("ACCESSGATE_TEST_TLS", "1")
	if !getEnvBool("ACCESSGATE_TEST_TLS", false) {
		t.Error("getEnvBool should accept 1")
	}
	t.Setenv("ACCESSGATE_TEST_TLS", "false")
	if getEnvBool("ACCESSGATE_TEST_TLS", true) {
		t.Error("getEnvBool should honor an explicit false over the default")
	}
	if !getEnvBool("ACCESSGATE_TEST_UNSET", true) {
		t.Error("getEnvBool unset should fall back to the default")
	}

	if got := getEnvInt("ACCESSGATE_TEST_POOL", 5); got != 25 {
		t.Errorf("getEnvInt = %d, want 25", got)
	}
	if got := getEnvInt("ACCESSGATE_TEST_GARBAGE", 5); got != 5 {
		t.Errorf("getEnvInt garbage = %d, want default", got)
	}

	if got := getEnvInt64("ACCESSGATE_TEST_BYTES", 1); got != 64<<20 {
		t.Errorf("getEnvInt64 = %d, want %d", got, 64<<20)
	}

	if got := getEnvDuration("ACCESSGATE_TEST_TTL", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	if got := getEnvDuration("ACCESSGATE_TEST_GARBAGE", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration garbage = %v, want default", got)
	}
	if got := getEnvDuration("ACCESSGATE_TEST_UNSET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration unset = %v, want default", got)
	}
}

// TestLoadServerConfig tests the loadServerConfig function
func TestLoadServerConfig(t *testing.T) {
	// Save current env and restore after test
	envVars := []string{
		"ACCESSGATE_HOST",
		"ACCESSGATE_PORT",
		"ACCESSGATE_READ_TIMEOUT",
		"ACCESSGATE_WRITE_TIMEOUT",
		"ACCESSGATE_IDLE_TIMEOUT",
		"ACCESSGATE_SHUTDOWN_TIMEOUT",
		"ACCESSGATE_HEALTH_PORT",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name string
		env  map[string]string
		want ServerConfig
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: ServerConfig{
				Host:            "0.0.0.0",
				Port:            "8080",
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				IdleTimeout:     60 * time.Second,
				ShutdownTimeout: 30 * time.Second,
				HealthPort:      "9090",
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"ACCESSGATE_HOST":             "localhost",
				"ACCESSGATE_PORT":             "3000",
				"ACCESSGATE_READ_TIMEOUT":     "30s",
				"ACCESSGATE_WRITE_TIMEOUT":    "30s",
				"ACCESSGATE_IDLE_TIMEOUT":     "120s",
				"ACCESSGATE_SHUTDOWN_TIMEOUT": "60s",
				"ACCESSGATE_HEALTH_PORT":      "9091",
			},
			want: ServerConfig{
				Host:            "localhost",
				Port:            "3000",
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 60 * time.Second,
				HealthPort:      "9091",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			for _, k := range envVars {
				os.Unsetenv(k)
			}

			// Set test env vars
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			got := loadServerConfig()
			if got != tt.want {
				t.Errorf("loadServerConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestLoadCacheConfig tests the loadCacheConfig function
func TestLoadCacheConfig(t *testing.T) {
	envVars := []string{
		"ACCESSGATE_ENTITLEMENT_TTL",
		"ACCESSGATE_RBAC_TTL",
		"ACCESSGATE_CACHE_MAX_ENTRIES",
		"ACCESSGATE_REDIS_URL",
		"ACCESSGATE_REDIS_PASSWORD",
		"ACCESSGATE_REDIS_DB",
		"ACCESSGATE_WARMUP_SCHEDULE",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("defaults", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := loadCacheConfig()
		if cfg.EntitlementTTL != 60*time.Second {
			t.Errorf("EntitlementTTL = %v, want 60s", cfg.EntitlementTTL)
		}
		if cfg.RBACTTL != 60*time.Second {
			t.Errorf("RBACTTL = %v, want 60s", cfg.RBACTTL)
		}
		if cfg.MaxEntries != 10000 {
			t.Errorf("MaxEntries = %v, want 10000", cfg.MaxEntries)
		}
		if cfg.RedisURL != "" {
			t.Errorf("RedisURL = %v, want empty (memory backend)", cfg.RedisURL)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}
		os.Setenv("ACCESSGATE_ENTITLEMENT_TTL", "5m")
		os.Setenv("ACCESSGATE_RBAC_TTL", "30s")
		os.Setenv("ACCESSGATE_CACHE_MAX_ENTRIES", "500")
		os.Setenv("ACCESSGATE_REDIS_URL", "redis://localhost:6379")
		os.Setenv("ACCESSGATE_REDIS_DB", "1")
		os.Setenv("ACCESSGATE_WARMUP_SCHEDULE", "@every 5m")

		cfg := loadCacheConfig()
		if cfg.EntitlementTTL != 5*time.Minute {
			t.Errorf("EntitlementTTL = %v, want 5m", cfg.EntitlementTTL)
		}
		if cfg.RBACTTL != 30*time.Second {
			t.Errorf("RBACTTL = %v, want 30s", cfg.RBACTTL)
		}
		if cfg.MaxEntries != 500 {
			t.Errorf("MaxEntries = %v, want 500", cfg.MaxEntries)
		}
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL = %v, want redis://localhost:6379", cfg.RedisURL)
		}
		if cfg.RedisDB != 1 {
			t.Errorf("RedisDB = %v, want 1", cfg.RedisDB)
		}
		if cfg.WarmupSchedule != "@every 5m" {
			t.Errorf("WarmupSchedule = %v, want @every 5m", cfg.WarmupSchedule)
		}
	})
}

// TestConfigValidate tests the Config.Validate method
func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{
				Port:       "8080",
				HealthPort: "9090",
			},
			Database: DatabaseConfig{
				URL: "postgres://localhost/accessgate",
			},
			Cache: CacheConfig{
				EntitlementTTL: time.Minute,
				RBACTTL:        time.Minute,
				MaxEntries:     1000,
			},
			Observability: ObservabilityConfig{
				LogLevel: observability.InfoLevel,
			},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("missing server port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		err := cfg.Validate()
		if err == nil {
			t.Fatal("Validate() expected error, got nil")
		}
		if err.Error() != "server port and health port must be different" {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("missing postgres url", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("non-positive cache TTL", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.RBACTTL = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("non-positive cache bound", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.MaxEntries = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("file sink with zero max size", func(t *testing.T) {
		cfg := valid()
		cfg.Audit.FilePath = "/tmp/decisions.log"
		cfg.Audit.FileMaxSize = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})
}

// TestLoadConfig tests the LoadConfig function
func TestLoadConfig(t *testing.T) {
	envVars := []string{
		"ACCESSGATE_PORT",
		"ACCESSGATE_HEALTH_PORT",
		"ACCESSGATE_POSTGRES_URL",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "valid config",
			env: map[string]string{
				"ACCESSGATE_PORT":         "8080",
				"ACCESSGATE_HEALTH_PORT":  "9090",
				"ACCESSGATE_POSTGRES_URL": "postgres://localhost/accessgate",
			},
			wantErr: false,
		},
		{
			name: "invalid config - same ports",
			env: map[string]string{
				"ACCESSGATE_PORT":         "8080",
				"ACCESSGATE_HEALTH_PORT":  "8080",
				"ACCESSGATE_POSTGRES_URL": "postgres://localhost/accessgate",
			},
			wantErr: true,
		},
		{
			name: "invalid config - no database",
			env: map[string]string{
				"ACCESSGATE_PORT":        "8080",
				"ACCESSGATE_HEALTH_PORT": "9090",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all env vars
			for _, k := range envVars {
				os.Unsetenv(k)
			}

			// Set test env vars
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg == nil {
				t.Error("LoadConfig() returned nil config without error")
			}
		})
	}
}
