// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings, plus the operator-editable YAML policy
// file with filesystem-watch hot reload.
//
// # Configuration Structure
//
// Server settings:
//
//	ACCESSGATE_HOST="0.0.0.0"
//	ACCESSGATE_PORT="8080"
//	ACCESSGATE_HEALTH_PORT="9090"
//	ACCESSGATE_READ_TIMEOUT="15s"
//	ACCESSGATE_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	ACCESSGATE_POSTGRES_URL="postgres://localhost/accessgate"
//	ACCESSGATE_POSTGRES_MAX_CONNS="25"
//
// Cache settings:
//
//	ACCESSGATE_ENTITLEMENT_TTL="60s"
//	ACCESSGATE_RBAC_TTL="60s"
//	ACCESSGATE_CACHE_MAX_ENTRIES="10000"
//	ACCESSGATE_REDIS_URL="redis://localhost:6379"  # empty selects the memory backend
//	ACCESSGATE_WARMUP_SCHEDULE="@every 5m"
//
// Audit settings:
//
//	ACCESSGATE_AUDIT_LOG_ENABLED="true"
//	ACCESSGATE_AUDIT_FILE_PATH="/var/log/accessgate/decisions.log"
//	ACCESSGATE_AUDIT_DB_ENABLED="false"
//
// Observability settings:
//
//	ACCESSGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	ACCESSGATE_METRICS_ENABLED="true"
//
// # Policy File
//
// ACCESSGATE_POLICY_PATH names a YAML file holding the runtime policy:
//
//	always_on_modules:
//	  - settings
//	  - auth_login
//	super_admin_roles:
//	  - 1
//
// PolicyWatcher reloads it on change; an invalid file keeps the previous
// policy in effect.
package config
