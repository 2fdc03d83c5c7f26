package main

import (
	"os"
	"strconv"
	"time"
)

// config is ontologyd's process configuration, loaded from environment
// variables. There is no configuration library in play: the option
// set is small and flat, so this follows a plain env-var driven
// configuration translated to Go idiom.
type config struct {
	Addr string

	// Pipeline
	ValidationAsync     bool
	MaxDiffSizeMB       int
	StrictValidation    bool
	StrictSecurity      bool
	EnablePIIValidation bool

	// Lock manager
	CleanupIntervalS       int
	CleanupBatchSize       int
	HeartbeatCheckInterval int
	HeartbeatGrace         float64

	// DLQ
	DLQName       string
	DLQMaxRetries int
	DLQBatchSize  int

	// Backing stores (optional; empty means "use in-memory")
	RedisAddr    string
	PostgresDSN  string
	NATSURL      string
	AuditBaseURL string

	// Auth
	APIKeyHeader string

	// SecretsDir, when set, enables secretref:file: references in the
	// backing-store settings above (one secret per file, as mounted).
	SecretsDir string
}

func loadConfig() config {
	return config{
		Addr: getenvDefault("ONTOLOGYD_ADDR", ":8080"),

		ValidationAsync:     getenvBool("VALIDATION_ASYNC", false),
		MaxDiffSizeMB:       getenvInt("MAX_DIFF_SIZE_MB", 10),
		StrictValidation:    getenvBool("STRICT_VALIDATION", true),
		StrictSecurity:      getenvBool("STRICT_SECURITY", true),
		EnablePIIValidation: getenvBool("ENABLE_PII_VALIDATION", true),

		CleanupIntervalS:       getenvInt("LOCK_CLEANUP_INTERVAL_S", 300),
		CleanupBatchSize:       getenvInt("LOCK_CLEANUP_BATCH_SIZE", 100),
		HeartbeatCheckInterval: getenvInt("HEARTBEAT_CHECK_INTERVAL_S", 30),
		HeartbeatGrace:         getenvFloat("HEARTBEAT_GRACE_MULTIPLIER", 3.0),

		DLQName:       getenvDefault("DLQ_NAME", "commit-sinks"),
		DLQMaxRetries: getenvInt("DLQ_MAX_RETRIES", 3),
		DLQBatchSize:  getenvInt("DLQ_BATCH_SIZE", 10),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		NATSURL:      os.Getenv("NATS_URL"),
		AuditBaseURL: os.Getenv("AUDIT_SERVICE_URL"),

		APIKeyHeader: getenvDefault("API_KEY_HEADER", "X-API-Key"),
		SecretsDir:   os.Getenv("SECRETS_DIR"),
	}
}

func (c config) maxDiffSizeBytes() int {
	return c.MaxDiffSizeMB * 1024 * 1024
}

func (c config) cleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalS) * time.Second
}

func (c config) heartbeatCheckInterval() time.Duration {
	return time.Duration(c.HeartbeatCheckInterval) * time.Second
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
