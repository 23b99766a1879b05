// Package config handles environment-variable configuration loading and
// per-process TOML config file models.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds the orchestrator's environment-variable-driven settings:
// operational knobs that are not meant to travel through a version-controlled
// TOML file (listen addresses, the bearer token, store paths, loop
// intervals). Not hot-reloadable; read once at startup.
type EnvConfig struct {
	// Network
	ListenAddress       string
	PubsubListenAddress string
	APIMaxBodyBytes     int

	// Storage
	StorePath      string
	TimeseriesPath string

	// Auth
	BearerToken string

	// Loops (§4.1.5, §4.1.6)
	HealthInterval           time.Duration
	HealthTimeout            time.Duration
	QuotaInterval            time.Duration
	QuotaReactivationAfter   time.Duration
	DefaultTrialDailyLimitMB uint64
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error listing every invalid or missing variable.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.ListenAddress = strings.TrimSpace(envStr("PONY_LISTEN_ADDRESS", "0.0.0.0:8080"))
	cfg.PubsubListenAddress = strings.TrimSpace(envStr("PONY_PUBSUB_LISTEN_ADDRESS", "0.0.0.0:3000"))
	cfg.APIMaxBodyBytes = envInt("PONY_API_MAX_BODY_BYTES", 1<<20, &errs)

	cfg.StorePath = envStr("PONY_STORE_PATH", "/var/lib/pony/fleet.db")
	cfg.TimeseriesPath = envStr("PONY_TIMESERIES_PATH", "/var/lib/pony/timeseries.db")

	token, hasToken := os.LookupEnv("PONY_BEARER_TOKEN")
	if !hasToken {
		errs = append(errs, "PONY_BEARER_TOKEN must be defined (can be empty to disable auth)")
	}
	cfg.BearerToken = token
	if IsWeakToken(cfg.BearerToken) {
		errs = append(errs, "PONY_BEARER_TOKEN is too weak; choose a higher-entropy value")
	}

	cfg.HealthInterval = envDuration("PONY_HEALTH_INTERVAL", 60*time.Second, &errs)
	cfg.HealthTimeout = envDuration("PONY_HEALTH_TIMEOUT", 90*time.Second, &errs)
	cfg.QuotaInterval = envDuration("PONY_QUOTA_INTERVAL", 5*time.Minute, &errs)
	cfg.QuotaReactivationAfter = envDuration("PONY_QUOTA_REACTIVATION_AFTER", 24*time.Hour, &errs)
	cfg.DefaultTrialDailyLimitMB = uint64(envInt("PONY_DEFAULT_TRIAL_DAILY_LIMIT_MB", 1000, &errs))

	validatePositive("PONY_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	if cfg.ListenAddress == "" {
		errs = append(errs, "PONY_LISTEN_ADDRESS must not be empty")
	}
	if cfg.PubsubListenAddress == "" {
		errs = append(errs, "PONY_PUBSUB_LISTEN_ADDRESS must not be empty")
	}
	if cfg.HealthInterval <= 0 {
		errs = append(errs, "PONY_HEALTH_INTERVAL must be positive")
	}
	if cfg.HealthTimeout <= 0 {
		errs = append(errs, "PONY_HEALTH_TIMEOUT must be positive")
	}
	if cfg.QuotaInterval <= 0 {
		errs = append(errs, "PONY_QUOTA_INTERVAL must be positive")
	}
	if cfg.QuotaReactivationAfter <= 0 {
		errs = append(errs, "PONY_QUOTA_REACTIVATION_AFTER must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
