// Package config provides configuration loading from environment variables
// and the pipeline profile file.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the solver generation service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	ProfilePath       string        // Path to the pipeline profile YAML
	CallbackURL       string        // Optional webhook for lifecycle events
	CallbackKey       string        // HMAC key for signing lifecycle events
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ProfilePath:       GetEnv("PIPELINE_PROFILE", "profile.yaml"),
		CallbackURL:       GetEnv("CALLBACK_URL", ""),
		CallbackKey:       GetSecretFile(GetEnv("CALLBACK_KEY_FILE", "")),
	}
}

// PollingConfig holds the coordinator's polling contract: the interval floor
// is rate-limit-safe and never breached, the ceiling caps backoff growth, and
// the timeout is a hard wall-clock budget independent of both.
type PollingConfig struct {
	MinInterval       time.Duration
	MaxInterval       time.Duration
	Timeout           time.Duration
	RunLookupAttempts int           // attempts to resolve the run id after trigger
	RunLookupInterval time.Duration // delay between resolution attempts
}

// LoadPollingConfig loads polling configuration from environment variables.
func LoadPollingConfig() PollingConfig {
	cfg := PollingConfig{
		MinInterval:       GetDurationEnv("POLL_MIN_INTERVAL", 5*time.Second),
		MaxInterval:       GetDurationEnv("POLL_MAX_INTERVAL", 30*time.Second),
		Timeout:           GetDurationEnv("POLL_TIMEOUT", 15*time.Minute),
		RunLookupAttempts: GetIntEnv("RUN_LOOKUP_ATTEMPTS", 5),
		RunLookupInterval: GetDurationEnv("RUN_LOOKUP_INTERVAL", 2*time.Second),
	}
	return cfg.WithDefaults()
}

// WithDefaults fills in zero or inconsistent values with safe defaults.
func (c PollingConfig) WithDefaults() PollingConfig {
	if c.MinInterval <= 0 {
		c.MinInterval = 5 * time.Second
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = c.MinInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Minute
	}
	if c.RunLookupAttempts <= 0 {
		c.RunLookupAttempts = 5
	}
	if c.RunLookupInterval <= 0 {
		c.RunLookupInterval = 2 * time.Second
	}
	return c
}
