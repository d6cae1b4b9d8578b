// Package config loads the process-level configuration for the adapipe
// CLI: database connection, adaptive-sizing overrides, and observability
// settings. Defaults are code-defined (Default) with an
// environment-variable override layer (LoadFromEnv); there is no config
// file.
package config

import "time"

// Config is the top-level process configuration.
type Config struct {
	Database      DatabaseConfig
	Sizing        SizingConfig
	Governor      GovernorConfig
	Observability ObservabilityConfig
}

// DatabaseConfig holds the pipeline repository's PostgreSQL connection
// parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// SizingConfig overrides the adaptive chunk-size and worker-count
// defaults. A zero value leaves the adaptive default in place.
type SizingConfig struct {
	ChunkSizeOverride   int
	WorkerCountOverride int
	CPUHeavyFactor      float64
	MixedFactor         float64
}

// GovernorConfig sizes the process-wide resource governor's permit pools.
// A non-positive value defers to governor.New's own CPU-count-derived
// default.
type GovernorConfig struct {
	CPUPermits int
	FDPermits  int
}

// ObservabilityConfig controls logging and metrics.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	MetricsAddr   string
	FlushInterval time.Duration
}

// Default returns a Config populated with the documented defaults, before
// any environment override is applied.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, Database: "adapipe", User: "adapipe", SSLMode: "disable",
		},
		Sizing: SizingConfig{CPUHeavyFactor: 1.0, MixedFactor: 0.5},
		Observability: ObservabilityConfig{
			LogLevel: "info", LogFormat: "json", MetricsAddr: ":9090", FlushInterval: time.Minute,
		},
	}
}
