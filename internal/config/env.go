package config

import (
	"os"
	"strconv"
)

// LoadFromEnv overlays environment variables onto cfg: a set, non-empty
// variable always wins over the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ADAPIPE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ADAPIPE_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("ADAPIPE_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("ADAPIPE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ADAPIPE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	if v := os.Getenv("ADAPIPE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sizing.ChunkSizeOverride = n
		}
	}
	if v := os.Getenv("ADAPIPE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sizing.WorkerCountOverride = n
		}
	}

	if v := os.Getenv("ADAPIPE_CPU_PERMITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Governor.CPUPermits = n
		}
	}
	if v := os.Getenv("ADAPIPE_FD_PERMITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Governor.FDPermits = n
		}
	}

	if v := os.Getenv("ADAPIPE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("ADAPIPE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("ADAPIPE_METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}
}

// GetEnvOrDefault returns the named environment variable, or defaultValue
// if it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
