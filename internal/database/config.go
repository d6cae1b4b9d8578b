package database

import "os"

// Config holds the connection parameters for the PostgreSQL-backed
// pipeline repository.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// GetTestConfig returns a database config suitable for integration tests,
// sourced from the environment with sane local defaults.
func GetTestConfig() Config {
	return Config{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     5432,
		Database: getEnv("TEST_DB_NAME", "adapipe_test"),
		User:     getEnv("TEST_DB_USER", "adapipe"),
		Password: getEnv("TEST_DB_PASSWORD", ""),
		SSLMode:  "disable",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
