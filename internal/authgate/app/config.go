package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	IdPURL     string        // Required: base URL of the identity provider's auth API
	IdPKey     string        // Required: service (anon) key attached to every provider call
	IdPTimeout time.Duration // Optional: per-call provider timeout (default: 10s)

	MFAFriendlyName string // Optional: reserved factor name this service manages (default: authgate)

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./authgate.db)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		IdPURL:     os.Getenv("IDP_URL"),
		IdPKey:     os.Getenv("IDP_SERVICE_KEY"),
		IdPTimeout: getEnvDurationOrDefault("IDP_TIMEOUT", 10*time.Second),

		MFAFriendlyName: getEnvOrDefault("MFA_FRIENDLY_NAME", "authgate"),

		DatabaseFile:        getEnvOrDefault("AUTH_DATABASE_FILE", "authgate.db"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
