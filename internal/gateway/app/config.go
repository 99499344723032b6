package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	UserServiceURL string // Required: base URL of the user service

	TokenPrivateKeyFile string        // Required: PEM private key for minting internal tokens
	TokenTTL            time.Duration // Internal token lifetime (default: 5m)
	CallTimeout         time.Duration // Per-call timeout for relayed requests (default: 30s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		UserServiceURL:      getEnvOrDefault("USER_SERVICE_URL", "http://localhost:8081"),
		TokenPrivateKeyFile: os.Getenv("INTERNAL_TOKEN_PRIVATE_KEY_FILE"),
		TokenTTL:            getEnvDurationOrDefault("INTERNAL_TOKEN_TTL", 5*time.Minute),
		CallTimeout:         getEnvDurationOrDefault("INTER_SERVICE_CALL_TIMEOUT", 30*time.Second),
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
