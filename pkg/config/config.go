package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selection values for STORAGE_BACKEND
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	StorageBackend     string
	RedisURL           string
	DataDir            string
	CatalogPath        string
	JWTSecret          string
	SessionTTLMinutes  int
	LogLevel           string
	CORSAllowedOrigins []string
	MaxCodeLength      int
	SubmitMaxPerMinute int
	RetryMaxAttempts   int
	RetryInitialMs     int
	SeasonStart        time.Time
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "1440"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_MINUTES: %w", err)
	}

	maxCodeLength, err := strconv.Atoi(getEnv("MAX_CODE_LENGTH", "64"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CODE_LENGTH: %w", err)
	}

	submitMax, err := strconv.Atoi(getEnv("SUBMIT_MAX_PER_MINUTE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUBMIT_MAX_PER_MINUTE: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("RETRY_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_MAX_ATTEMPTS: %w", err)
	}

	retryInitial, err := strconv.Atoi(getEnv("RETRY_INITIAL_BACKOFF_MS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_INITIAL_BACKOFF_MS: %w", err)
	}

	seasonStart, err := parseDateEnv("SEASON_START", defaultSeasonStart())
	if err != nil {
		return nil, fmt.Errorf("invalid SEASON_START: %w", err)
	}

	backend := strings.ToLower(getEnv("STORAGE_BACKEND", BackendLocal))
	if backend != BackendLocal && backend != BackendRemote {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be %q or %q", backend, BackendLocal, BackendRemote)
	}

	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		ServerPort:        port,
		StorageBackend:    backend,
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		CatalogPath:       getEnv("CATALOG_PATH", "catalog.json"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SessionTTLMinutes: sessionTTL,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		MaxCodeLength:      maxCodeLength,
		SubmitMaxPerMinute: submitMax,
		RetryMaxAttempts:   retryAttempts,
		RetryInitialMs:     retryInitial,
		SeasonStart:        seasonStart,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// parseDateEnv reads a YYYY-MM-DD date from the environment
func parseDateEnv(key string, defaultValue time.Time) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// defaultSeasonStart is December 1st of the current year
func defaultSeasonStart() time.Time {
	now := time.Now()
	return time.Date(now.Year(), time.December, 1, 0, 0, 0, 0, time.Local)
}
