// Package config loads client settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL      string
	Token       string
	JWTSecret   string
	DatabaseURL string
	RedisURL    string
	LogEnv      string
	PurgeTick   time.Duration
	PageLimit   int
}

func Load() Config {
	return Config{
		APIURL:      getenv("CASEDESK_API_URL", "http://localhost:5050"),
		Token:       getenv("CASEDESK_TOKEN", ""),
		JWTSecret:   getenv("CASEDESK_JWT_SECRET", ""),
		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", ""),
		LogEnv:      getenv("LOG_ENV", "development"),
		PurgeTick:   time.Duration(getenvInt("PURGE_TICK_SECONDS", 60)) * time.Second,
		PageLimit:   getenvInt("CASES_PAGE_LIMIT", 100),
	}
}

// JournalEnabled reports whether transitions should be recorded to Postgres.
func (c Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// SnapshotsEnabled reports whether the cache should be persisted to Redis.
func (c Config) SnapshotsEnabled() bool {
	return c.RedisURL != ""
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
