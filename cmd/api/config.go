package main

import (
	"os"
	"time"
)

type Config struct {
	Addr          string        // HTTP listen address (default: :8080)
	DatabaseURL   string        // Required: Postgres DSN
	RedisAddr     string        // Redis host:port (default: localhost:6379)
	SessionSecret string        // Required: HMAC secret for session tokens
	SessionTTL    time.Duration // Session lifetime (default: 24h)
	RenderTTL     time.Duration // Render cache lifetime (default: 5m)
	LogLevel      string        // debug, info, warn, error (default: info)
	LogFormat     string        // json, text (default: json)
	ShutdownGrace time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Addr:          getEnvOrDefault("APP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", 24*time.Hour),
		RenderTTL:     getEnvDurationOrDefault("RENDER_CACHE_TTL", 5*time.Minute),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGrace: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
