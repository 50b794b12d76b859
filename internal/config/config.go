package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
)

// Config carries process-level settings loaded once from the environment.
type Config struct {
	Environment string
	HTTPAddr    string
	ServiceName string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// UpstreamTimeout bounds every outbound provider/gateway call.
	UpstreamTimeout time.Duration

	// ConfigCacheTTL bounds how stale an active provider/gateway snapshot
	// may be before the next call re-reads the store.
	ConfigCacheTTL time.Duration

	OTLPEndpoint string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment with sane defaults.
func Load() Config {
	return Config{
		Environment:     getEnv("DOUBLEA_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ServiceName:     getEnv("SERVICE_NAME", "doublea"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "file:doublea.db?_pragma=busy_timeout(5000)"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		ConfigCacheTTL:  getEnvDuration("CONFIG_CACHE_TTL", 5*time.Second),
		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewEnvCredentials),
)
