package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Discord DiscordConfig
	DB      DBConfig
	Redis   RedisConfig
	HTTP    HTTPConfig
	OTel    OTelConfig

	// EconomyPath points to the YAML file with the economy settings.
	EconomyPath         string
	LeaderboardCacheTTL time.Duration
}

type DiscordConfig struct {
	Token string
}

type DBConfig struct {
	URL           string
	MaxConns      int
	ProbeAttempts int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type HTTPConfig struct {
	Port      string
	JWTSecret string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables.
// In development, a .env file in the working directory is loaded first.
func Load() (Config, error) {
	if getEnv("COINS_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env: getEnv("COINS_ENV", "development"),
		Discord: DiscordConfig{
			Token: getEnv("DISCORD_TOKEN", ""),
		},
		DB: DBConfig{
			URL:           getEnv("DATABASE_URL", "sqlite://coins.db"),
			MaxConns:      getEnvInt("DB_MAX_CONNS", 10),
			ProbeAttempts: getEnvInt("DB_PROBE_ATTEMPTS", 3),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		HTTP: HTTPConfig{
			Port:      getEnv("HTTP_PORT", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "coinsbot"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		EconomyPath:         getEnv("ECONOMY_CONFIG", "economy.yaml"),
		LeaderboardCacheTTL: getEnvDuration("LEADERBOARD_CACHE_TTL", 30*time.Second),
	}

	if cfg.DB.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.HTTP.Enabled() && cfg.HTTP.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required when HTTP_PORT is set")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c HTTPConfig) Enabled() bool {
	return c.Port != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
