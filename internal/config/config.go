package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	// Remote backend that owns RNG, payouts and persistence.
	APIBaseURL     string
	RequestTimeout time.Duration

	BotToken       string
	InitDataMaxAge time.Duration

	JWTSecret string
	JWTExpiry time.Duration

	RedisURL  string
	RedisPass string
	RedisDB   int

	AllowedOrigins  []string
	ActionRateLimit int
	LogLevel        string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		APIBaseURL:      strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RequestTimeout:  30 * time.Second,
		InitDataMaxAge:  24 * time.Hour,
		JWTExpiry:       24 * time.Hour,
		ActionRateLimit: 30,
	}

	var err error
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ActionRateLimit, err = getEnvAsInt("ACTION_RATE_LIMIT", cfg.ActionRateLimit); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.InitDataMaxAge, err = getEnvAsDuration("INIT_DATA_MAX_AGE", cfg.InitDataMaxAge); err != nil {
		return nil, err
	}
	if cfg.JWTExpiry, err = getEnvAsDuration("JWT_EXPIRY", cfg.JWTExpiry); err != nil {
		return nil, err
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
