package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	EventsChannel   string
	BulkConcurrency int
	MetricsSchedule string
	RateLimitMax    int
	RateLimitWindow time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRAINING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Training Progress API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "training:progress")
	v.SetDefault("bulk.concurrency", 8)
	v.SetDefault("metrics.schedule", "@every 5m")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("shutdown.timeout", "5s")
	v.SetDefault("cors.origins", "*")

	window, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	shutdown, err := parseDuration(v.GetString("shutdown.timeout"), 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		JWTSecret:       v.GetString("jwt.secret"),
		EventsChannel:   strings.TrimSpace(v.GetString("events.channel")),
		BulkConcurrency: v.GetInt("bulk.concurrency"),
		MetricsSchedule: strings.TrimSpace(v.GetString("metrics.schedule")),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: window,
		ShutdownTimeout: shutdown,
		CORSOrigins:     strings.TrimSpace(v.GetString("cors.origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.EventsChannel == "" {
		cfg.EventsChannel = "training:progress"
	}

	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 8
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 60
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
