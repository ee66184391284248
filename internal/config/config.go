package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// PollTimeout is the server-side long-poll wait budget.
	PollTimeout time.Duration

	// Retention and MaxQueuedUpdates bound the broker's per-column queues.
	Retention        time.Duration
	MaxQueuedUpdates int

	// MaxConcurrentPolls caps parked long-poll requests per instance.
	MaxConcurrentPolls int64

	// PublishRatePerSec and PublishBurst bound the per-IP publish rate.
	PublishRatePerSec float64
	PublishBurst      int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.PollTimeout, err = getDuration("POLL_TIMEOUT", 25*time.Second); err != nil {
		return nil, err
	}
	if cfg.Retention, err = getDuration("UPDATE_RETENTION", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxQueuedUpdates, err = getInt("MAX_QUEUED_UPDATES", 100); err != nil {
		return nil, err
	}
	maxPolls, err := getInt("MAX_CONCURRENT_POLLS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.MaxConcurrentPolls = int64(maxPolls)
	if cfg.PublishRatePerSec, err = getFloat("PUBLISH_RATE_PER_SEC", 50); err != nil {
		return nil, err
	}
	if cfg.PublishBurst, err = getInt("PUBLISH_BURST", 100); err != nil {
		return nil, err
	}

	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("POLL_TIMEOUT must be positive")
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("UPDATE_RETENTION must be positive")
	}
	if cfg.MaxQueuedUpdates <= 0 {
		return nil, fmt.Errorf("MAX_QUEUED_UPDATES must be positive")
	}
	if cfg.MaxConcurrentPolls <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_POLLS must be positive")
	}
	if cfg.PublishRatePerSec <= 0 {
		return nil, fmt.Errorf("PUBLISH_RATE_PER_SEC must be positive")
	}
	if cfg.PublishBurst <= 0 {
		return nil, fmt.Errorf("PUBLISH_BURST must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
