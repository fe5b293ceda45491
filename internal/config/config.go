package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Telegram
	TelegramToken string

	// Database
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Dispatch
	DispatchInterval   time.Duration
	ExpiryInterval     time.Duration
	OfferTTL           time.Duration
	MaxJobsPerCycle    int
	MatchesPerJob      int
	MinClassConfidence float64
	LowCreditThreshold float64

	// Pricing clock, decides evening and weekend rates
	Timezone string
	Location *time.Location

	// Logging
	LogLevel string
}

// Load reads config from env. Values from .env.local / .env are applied
// first when the files exist; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local", ".env")

	cfg := &Config{
		// Defaults
		DispatchInterval:   5 * time.Minute,
		ExpiryInterval:     time.Minute,
		OfferTTL:           2 * time.Hour,
		MaxJobsPerCycle:    20,
		MatchesPerJob:      3,
		MinClassConfidence: 0.6,
		LowCreditThreshold: 50,
		Timezone:           "Europe/London",
		LogLevel:           "info",
		RedisDB:            0,
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	} else {
		cfg.RedisAddr = "localhost:6379"
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		db, err := strconv.Atoi(redisDB)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	durations := map[string]*time.Duration{
		"DISPATCH_INTERVAL": &cfg.DispatchInterval,
		"EXPIRY_INTERVAL":   &cfg.ExpiryInterval,
		"OFFER_TTL":         &cfg.OfferTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"MAX_JOBS_PER_CYCLE": &cfg.MaxJobsPerCycle,
		"MATCHES_PER_JOB":    &cfg.MatchesPerJob,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"MIN_CLASSIFICATION_CONFIDENCE": &cfg.MinClassConfidence,
		"LOW_CREDIT_THRESHOLD":          &cfg.LowCreditThreshold,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = f
		}
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram token is empty")
	}

	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN is empty")
	}

	if c.DispatchInterval < 30*time.Second {
		return fmt.Errorf("dispatch interval too small: %v", c.DispatchInterval)
	}

	if c.ExpiryInterval < 10*time.Second {
		return fmt.Errorf("expiry interval too small: %v", c.ExpiryInterval)
	}

	if c.OfferTTL < time.Minute {
		return fmt.Errorf("offer TTL too small: %v", c.OfferTTL)
	}

	if c.MaxJobsPerCycle < 1 || c.MaxJobsPerCycle > 500 {
		return fmt.Errorf("max jobs per cycle must be between 1 and 500")
	}

	if c.MatchesPerJob < 1 || c.MatchesPerJob > 10 {
		return fmt.Errorf("matches per job must be between 1 and 10")
	}

	if c.MinClassConfidence < 0 || c.MinClassConfidence > 1 {
		return fmt.Errorf("min classification confidence must be between 0 and 1")
	}

	if c.LowCreditThreshold < 0 {
		return fmt.Errorf("low credit threshold must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
