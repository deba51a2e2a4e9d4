package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the sync engine and CLI.
type Config struct {
	Backend         string
	Username        string
	Password        string
	DBPath          string
	PageSize        int
	MaxAuthFailures int
	ListInterval    time.Duration
	QuickInterval   time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Backend:  os.Getenv("READERSYNC_BACKEND"),
		Username: os.Getenv("READERSYNC_USERNAME"),
		Password: os.Getenv("READERSYNC_PASSWORD"),
		DBPath:   os.Getenv("READERSYNC_DB_PATH"),
	}

	if cfg.Backend == "" {
		cfg.Backend = "reedah"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "readersync.db"
	}

	var err error
	if cfg.PageSize, err = intFromEnv("READERSYNC_PAGE_SIZE", 30); err != nil {
		return Config{}, err
	}
	if cfg.MaxAuthFailures, err = intFromEnv("READERSYNC_MAX_AUTH_FAILURES", 3); err != nil {
		return Config{}, err
	}
	if cfg.ListInterval, err = durationFromEnv("READERSYNC_LIST_INTERVAL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.QuickInterval, err = durationFromEnv("READERSYNC_QUICK_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend != "reedah" && c.Backend != "theoldreader" {
		return fmt.Errorf("READERSYNC_BACKEND must be reedah or theoldreader: %s", c.Backend)
	}
	if c.Username == "" {
		return errors.New("READERSYNC_USERNAME is required")
	}
	if c.Password == "" {
		return errors.New("READERSYNC_PASSWORD is required")
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PageSize must be positive: %d", c.PageSize)
	}
	if c.MaxAuthFailures < 1 {
		return fmt.Errorf("MaxAuthFailures must be positive: %d", c.MaxAuthFailures)
	}
	if c.QuickInterval <= 0 || c.ListInterval <= 0 {
		return errors.New("update intervals must be positive")
	}
	if c.QuickInterval > c.ListInterval {
		return fmt.Errorf("QuickInterval must not exceed ListInterval: %s > %s", c.QuickInterval, c.ListInterval)
	}
	return nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %s", key, raw)
	}
	return v, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 5m or 1h: %s", key, raw)
	}
	return v, nil
}
