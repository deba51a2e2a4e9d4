package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("READERSYNC_USERNAME", "jane@example.com")
	t.Setenv("READERSYNC_PASSWORD", "secret")
	t.Setenv("READERSYNC_BACKEND", "")
	t.Setenv("READERSYNC_DB_PATH", "")
	t.Setenv("READERSYNC_PAGE_SIZE", "")
	t.Setenv("READERSYNC_MAX_AUTH_FAILURES", "")
	t.Setenv("READERSYNC_LIST_INTERVAL", "")
	t.Setenv("READERSYNC_QUICK_INTERVAL", "")
}

func TestLoadFromEnv_UsesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}

	if cfg.Backend != "reedah" {
		t.Fatalf("unexpected backend: %s", cfg.Backend)
	}
	if cfg.DBPath != "readersync.db" {
		t.Fatalf("unexpected DB path: %s", cfg.DBPath)
	}
	if cfg.PageSize != 30 {
		t.Fatalf("unexpected page size: %d", cfg.PageSize)
	}
	if cfg.ListInterval != 24*time.Hour || cfg.QuickInterval != 10*time.Minute {
		t.Fatalf("unexpected intervals: %s / %s", cfg.ListInterval, cfg.QuickInterval)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("READERSYNC_BACKEND", "theoldreader")
	t.Setenv("READERSYNC_PAGE_SIZE", "50")
	t.Setenv("READERSYNC_QUICK_INTERVAL", "5m")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Backend != "theoldreader" || cfg.PageSize != 50 || cfg.QuickInterval != 5*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFromEnv_MissingUsername(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("READERSYNC_USERNAME", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestLoadFromEnv_BadPageSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("READERSYNC_PAGE_SIZE", "lots")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for non-numeric page size")
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := Config{
		Backend:         "feedly",
		Username:        "jane@example.com",
		Password:        "secret",
		DBPath:          "readersync.db",
		PageSize:        30,
		MaxAuthFailures: 3,
		ListInterval:    24 * time.Hour,
		QuickInterval:   10 * time.Minute,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestValidate_QuickIntervalExceedsListInterval(t *testing.T) {
	cfg := Config{
		Backend:         "reedah",
		Username:        "jane@example.com",
		Password:        "secret",
		DBPath:          "readersync.db",
		PageSize:        30,
		MaxAuthFailures: 3,
		ListInterval:    time.Hour,
		QuickInterval:   2 * time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted intervals")
	}
}
