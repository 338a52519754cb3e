package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.TickSeconds != 15 || cfg.Scheduler.ToleranceSeconds != 20 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Retention.HistoryLimit != 50 || cfg.Retention.HistoryMaxHours != 24 {
		t.Fatalf("unexpected retention defaults: %+v", cfg.Retention)
	}
	if cfg.Data.BackupKeep != 7 {
		t.Fatalf("unexpected backup retention: %d", cfg.Data.BackupKeep)
	}
	if cfg.Scheduler.Timezone != "Asia/Kolkata" {
		t.Fatalf("unexpected default timezone: %s", cfg.Scheduler.Timezone)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"scheduler": {"tick_seconds": 30}, "data": {"backup_keep": 3}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tick() != 30*time.Second {
		t.Fatalf("expected 30s tick, got %v", cfg.Tick())
	}
	if cfg.Data.BackupKeep != 3 {
		t.Fatalf("expected backup_keep 3, got %d", cfg.Data.BackupKeep)
	}
	// Untouched values keep defaults.
	if cfg.Tolerance() != 20*time.Second {
		t.Fatalf("expected default tolerance, got %v", cfg.Tolerance())
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"scheduler": {"tick_seconds": 30}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("EVARA_SCHEDULER_TICK_SECONDS", "45")
	t.Setenv("EVARA_SCHEDULER_TIMEZONE", "Europe/London")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.TickSeconds != 45 {
		t.Fatalf("expected env to win, got %d", cfg.Scheduler.TickSeconds)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Europe/London" {
		t.Fatalf("unexpected location: %s", loc)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.Dir = "/var/lib/evara"

	if got := cfg.MemoryFilePath(); got != "/var/lib/evara/user_memory.json" {
		t.Fatalf("unexpected snapshot path: %s", got)
	}
	if got := cfg.BackupDirPath(); got != "/var/lib/evara/backups" {
		t.Fatalf("unexpected backup dir: %s", got)
	}
	if got := cfg.AuditDBPath(); got != "/var/lib/evara/deliveries.db" {
		t.Fatalf("unexpected audit path: %s", got)
	}
}

func TestConfig_InvalidTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.Timezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected invalid timezone to error")
	}
}
