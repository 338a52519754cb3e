package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Data      DataConfig      `json:"data"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Retention RetentionConfig `json:"retention"`
	Channels  ChannelsConfig  `json:"channels"`
}

// DataConfig locates the snapshot file and its backup archive.
type DataConfig struct {
	Dir          string `json:"dir" env:"EVARA_DATA_DIR"`
	MemoryFile   string `json:"memory_file" env:"EVARA_DATA_MEMORY_FILE"`
	BackupDir    string `json:"backup_dir" env:"EVARA_DATA_BACKUP_DIR"`
	BackupKeep   int    `json:"backup_keep" env:"EVARA_DATA_BACKUP_KEEP"`
	BackupCron   string `json:"backup_cron" env:"EVARA_DATA_BACKUP_CRON"`
	AuditDBFile  string `json:"audit_db_file" env:"EVARA_DATA_AUDIT_DB_FILE"`
	AuditEnabled bool   `json:"audit_enabled" env:"EVARA_DATA_AUDIT_ENABLED"`
}

type SchedulerConfig struct {
	TickSeconds      int    `json:"tick_seconds" env:"EVARA_SCHEDULER_TICK_SECONDS"`
	ToleranceSeconds int    `json:"tolerance_seconds" env:"EVARA_SCHEDULER_TOLERANCE_SECONDS"`
	Timezone         string `json:"timezone" env:"EVARA_SCHEDULER_TIMEZONE"`
}

type RetentionConfig struct {
	HistoryLimit    int `json:"history_limit" env:"EVARA_RETENTION_HISTORY_LIMIT"`
	HistoryMaxHours int `json:"history_max_hours" env:"EVARA_RETENTION_HISTORY_MAX_HOURS"`
	PruneHours      int `json:"prune_hours" env:"EVARA_RETENTION_PRUNE_HOURS"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token string `json:"token" env:"EVARA_CHANNELS_DISCORD_TOKEN"`
}

func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:          "~/.evara/data",
			MemoryFile:   "user_memory.json",
			BackupDir:    "backups",
			BackupKeep:   7,
			BackupCron:   "0 0 * * *",
			AuditDBFile:  "deliveries.db",
			AuditEnabled: true,
		},
		Scheduler: SchedulerConfig{
			TickSeconds:      15,
			ToleranceSeconds: 20,
			Timezone:         "Asia/Kolkata",
		},
		Retention: RetentionConfig{
			HistoryLimit:    50,
			HistoryMaxHours: 24,
			PruneHours:      24,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{Token: ""},
		},
	}
}

// LoadConfig reads path (a missing file is fine, defaults apply) and
// then overlays environment variables on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// DataDir returns the data directory with ~ expanded.
func (c *Config) DataDir() string {
	return expandHome(c.Data.Dir)
}

// MemoryFilePath is the canonical snapshot location.
func (c *Config) MemoryFilePath() string {
	return filepath.Join(c.DataDir(), c.Data.MemoryFile)
}

// BackupDirPath is the dated archive directory.
func (c *Config) BackupDirPath() string {
	if filepath.IsAbs(c.Data.BackupDir) {
		return c.Data.BackupDir
	}
	return filepath.Join(c.DataDir(), c.Data.BackupDir)
}

// AuditDBPath is the delivery journal location.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir(), c.Data.AuditDBFile)
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.Scheduler.ToleranceSeconds) * time.Second
}

func (c *Config) HistoryMaxAge() time.Duration {
	return time.Duration(c.Retention.HistoryMaxHours) * time.Hour
}

func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.Retention.PruneHours) * time.Hour
}

// Location resolves the scheduling timezone. All due-time math happens
// in this one fixed location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
