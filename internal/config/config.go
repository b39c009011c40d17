package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Bot       BotConfig      `toml:"bot"`
	Storage   StorageConfig  `toml:"storage"`
	Report    ReportConfig   `toml:"report"`
	Reminders ReminderConfig `toml:"reminders"`
	Backup    BackupConfig   `toml:"backup"`
	Calendar  CalendarConfig `toml:"calendar"`
	Log       LogConfig      `toml:"log"`
}

type BotConfig struct {
	Token              string `toml:"token"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

type StorageConfig struct {
	ExcelFile string `toml:"excel_file"`
	DataDir   string `toml:"data_dir"` // sqlite state and PID file; empty means ConfigDir
}

type ReportConfig struct {
	DuplicatePolicy   string  `toml:"duplicate_policy"` // "reject" or "overwrite"
	LunchHours        float64 `toml:"lunch_hours"`
	SessionTTLMinutes int     `toml:"session_ttl_minutes"`
}

type ReminderConfig struct {
	Timezone      string `toml:"timezone"`
	DefaultHour   int    `toml:"default_hour"`
	DefaultMinute int    `toml:"default_minute"`
	SkipWeekends  bool   `toml:"skip_weekends"`
}

type BackupConfig struct {
	Enabled   bool   `toml:"enabled"`
	Token     string `toml:"token"`
	RemoteDir string `toml:"remote_dir"`
	BaseURL   string `toml:"base_url"`
}

type CalendarConfig struct {
	Enabled bool   `toml:"enabled"`
	Source  string `toml:"source"` // ICS URL or file path
}

type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// dotenvPath is the .env file Load reads before the config file.
var dotenvPath = ".env"

func DefaultConfig() Config {
	return Config{
		Bot: BotConfig{
			PollTimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			ExcelFile: "work_reports.xlsx",
		},
		Report: ReportConfig{
			DuplicatePolicy: "reject",
			LunchHours:      0.5,
		},
		Reminders: ReminderConfig{
			Timezone:      "Europe/Moscow",
			DefaultHour:   18,
			DefaultMinute: 0,
		},
		Backup: BackupConfig{
			RemoteDir: "/WorkTracker",
			BaseURL:   "https://cloud-api.yandex.net",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "worktracker"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A .env file in the working directory is loaded first so its
// variables take part in the environment overrides.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", dotenvPath, err)
	}

	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("EXCEL_FILE"); v != "" {
		cfg.Storage.ExcelFile = v
	}
	if v := os.Getenv("WORKTRACKER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("WORKTRACKER_TIMEZONE"); v != "" {
		cfg.Reminders.Timezone = v
	}
	if v := os.Getenv("YANDEX_DISK_TOKEN"); v != "" {
		cfg.Backup.Token = v
		cfg.Backup.Enabled = true
	}
	if v := os.Getenv("CALENDAR_SOURCE"); v != "" {
		cfg.Calendar.Source = v
		cfg.Calendar.Enabled = true
	}
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Report.DuplicatePolicy {
	case "reject", "overwrite":
	default:
		return fmt.Errorf("report.duplicate_policy: unknown policy %q", c.Report.DuplicatePolicy)
	}
	if c.Report.LunchHours < 0 {
		return fmt.Errorf("report.lunch_hours: must not be negative")
	}
	if c.Report.SessionTTLMinutes < 0 {
		return fmt.Errorf("report.session_ttl_minutes: must not be negative")
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return fmt.Errorf("reminders.timezone: %w", err)
	}
	if c.Reminders.DefaultHour < 0 || c.Reminders.DefaultHour > 23 {
		return fmt.Errorf("reminders.default_hour: %d out of range", c.Reminders.DefaultHour)
	}
	if c.Reminders.DefaultMinute < 0 || c.Reminders.DefaultMinute > 59 {
		return fmt.Errorf("reminders.default_minute: %d out of range", c.Reminders.DefaultMinute)
	}
	if c.Backup.Enabled && c.Backup.Token == "" {
		return fmt.Errorf("backup.token: required when backup is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// Location returns the reminder timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DataDir returns the directory for bot state, creating it if needed.
func (c *Config) DataDir() (string, error) {
	dir := c.Storage.DataDir
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// WriteDefaults writes the default config to path unless a file exists.
func WriteDefaults(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// Set updates a single "section.key" value in the config file, leaving
// other settings as they are. The result must still validate.
func Set(path, key string, value any) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return fmt.Errorf("key %q must look like section.key", key)
	}

	cfg := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	sect, ok := cfg[section].(map[string]any)
	if !ok {
		sect = make(map[string]any)
	}
	sect[field] = value
	cfg[section] = sect

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	check := DefaultConfig()
	if err := toml.Unmarshal(out, &check); err != nil {
		return fmt.Errorf("value for %s: %w", key, err)
	}
	if err := check.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// ParseValue converts a command-line value to the TOML type it most likely
// means: integer, float, bool, or string.
func ParseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
