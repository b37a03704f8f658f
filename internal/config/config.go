// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"imanconnect/internal/utils"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// EnvPrefix prefixes environment overrides, e.g. IMANCONNECT_DATABASE_PATH.
const EnvPrefix = "IMANCONNECT"

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Backup       BackupConfig       `mapstructure:"backup" yaml:"backup"`
	FlatFiles    FlatFilesConfig    `mapstructure:"flatfiles" yaml:"flatfiles"`
	Quran        QuranConfig        `mapstructure:"quran" yaml:"quran"`
	Security     SecurityConfig     `mapstructure:"security" yaml:"security"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Executor     ExecutorConfig     `mapstructure:"executor" yaml:"executor"`
	Location     LocationConfig     `mapstructure:"location" yaml:"location"`
	Reminders    ReminderConfig     `mapstructure:"reminders" yaml:"reminders"`
	OutputFormat string             `mapstructure:"output_format" yaml:"output_format" validate:"oneof=text json"`
}

// DatabaseConfig holds the embedded database and pool settings
type DatabaseConfig struct {
	Path           string `mapstructure:"path" yaml:"path" validate:"required"`
	MaxOpenConns   int    `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"min=1,max=64"`
	AcquireTimeout string `mapstructure:"acquire_timeout" yaml:"acquire_timeout" validate:"required"`
	BusyTimeoutMs  int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms" validate:"min=0"`
}

// BackupConfig holds backup rotation settings
type BackupConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir             string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Retention       int    `mapstructure:"retention" yaml:"retention" validate:"min=1"`
	Interval        string `mapstructure:"interval" yaml:"interval" validate:"required"`
	InitialDelay    string `mapstructure:"initial_delay" yaml:"initial_delay" validate:"required"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required"`
}

// FlatFilesConfig holds the daily text file locations
type FlatFilesConfig struct {
	Dir            string `mapstructure:"dir" yaml:"dir" validate:"required"`
	PrayerFile     string `mapstructure:"prayer_file" yaml:"prayer_file" validate:"required"`
	QuranFile      string `mapstructure:"quran_file" yaml:"quran_file" validate:"required"`
	TasbihFile     string `mapstructure:"tasbih_file" yaml:"tasbih_file" validate:"required"`
	QuranDailyGoal int    `mapstructure:"quran_daily_goal" yaml:"quran_daily_goal" validate:"min=1"`
}

// QuranConfig holds the Quran text provider settings
type QuranConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
	RetryDelay string `mapstructure:"retry_delay" yaml:"retry_delay" validate:"required"`
	Timeout    string `mapstructure:"timeout" yaml:"timeout" validate:"required"`
}

// SecurityConfig holds password hashing settings
type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost" validate:"min=4,max=31"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Format  string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled    bool                      `mapstructure:"enabled" yaml:"enabled"`
	LogEnabled bool                      `mapstructure:"log_enabled" yaml:"log_enabled"`
	LogPath    string                    `mapstructure:"log_path" yaml:"log_path"`
	MaxSizeMB  int                       `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=1"`
	Desktop    DesktopNotificationConfig `mapstructure:"desktop" yaml:"desktop"`
}

// DesktopNotificationConfig selects which events raise an OS notification
type DesktopNotificationConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	OnQuestion      bool `mapstructure:"on_question" yaml:"on_question"`
	OnAnswer        bool `mapstructure:"on_answer" yaml:"on_answer"`
	OnBackupFailure bool `mapstructure:"on_backup_failure" yaml:"on_backup_failure"`
}

// ExecutorConfig bounds the async worker pool; 0 means unbounded
type ExecutorConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" validate:"min=0"`
}

// ReminderConfig holds prayer reminder settings for serve. Intervals are lead
// times such as "15m", or "at prayer time".
type ReminderConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	Intervals  []string `mapstructure:"intervals" yaml:"intervals"`
	CheckEvery string   `mapstructure:"check_every" yaml:"check_every" validate:"required"`
}

// LocationConfig selects the prayer timetable
type LocationConfig struct {
	Division string `mapstructure:"division" yaml:"division"`
	City     string `mapstructure:"city" yaml:"city"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	dataDir := GetDataDir()
	return &Config{
		Database: DatabaseConfig{
			Path:           filepath.Join(dataDir, "imanconnect.db"),
			MaxOpenConns:   10,
			AcquireTimeout: "30s",
			BusyTimeoutMs:  5000,
		},
		Backup: BackupConfig{
			Enabled:         true,
			Dir:             filepath.Join(dataDir, "backups"),
			Retention:       5,
			Interval:        "24h",
			InitialDelay:    "1h",
			ShutdownTimeout: "60s",
		},
		FlatFiles: FlatFilesConfig{
			Dir:            dataDir,
			PrayerFile:     "salah_data.txt",
			QuranFile:      "quran_data.txt",
			TasbihFile:     "tasbih_data.txt",
			QuranDailyGoal: 10,
		},
		Quran: QuranConfig{
			BaseURL:    "http://api.alquran.cloud/v1",
			MaxRetries: 3,
			RetryDelay: "1s",
			Timeout:    "10s",
		},
		Security: SecurityConfig{BcryptCost: 12},
		Logging:  LoggingConfig{Format: "console"},
		Metrics:  MetricsConfig{Enabled: false, Addr: "127.0.0.1:9464"},
		Notification: NotificationConfig{
			Enabled:    true,
			LogEnabled: true,
			LogPath:    filepath.Join(dataDir, "notifications.log"),
			MaxSizeMB:  10,
			Desktop: DesktopNotificationConfig{
				OnQuestion:      true,
				OnAnswer:        true,
				OnBackupFailure: true,
			},
		},
		Location: LocationConfig{Division: "Dhaka", City: "Dhaka"},
		Reminders: ReminderConfig{
			Enabled:    false,
			Intervals:  []string{"15m", "at prayer time"},
			CheckEvery: "30s",
		},
		OutputFormat: "text",
	}
}

// setDefaults mirrors DefaultConfig into viper so env overrides and partial
// files fall back to the same values.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.acquire_timeout", d.Database.AcquireTimeout)
	v.SetDefault("database.busy_timeout_ms", d.Database.BusyTimeoutMs)
	v.SetDefault("backup.enabled", d.Backup.Enabled)
	v.SetDefault("backup.dir", d.Backup.Dir)
	v.SetDefault("backup.retention", d.Backup.Retention)
	v.SetDefault("backup.interval", d.Backup.Interval)
	v.SetDefault("backup.initial_delay", d.Backup.InitialDelay)
	v.SetDefault("backup.shutdown_timeout", d.Backup.ShutdownTimeout)
	v.SetDefault("flatfiles.dir", d.FlatFiles.Dir)
	v.SetDefault("flatfiles.prayer_file", d.FlatFiles.PrayerFile)
	v.SetDefault("flatfiles.quran_file", d.FlatFiles.QuranFile)
	v.SetDefault("flatfiles.tasbih_file", d.FlatFiles.TasbihFile)
	v.SetDefault("flatfiles.quran_daily_goal", d.FlatFiles.QuranDailyGoal)
	v.SetDefault("quran.base_url", d.Quran.BaseURL)
	v.SetDefault("quran.max_retries", d.Quran.MaxRetries)
	v.SetDefault("quran.retry_delay", d.Quran.RetryDelay)
	v.SetDefault("quran.timeout", d.Quran.Timeout)
	v.SetDefault("security.bcrypt_cost", d.Security.BcryptCost)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.verbose", d.Logging.Verbose)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("notification.enabled", d.Notification.Enabled)
	v.SetDefault("notification.log_enabled", d.Notification.LogEnabled)
	v.SetDefault("notification.log_path", d.Notification.LogPath)
	v.SetDefault("notification.max_size_mb", d.Notification.MaxSizeMB)
	v.SetDefault("notification.desktop.enabled", d.Notification.Desktop.Enabled)
	v.SetDefault("notification.desktop.on_question", d.Notification.Desktop.OnQuestion)
	v.SetDefault("notification.desktop.on_answer", d.Notification.Desktop.OnAnswer)
	v.SetDefault("notification.desktop.on_backup_failure", d.Notification.Desktop.OnBackupFailure)
	v.SetDefault("executor.max_workers", d.Executor.MaxWorkers)
	v.SetDefault("location.division", d.Location.Division)
	v.SetDefault("location.city", d.Location.City)
	v.SetDefault("reminders.enabled", d.Reminders.Enabled)
	v.SetDefault("reminders.intervals", d.Reminders.Intervals)
	v.SetDefault("reminders.check_every", d.Reminders.CheckEvery)
	v.SetDefault("output_format", d.OutputFormat)
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the embedded sample.
// A .env file in the working directory is loaded first; IMANCONNECT_* variables
// override file values.
func Load(configPath string) (*Config, error) {
	configPath = ResolvePath(configPath)

	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Warnf("ignoring .env: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath returns configPath, or the default config file when it is empty.
func ResolvePath(configPath string) string {
	if configPath == "" {
		return filepath.Join(GetConfigDir(), "config.yaml")
	}
	return configPath
}

// writeSample writes the embedded sample to path
func writeSample(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() {
	c.Database.Path = ExpandPath(c.Database.Path)
	c.Backup.Dir = ExpandPath(c.Backup.Dir)
	c.FlatFiles.Dir = ExpandPath(c.FlatFiles.Dir)
	c.Notification.LogPath = ExpandPath(c.Notification.LogPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, value := range map[string]string{
		"database.acquire_timeout": c.Database.AcquireTimeout,
		"backup.interval":          c.Backup.Interval,
		"backup.initial_delay":     c.Backup.InitialDelay,
		"backup.shutdown_timeout":  c.Backup.ShutdownTimeout,
		"quran.retry_delay":        c.Quran.RetryDelay,
		"quran.timeout":            c.Quran.Timeout,
		"reminders.check_every":    c.Reminders.CheckEvery,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid configuration: %s must not be negative", name)
		}
	}
	if d, _ := time.ParseDuration(c.Backup.Interval); d == 0 {
		return errors.New("invalid configuration: backup.interval must be greater than zero")
	}
	return nil
}

// YAML renders the effective configuration
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// duration parses a validated duration field, falling back when empty
func duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// GetAcquireTimeout returns how long Acquire waits for a free connection
func (c *Config) GetAcquireTimeout() time.Duration {
	return duration(c.Database.AcquireTimeout, 30*time.Second)
}

// GetBackupInterval returns the period between scheduled backups
func (c *Config) GetBackupInterval() time.Duration {
	return duration(c.Backup.Interval, 24*time.Hour)
}

// GetBackupInitialDelay returns the delay before the first scheduled backup
func (c *Config) GetBackupInitialDelay() time.Duration {
	return duration(c.Backup.InitialDelay, time.Hour)
}

// GetBackupShutdownTimeout bounds how long shutdown waits for a running backup
func (c *Config) GetBackupShutdownTimeout() time.Duration {
	return duration(c.Backup.ShutdownTimeout, 60*time.Second)
}

// GetReminderCheckEvery returns how often serve looks for due reminders
func (c *Config) GetReminderCheckEvery() time.Duration {
	return duration(c.Reminders.CheckEvery, 30*time.Second)
}

// GetQuranRetryDelay returns the base delay between Quran API retries
func (c *Config) GetQuranRetryDelay() time.Duration {
	return duration(c.Quran.RetryDelay, time.Second)
}

// GetQuranTimeout returns the per-request Quran API timeout
func (c *Config) GetQuranTimeout() time.Duration {
	return duration(c.Quran.Timeout, 10*time.Second)
}

// PrayerFilePath returns the absolute path of the daily prayer status file
func (c *Config) PrayerFilePath() string {
	return filepath.Join(c.FlatFiles.Dir, c.FlatFiles.PrayerFile)
}

// QuranFilePath returns the absolute path of the daily Quran pages file
func (c *Config) QuranFilePath() string {
	return filepath.Join(c.FlatFiles.Dir, c.FlatFiles.QuranFile)
}

// TasbihFilePath returns the absolute path of the daily tasbih file
func (c *Config) TasbihFilePath() string {
	return filepath.Join(c.FlatFiles.Dir, c.FlatFiles.TasbihFile)
}

// ProfilePicturesDir returns where copied avatars are kept
func (c *Config) ProfilePicturesDir() string {
	return filepath.Join(filepath.Dir(c.Database.Path), "profile_pictures")
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "imanconnect")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "imanconnect")
	}
	return filepath.Join(home, fallbackPath, "imanconnect")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
