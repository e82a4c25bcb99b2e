package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "keeper.db"
	defaultConfigRoot   = "/datto/config"
	defaultSettingsRoot = "/datto/config/keys"
	defaultShotRoot     = "/datto/screenshots"
	defaultSyncInterval = 15 * time.Minute

	envConfigFile   = "KEEPER_CONFIG_FILE"
	envListenAddr   = "KEEPER_LISTEN_ADDR"
	envDBPath       = "KEEPER_DB_PATH"
	envLogLevel     = "KEEPER_LOG_LEVEL"
	envConfigRoot   = "KEEPER_CONFIG_ROOT"
	envSettingsRoot = "KEEPER_SETTINGS_ROOT"
	envShotRoot     = "KEEPER_SCREENSHOT_ROOT"
	envCloudURL     = "KEEPER_CLOUD_URL"
	envCloudToken   = "KEEPER_CLOUD_TOKEN"
	envDeviceID     = "KEEPER_DEVICE_ID"
	envSyncInterval = "KEEPER_SYNC_INTERVAL"
)

// Config holds daemon configuration.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// ConfigRoot holds one file per device config key.
	ConfigRoot string
	// SettingsRoot holds per-asset settings files.
	SettingsRoot string
	// ScreenshotRoot is the only directory screenshot images are pruned from.
	ScreenshotRoot string

	CloudURL   string
	CloudToken string
	DeviceID   string

	// SyncInterval is how often a cloud-sync job is scheduled. Zero disables it.
	SyncInterval time.Duration
}

// CloudEnabled reports whether a portal is configured.
func (c Config) CloudEnabled() bool {
	return c.CloudURL != "" && c.DeviceID != ""
}

// fileConfig mirrors Config in the YAML file. Empty fields keep the default.
type fileConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"`
	ConfigRoot   string `yaml:"config_root"`
	SettingsRoot string `yaml:"settings_root"`
	ShotRoot     string `yaml:"screenshot_root"`
	CloudURL     string `yaml:"cloud_url"`
	CloudToken   string `yaml:"cloud_token"`
	DeviceID     string `yaml:"device_id"`
	SyncInterval string `yaml:"sync_interval"`
}

// Load reads configuration from defaults, then the YAML file named by
// KEEPER_CONFIG_FILE if set, then environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv(envConfigFile))
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		ConfigRoot:     defaultConfigRoot,
		SettingsRoot:   defaultSettingsRoot,
		ScreenshotRoot: defaultShotRoot,
		SyncInterval:   defaultSyncInterval,
	}

	values := fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlay := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	overlay(&values.ListenAddr, envListenAddr)
	overlay(&values.DBPath, envDBPath)
	overlay(&values.LogLevel, envLogLevel)
	overlay(&values.ConfigRoot, envConfigRoot)
	overlay(&values.SettingsRoot, envSettingsRoot)
	overlay(&values.ShotRoot, envShotRoot)
	overlay(&values.CloudURL, envCloudURL)
	overlay(&values.CloudToken, envCloudToken)
	overlay(&values.DeviceID, envDeviceID)
	overlay(&values.SyncInterval, envSyncInterval)

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ListenAddr, values.ListenAddr)
	set(&cfg.DBPath, values.DBPath)
	set(&cfg.ConfigRoot, values.ConfigRoot)
	set(&cfg.SettingsRoot, values.SettingsRoot)
	set(&cfg.ScreenshotRoot, values.ShotRoot)
	set(&cfg.CloudURL, values.CloudURL)
	set(&cfg.CloudToken, values.CloudToken)
	set(&cfg.DeviceID, values.DeviceID)
	if values.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(values.LogLevel)
	}
	if values.SyncInterval != "" {
		d, err := time.ParseDuration(values.SyncInterval)
		if err != nil {
			return Config{}, fmt.Errorf("sync interval: %w", err)
		}
		if d < 0 {
			return Config{}, errors.New("sync interval must not be negative")
		}
		cfg.SyncInterval = d
	}

	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
