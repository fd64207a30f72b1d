package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents application configuration
type Config struct {
	Definition DefinitionConfig `mapstructure:"definition"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
	Log        LogConfig        `mapstructure:"log"`
	Bot        BotConfig        `mapstructure:"bot"`
}

// DefinitionConfig represents where the term definition document comes from
type DefinitionConfig struct {
	URL          string `mapstructure:"url"`
	FallbackFile string `mapstructure:"fallback_file"`
	SnapshotFile string `mapstructure:"snapshot_file"` // Last good document fetched from URL
	Timeout      string `mapstructure:"timeout"`
}

// StoreConfig represents the schedule database configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DaemonConfig represents daemon mode configuration
type DaemonConfig struct {
	DailyTime  string `mapstructure:"daily_time"` // Time of the daily announcement (HH:MM)
	Timezone   string `mapstructure:"timezone"`
	SystemTray bool   `mapstructure:"system_tray"` // Show system tray icon (Windows only)
}

// LogConfig represents logging configuration
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// BotConfig represents chat reply configuration
type BotConfig struct {
	Prefix string `mapstructure:"prefix"` // Prepended to daily announcements
}

var envKeys = []string{
	"definition.url",
	"definition.fallback_file",
	"definition.snapshot_file",
	"definition.timeout",
	"store.path",
	"server.addr",
	"server.allowed_origins",
	"daemon.daily_time",
	"daemon.timezone",
	"daemon.system_tray",
	"log.file",
	"log.level",
	"bot.prefix",
}

// Load loads configuration from file. A .env file in the working directory
// is loaded first so its variables can override file values.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cycle-day-bot")
		v.AddConfigPath("/etc/cycle-day-bot")
	}

	v.SetDefault("store.path", "./data/cycle-day-bot.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")

	// Read environment variables, e.g. CYCLEDAY_DEFINITION_URL
	v.SetEnvPrefix("CYCLEDAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows, so keys absent
	// from the file must be bound for Unmarshal to see them
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Read config file. Without an explicit path a missing file is fine.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ExpandEnvVars()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Definition.URL == "" && c.Definition.FallbackFile == "" {
		return fmt.Errorf("definition.url or definition.fallback_file is required")
	}
	if c.Definition.Timeout != "" {
		if _, err := time.ParseDuration(c.Definition.Timeout); err != nil {
			return fmt.Errorf("definition.timeout is not a duration: %w", err)
		}
	}

	if c.Daemon.DailyTime != "" {
		if _, _, err := parseClock(c.Daemon.DailyTime); err != nil {
			return fmt.Errorf("daemon.daily_time: %w", err)
		}
	}
	if c.Daemon.Timezone != "" {
		if _, err := time.LoadLocation(c.Daemon.Timezone); err != nil {
			return fmt.Errorf("daemon.timezone: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got '%s'", c.Log.Level)
	}

	return nil
}

// GetTimeout returns the definition fetch timeout
func (c *DefinitionConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 10 * time.Second
	}
	duration, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return duration
}

// GetDailyTime returns the configured daily announcement time.
// Returns hour and minute (0-23, 0-59). Default: 07:00
func (c *DaemonConfig) GetDailyTime() (hour, minute int) {
	if c.DailyTime == "" {
		return 7, 0
	}
	h, m, err := parseClock(c.DailyTime)
	if err != nil {
		return 7, 0
	}
	return h, m
}

// GetLocation returns the daemon timezone, falling back to local time
func (c *DaemonConfig) GetLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.Definition.URL = os.ExpandEnv(c.Definition.URL)
	c.Definition.FallbackFile = os.ExpandEnv(c.Definition.FallbackFile)
	c.Definition.SnapshotFile = os.ExpandEnv(c.Definition.SnapshotFile)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got '%s'", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time '%s' out of range", s)
	}
	return hour, minute, nil
}
