// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Window configuration for the render surface
	Window WindowConfig `mapstructure:"window"`

	// Input configuration for the seat backend
	Input InputConfig `mapstructure:"input"`

	// Render configuration for the EGL context
	Render RenderConfig `mapstructure:"render"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// WindowConfig contains render window settings
type WindowConfig struct {
	Width        int    `mapstructure:"width"`  // Initial width before the compositor configures us
	Height       int    `mapstructure:"height"` // Initial height before the compositor configures us
	Title        string `mapstructure:"title"`
	AppID        string `mapstructure:"app_id"`
	EscapeCloses bool   `mapstructure:"escape_closes"`
}

// InputConfig contains input backend settings
type InputConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	PollIntervalMs int     `mapstructure:"poll_interval_ms"`
	ScaleX         float64 `mapstructure:"scale_x"` // Cursor input scale, horizontal
	ScaleY         float64 `mapstructure:"scale_y"` // Cursor input scale, vertical
}

// RenderConfig contains graphics context settings
type RenderConfig struct {
	GL                    bool `mapstructure:"gl"`
	PreferPlatformDisplay bool `mapstructure:"prefer_platform_display"`
	RefreshRate           int  `mapstructure:"refresh_rate"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Window: WindowConfig{
			Width:        640,
			Height:       480,
			Title:        "Dolphin Emulator",
			AppID:        "org.DolphinEmu.dolphin-emu",
			EscapeCloses: false,
		},
		Input: InputConfig{
			Enabled:        true,
			PollIntervalMs: 8,
			ScaleX:         1.0,
			ScaleY:         1.0,
		},
		Render: RenderConfig{
			GL:                    false,
			PreferPlatformDisplay: true,
			RefreshRate:           60,
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg   *Config
	cfgMu sync.RWMutex

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	// Set config name and type
	viper.SetConfigName("emuwl")
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		// Add config paths in order of precedence
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "emuwl"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "emuwl"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("window.width", DefaultConfig.Window.Width)
	viper.SetDefault("window.height", DefaultConfig.Window.Height)
	viper.SetDefault("window.title", DefaultConfig.Window.Title)
	viper.SetDefault("window.app_id", DefaultConfig.Window.AppID)
	viper.SetDefault("window.escape_closes", DefaultConfig.Window.EscapeCloses)

	viper.SetDefault("input.enabled", DefaultConfig.Input.Enabled)
	viper.SetDefault("input.poll_interval_ms", DefaultConfig.Input.PollIntervalMs)
	viper.SetDefault("input.scale_x", DefaultConfig.Input.ScaleX)
	viper.SetDefault("input.scale_y", DefaultConfig.Input.ScaleY)

	viper.SetDefault("render.gl", DefaultConfig.Render.GL)
	viper.SetDefault("render.prefer_platform_display", DefaultConfig.Render.PreferPlatformDisplay)
	viper.SetDefault("render.refresh_rate", DefaultConfig.Render.RefreshRate)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	viper.SetEnvPrefix("EMUWL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	return load()
}

func load() error {
	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	Set(c)
	return nil
}

// Validate rejects values the platform layer cannot work with.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Input.PollIntervalMs <= 0 {
		return fmt.Errorf("invalid input poll interval %dms", c.Input.PollIntervalMs)
	}
	if c.Render.RefreshRate <= 0 {
		return fmt.Errorf("invalid refresh rate %d", c.Render.RefreshRate)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

// Watch reloads the configuration whenever the file changes and hands the
// new value to fn. Reloads that fail validation are dropped. It reports
// false when no config file was loaded and there is nothing to watch.
func Watch(fn func(*Config)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := load(); err != nil {
			return
		}
		fn(Get())
	})
	viper.WatchConfig()
	return true
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	// If override is set, use that
	if configPathOverride != "" {
		return configPathOverride
	}

	// Check if config file is already loaded
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "emuwl", "emuwl.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "emuwl.toml"
	}

	return filepath.Join(home, ".config", "emuwl", "emuwl.toml")
}
