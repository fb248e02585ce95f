package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete swarmdeck configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	TUI     TUIConfig     `mapstructure:"tui"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig points the client at an orchestration server
type ServerConfig struct {
	// Origin is the http(s) base URL of the orchestration server
	Origin string `mapstructure:"origin"`
	// Token is an optional bearer token for authenticated servers
	Token string `mapstructure:"token"`
	// Project scopes the dashboard to one project; empty shows everything
	Project string `mapstructure:"project"`
	// HeartbeatSeconds is the ping period on the push connection (default: 30)
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
	// ReconnectSeconds is the fixed delay before each reconnect attempt (default: 3)
	ReconnectSeconds int `mapstructure:"reconnect_seconds"`
	// RequestTimeoutSeconds bounds each REST request (default: 10)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// SidebarWidth is the width of the worker sidebar in columns (default: 32, min: 20, max: 60)
	SidebarWidth int `mapstructure:"sidebar_width"`
	// MaxOutputLines limits how many output lines the panel renders (default: 1000)
	MaxOutputLines int `mapstructure:"max_output_lines"`
	// LabelFilter is a glob pattern applied to card labels; empty shows all cards
	// Examples: "backend-*", "urgent"
	LabelFilter string `mapstructure:"label_filter"`
	// Theme is the color theme for the TUI (default: "default")
	// Options: "default", "monokai", "dracula", "nord"
	Theme string `mapstructure:"theme"`
}

// StreamConfig controls worker output streaming
type StreamConfig struct {
	// ReopenSeconds is the fixed delay before reopening a broken output stream (default: 2)
	ReopenSeconds int `mapstructure:"reopen_seconds"`
	// Window caps retained lines per worker (default: 2000)
	Window int `mapstructure:"window"`
	// BacklogLimit is how many recent lines to request on panel open (default: 500)
	BacklogLimit int `mapstructure:"backlog_limit"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where log files are written; empty means the config directory
	Dir string `mapstructure:"dir"`
}

// Heartbeat returns the heartbeat period as a time.Duration
func (s *ServerConfig) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

// ReconnectDelay returns the reconnect delay as a time.Duration
func (s *ServerConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectSeconds) * time.Second
}

// RequestTimeout returns the REST request timeout as a time.Duration
func (s *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// ReopenDelay returns the stream reopen delay as a time.Duration
func (s *StreamConfig) ReopenDelay() time.Duration {
	return time.Duration(s.ReopenSeconds) * time.Second
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Origin:                "http://localhost:8420",
			HeartbeatSeconds:      30,
			ReconnectSeconds:      3,
			RequestTimeoutSeconds: 10,
		},
		TUI: TUIConfig{
			SidebarWidth:   32,
			MaxOutputLines: 1000,
			LabelFilter:    "",
			Theme:          "default",
		},
		Stream: StreamConfig{
			ReopenSeconds: 2,
			Window:        2000,
			BacklogLimit:  500,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.origin", defaults.Server.Origin)
	viper.SetDefault("server.token", defaults.Server.Token)
	viper.SetDefault("server.project", defaults.Server.Project)
	viper.SetDefault("server.heartbeat_seconds", defaults.Server.HeartbeatSeconds)
	viper.SetDefault("server.reconnect_seconds", defaults.Server.ReconnectSeconds)
	viper.SetDefault("server.request_timeout_seconds", defaults.Server.RequestTimeoutSeconds)

	// TUI defaults
	viper.SetDefault("tui.sidebar_width", defaults.TUI.SidebarWidth)
	viper.SetDefault("tui.max_output_lines", defaults.TUI.MaxOutputLines)
	viper.SetDefault("tui.label_filter", defaults.TUI.LabelFilter)
	viper.SetDefault("tui.theme", defaults.TUI.Theme)

	// Stream defaults
	viper.SetDefault("stream.reopen_seconds", defaults.Stream.ReopenSeconds)
	viper.SetDefault("stream.window", defaults.Stream.Window)
	viper.SetDefault("stream.backlog_limit", defaults.Stream.BacklogLimit)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Watch re-reads the config file on change and invokes onChange with the
// freshly loaded configuration. Invalid edits are ignored; the previous
// configuration stays in effect.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load()
		if err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarmdeck")
	}
	// Fall back to ~/.config/swarmdeck
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swarmdeck"
	}
	return filepath.Join(home, ".config", "swarmdeck")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory log files are written to
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return ConfigDir()
}
