package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backend names accepted by APIConfig.Backend.
const (
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
	BackendIMAP   = "imap"
)

// Roles a dashboard session can run as.
const (
	RoleParent     = "parent"
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
)

// SessionConfig identifies the signed-in user and the schools they may see.
type SessionConfig struct {
	UserID string `mapstructure:"user_id" yaml:"user_id"`
	Role   string `mapstructure:"role" yaml:"role"`

	// SchoolIDs restricts the notification set. Empty means no restriction.
	SchoolIDs []string `mapstructure:"school_ids" yaml:"school_ids"`
}

// IMAPConfig holds mailbox settings for the imap backend. The password is
// kept in the system keyring.
type IMAPConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           string `mapstructure:"port" yaml:"port"`
	Username       string `mapstructure:"username" yaml:"username"`
	TLS            bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox        string `mapstructure:"mailbox" yaml:"mailbox"`
	ArchiveMailbox string `mapstructure:"archive_mailbox" yaml:"archive_mailbox"`
}

// APIConfig selects and configures the notification backend.
type APIConfig struct {
	// Backend is one of "sqlite", "rest" or "imap".
	Backend    string     `mapstructure:"backend" yaml:"backend"`
	BaseURL    string     `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int        `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	MaxRetries int        `mapstructure:"max_retries" yaml:"max_retries"`
	SQLitePath string     `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	IMAP       IMAPConfig `mapstructure:"imap" yaml:"imap"`
}

// WidgetConfig holds settings for the bounded notification dropdown.
type WidgetConfig struct {
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ServerConfig configures the mock REST server.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Widget  WidgetConfig  `mapstructure:"widget" yaml:"widget"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// configDir returns ~/.config/evaldash, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "evaldash")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/evaldash/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Session: SessionConfig{
			Role: RoleParent,
		},
		API: APIConfig{
			Backend:    BackendSQLite,
			TimeoutSec: 30,
			MaxRetries: 3,
			SQLitePath: filepath.Join(configDir(), "notifications.db"),
			IMAP: IMAPConfig{
				Port:           "993",
				TLS:            true,
				Mailbox:        "INBOX",
				ArchiveMailbox: "Archive",
			},
		},
		Widget: WidgetConfig{
			MaxItems: 5,
		},
		Display: DisplayConfig{
			Theme:           "default",
			PollIntervalSec: 120,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "evaldash.log"),
		},
		Server: ServerConfig{
			Addr: ":8088",
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so that env overrides and
// partially filled files resolve every key.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("session.role", d.Session.Role)
	v.SetDefault("api.backend", d.API.Backend)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("api.sqlite_path", d.API.SQLitePath)
	v.SetDefault("api.imap.port", d.API.IMAP.Port)
	v.SetDefault("api.imap.tls", d.API.IMAP.TLS)
	v.SetDefault("api.imap.mailbox", d.API.IMAP.Mailbox)
	v.SetDefault("api.imap.archive_mailbox", d.API.IMAP.ArchiveMailbox)
	v.SetDefault("widget.max_items", d.Widget.MaxItems)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.poll_interval_sec", d.Display.PollIntervalSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("server.addr", d.Server.Addr)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// EVALDASH_* environment variables override file values
// (e.g. EVALDASH_API_BACKEND=rest). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("evaldash")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *AppConfig) Validate() error {
	switch c.API.Backend {
	case BackendSQLite, BackendREST, BackendIMAP:
	default:
		return fmt.Errorf("api.backend: unsupported backend %q", c.API.Backend)
	}
	if c.API.Backend == BackendREST && c.API.BaseURL == "" {
		return errors.New("api.base_url is required for the rest backend")
	}
	if c.API.Backend == BackendIMAP && (c.API.IMAP.Host == "" || c.API.IMAP.Username == "") {
		return errors.New("api.imap.host and api.imap.username are required for the imap backend")
	}
	if c.Widget.MaxItems <= 0 {
		c.Widget.MaxItems = 5
	}
	if c.Display.PollIntervalSec < 0 {
		c.Display.PollIntervalSec = 0
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("session", cfg.Session)
	v.Set("api", cfg.API)
	v.Set("widget", cfg.Widget)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
