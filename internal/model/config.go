package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	// Dir is the directory holding the database file.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`

	// File, when set, receives logs with size-based rotation.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// FetchConfig controls how mail is pulled from IMAP servers.
type FetchConfig struct {
	// Folder is the IMAP mailbox to read, usually INBOX.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// Limit caps the number of messages fetched per mailbox and run.
	Limit int `mapstructure:"limit" yaml:"limit"`

	// SinceDays restricts fetches to messages newer than this many days.
	SinceDays int `mapstructure:"since_days" yaml:"since_days"`

	// IntervalSec is the poll period for `fetch --watch`.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// IMAPConfig holds defaults for mailbox URLs that omit them.
type IMAPConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// SMTPConfig holds outgoing server settings. An empty Host derives the
// server from the mailbox URL.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
}

// DatabaseFile is the fixed name of the database inside Database.Dir.
const DatabaseFile = "postale.db"

// DatabasePath returns the full path of the database file.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.Database.Dir, DatabaseFile)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/postale/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "postale", "config.yaml")
}

// DefaultDataDir returns ~/.local/share/postale, or the working directory
// when no home directory is known.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "postale")
}

var configDefaults = map[string]any{
	"database.dir":       DefaultDataDir(),
	"log.level":          "info",
	"log.development":    false,
	"log.file":           "",
	"log.max_size":       10,
	"log.max_backups":    3,
	"log.max_age":        28,
	"log.compress":       false,
	"fetch.folder":       "INBOX",
	"fetch.limit":        100,
	"fetch.since_days":   7,
	"fetch.interval_sec": 300,
	"imap.port":          "993",
	"imap.tls":           true,
	"smtp.host":          "",
	"smtp.port":          "587",
	"smtp.tls":           false,
}

// newViper returns a Viper instance with defaults and POSTALE_* environment
// overrides (e.g. POSTALE_DATABASE_DIR).
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("POSTALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (and environment overrides) apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Fetch.Folder == "" {
		cfg.Fetch.Folder = "INBOX"
	}
	if cfg.Database.Dir == "" {
		cfg.Database.Dir = DefaultDataDir()
	}

	return cfg, nil
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

	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("fetch", cfg.Fetch)
	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
