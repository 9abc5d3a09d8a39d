// Package config loads and persists sentinel settings.
//
// Settings come from, in increasing priority: built-in defaults, the YAML
// config file, and SYNCSENTINEL_* environment variables (SYNCSENTINEL_WATCH_PATH
// for watch.path and so on).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/syncsentinel/syncsentinel/internal/sink"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SYNCSENTINEL"

// ErrUnknownKey is returned by Set for keys that are not settings.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the full set of settings.
type Config struct {
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" toml:"watch"`
	Local     LocalConfig     `mapstructure:"local" yaml:"local" toml:"local"`
	Sheets    SheetsConfig    `mapstructure:"sheets" yaml:"sheets" toml:"sheets"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy" toml:"policy"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history" toml:"history"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard" toml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" toml:"log"`
}

// WatchConfig controls the log folder watcher.
type WatchConfig struct {
	Path         string        `mapstructure:"path" yaml:"path" toml:"path"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay" toml:"settle_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

// LocalConfig controls the local file sink. A path ending in .xlsx selects
// the workbook sink; anything else is written as CSV.
type LocalConfig struct {
	Path      string `mapstructure:"path" yaml:"path" toml:"path"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet" toml:"sheet"`
	Prepend   *bool  `mapstructure:"prepend" yaml:"prepend,omitempty" toml:"prepend,omitempty"`
	Separator *bool  `mapstructure:"separator" yaml:"separator,omitempty" toml:"separator,omitempty"`
}

// SheetsConfig controls the remote spreadsheet sink.
type SheetsConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	Target      string        `mapstructure:"target" yaml:"target" toml:"target"`
	Credentials string        `mapstructure:"credentials" yaml:"credentials" toml:"credentials"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"`
	Prepend     *bool         `mapstructure:"prepend" yaml:"prepend,omitempty" toml:"prepend,omitempty"`
	Separator   *bool         `mapstructure:"separator" yaml:"separator,omitempty" toml:"separator,omitempty"`
}

// PolicyConfig is the write policy shared by sinks without overrides.
type PolicyConfig struct {
	Prepend   bool `mapstructure:"prepend" yaml:"prepend" toml:"prepend"`
	Separator bool `mapstructure:"separator" yaml:"separator" toml:"separator"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" toml:"path"`
}

// DashboardConfig controls the status feed server.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" toml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host" toml:"host"`
	Port    int    `mapstructure:"port" yaml:"port" toml:"port"`
}

// Addr returns host:port.
func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// LogConfig controls logging.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" toml:"level"`
	Format     string `mapstructure:"format" yaml:"format" toml:"format"`
	File       string `mapstructure:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "syncsentinel")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Keys lists every settable key.
func Keys() []string {
	return []string{
		"watch.path", "watch.settle_delay", "watch.poll_interval",
		"local.path", "local.sheet", "local.prepend", "local.separator",
		"sheets.enabled", "sheets.target", "sheets.credentials", "sheets.timeout",
		"sheets.prepend", "sheets.separator",
		"policy.prepend", "policy.separator",
		"history.enabled", "history.path",
		"dashboard.enabled", "dashboard.host", "dashboard.port",
		"log.level", "log.format", "log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.path", "")
	v.SetDefault("watch.settle_delay", 500*time.Millisecond)
	v.SetDefault("watch.poll_interval", time.Duration(0))
	v.SetDefault("local.path", "")
	v.SetDefault("local.sheet", "Sync Log")
	v.SetDefault("sheets.enabled", false)
	v.SetDefault("sheets.target", "")
	v.SetDefault("sheets.credentials", filepath.Join(Dir(), "credentials.json"))
	v.SetDefault("sheets.timeout", 30*time.Second)
	v.SetDefault("policy.prepend", true)
	v.SetDefault("policy.separator", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(Dir(), "history.db"))
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Loader reads the config file and environment.
type Loader struct {
	path string
	env  bool
}

// NewLoader returns a Loader for path. An empty path uses DefaultPath.
func NewLoader(path string) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	return &Loader{path: path, env: true}
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) viper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	if l.env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
		}
	}
	return v, nil
}

// Load returns the effective configuration. A missing config file yields the
// defaults.
func (l *Loader) Load() (*Config, error) {
	v, err := l.viper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// AutomaticEnv does not reach keys without defaults during Unmarshal.
	for _, key := range []string{"local.prepend", "local.separator", "sheets.prepend", "sheets.separator"} {
		if !v.IsSet(key) {
			continue
		}
		b := v.GetBool(key)
		switch key {
		case "local.prepend":
			cfg.Local.Prepend = &b
		case "local.separator":
			cfg.Local.Separator = &b
		case "sheets.prepend":
			cfg.Sheets.Prepend = &b
		case "sheets.separator":
			cfg.Sheets.Separator = &b
		}
	}
	return &cfg, nil
}

// Set stores value under key in the config file. Environment overrides are
// not written back.
func (l *Loader) Set(key, value string) (*Config, error) {
	if !slices.Contains(Keys(), key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	fileOnly := &Loader{path: l.path}
	v, err := fileOnly.viper()
	if err != nil {
		return nil, err
	}
	v.Set(key, value)

	cfg, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := Save(cfg, l.path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would fail later at startup.
func (c *Config) Validate() error {
	if c.Watch.SettleDelay < 0 {
		return fmt.Errorf("watch.settle_delay must not be negative")
	}
	if c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch.poll_interval must not be negative")
	}
	if c.Sheets.Enabled && c.Sheets.Target == "" {
		return fmt.Errorf("sheets.target is required when sheets.enabled is true")
	}
	if c.Sheets.Timeout < 0 {
		return fmt.Errorf("sheets.timeout must not be negative")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}
	return nil
}

// LocalPolicy returns the write policy for the local sink.
func (c *Config) LocalPolicy() sink.Policy {
	return c.Policy.with(c.Local.Prepend, c.Local.Separator)
}

// SheetsPolicy returns the write policy for the remote sink.
func (c *Config) SheetsPolicy() sink.Policy {
	return c.Policy.with(c.Sheets.Prepend, c.Sheets.Separator)
}

func (p PolicyConfig) with(prepend, separator *bool) sink.Policy {
	out := sink.Policy{Prepend: p.Prepend, Separator: p.Separator}
	if prepend != nil {
		out.Prepend = *prepend
	}
	if separator != nil {
		out.Separator = *separator
	}
	return out
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// YAML renders cfg as YAML.
func YAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// TOML renders cfg as TOML. Durations are written as strings such as "500ms".
func TOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tomlView(cfg)); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// tomlView converts durations to strings so the output reads like the YAML.
func tomlView(cfg *Config) map[string]any {
	section := func(pairs ...any) map[string]any {
		m := make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			key := pairs[i].(string)
			switch v := pairs[i+1].(type) {
			case time.Duration:
				m[key] = v.String()
			case *bool:
				if v != nil {
					m[key] = *v
				}
			default:
				m[key] = v
			}
		}
		return m
	}

	return map[string]any{
		"watch": section(
			"path", cfg.Watch.Path,
			"settle_delay", cfg.Watch.SettleDelay,
			"poll_interval", cfg.Watch.PollInterval,
		),
		"local": section(
			"path", cfg.Local.Path,
			"sheet", cfg.Local.Sheet,
			"prepend", cfg.Local.Prepend,
			"separator", cfg.Local.Separator,
		),
		"sheets": section(
			"enabled", cfg.Sheets.Enabled,
			"target", cfg.Sheets.Target,
			"credentials", cfg.Sheets.Credentials,
			"timeout", cfg.Sheets.Timeout,
			"prepend", cfg.Sheets.Prepend,
			"separator", cfg.Sheets.Separator,
		),
		"policy": section(
			"prepend", cfg.Policy.Prepend,
			"separator", cfg.Policy.Separator,
		),
		"history": section(
			"enabled", cfg.History.Enabled,
			"path", cfg.History.Path,
		),
		"dashboard": section(
			"enabled", cfg.Dashboard.Enabled,
			"host", cfg.Dashboard.Host,
			"port", cfg.Dashboard.Port,
		),
		"log": section(
			"level", cfg.Log.Level,
			"format", cfg.Log.Format,
			"file", cfg.Log.File,
			"max_size_mb", cfg.Log.MaxSizeMB,
			"max_backups", cfg.Log.MaxBackups,
			"max_age_days", cfg.Log.MaxAgeDays,
		),
	}
}
