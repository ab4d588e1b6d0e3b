// Package config provides configuration management for modshare. It handles
// loading, validating and saving application settings, the relay connection,
// and transfer policy from a YAML file with sensible defaults.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glorpus-work/modshare/pkg/errors"
	"github.com/glorpus-work/modshare/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultHTTPTimeout = 5 * time.Minute
	DefaultLogLevel    = "info"

	// DefaultMaxUploadSize caps package uploads at 1 GiB. Policy, not an
	// invariant; the relay may enforce its own limit on top.
	DefaultMaxUploadSize = int64(1) << 30

	// Default disambiguation weights for the redownload resolver.
	DefaultNameWeight           = 2
	DefaultAuthorWeight         = 2
	DefaultVersionWeight        = 1
	DefaultLookupFailurePenalty = 1
)

// Config represents the application configuration.
type Config struct {
	Relay    RelayConfig    `yaml:"relay"`
	Settings Settings       `yaml:"settings"`
	Transfer TransferConfig `yaml:"transfer"`
	Resolver ResolverConfig `yaml:"resolver"`
}

// RelayConfig identifies the relay server and the local account.
type RelayConfig struct {
	URL       string `yaml:"url"`
	AccountID string `yaml:"account_id"`
}

// Settings represents general application settings.
type Settings struct {
	CacheDir     string        `yaml:"cache_dir,omitempty"`
	HookDir      string        `yaml:"hook_dir,omitempty"`
	InstallDir   string        `yaml:"install_dir,omitempty"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	LogLevel     string        `yaml:"log_level"`
	OutputFormat string        `yaml:"output_format,omitempty"`
}

// TransferConfig is the transfer policy.
type TransferConfig struct {
	// MaxUploadSize is the largest package the coordinator will submit, in
	// bytes. Oversized packages are skipped, not failed.
	MaxUploadSize int64 `yaml:"max_upload_size"`

	// ProgressInterval is the minimum time between progress callbacks.
	ProgressInterval time.Duration `yaml:"progress_interval,omitempty"`
}

// ResolverConfig carries the folder-name disambiguation score weights.
type ResolverConfig struct {
	NameWeight           int `yaml:"name_weight"`
	AuthorWeight         int `yaml:"author_weight"`
	VersionWeight        int `yaml:"version_weight"`
	LookupFailurePenalty int `yaml:"lookup_failure_penalty"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			HTTPTimeout: DefaultHTTPTimeout,
			LogLevel:    DefaultLogLevel,
		},
		Transfer: TransferConfig{
			MaxUploadSize:    DefaultMaxUploadSize,
			ProgressInterval: 250 * time.Millisecond,
		},
		Resolver: ResolverConfig{
			NameWeight:           DefaultNameWeight,
			AuthorWeight:         DefaultAuthorWeight,
			VersionWeight:        DefaultVersionWeight,
			LookupFailurePenalty: DefaultLookupFailurePenalty,
		},
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig loads the configuration from path. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigParse, "%s: %v", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a sparse config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Settings.HTTPTimeout <= 0 {
		c.Settings.HTTPTimeout = def.Settings.HTTPTimeout
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = def.Settings.LogLevel
	}
	if c.Transfer.MaxUploadSize <= 0 {
		c.Transfer.MaxUploadSize = def.Transfer.MaxUploadSize
	}
	if c.Transfer.ProgressInterval <= 0 {
		c.Transfer.ProgressInterval = def.Transfer.ProgressInterval
	}
	if c.Resolver == (ResolverConfig{}) {
		c.Resolver = def.Resolver
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Relay.URL != "" {
		u, err := url.Parse(c.Relay.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.Wrapf(errors.ErrConfigValidation, "relay url %q is not a valid http(s) URL", c.Relay.URL)
		}
	}
	if c.Transfer.MaxUploadSize <= 0 {
		return errors.Wrap(errors.ErrConfigValidation, "max_upload_size must be positive")
	}
	if c.Resolver.NameWeight < 0 || c.Resolver.AuthorWeight < 0 || c.Resolver.VersionWeight < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "resolver weights must not be negative")
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, fsutil.FileModeSecure); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}
	return nil
}

// ToMap returns the configuration as a flat key/value map for display.
func (c *Config) ToMap() map[string]string {
	return map[string]string{
		"relay.url":                    c.Relay.URL,
		"relay.account_id":             c.Relay.AccountID,
		"settings.cache_dir":           c.Settings.CacheDir,
		"settings.hook_dir":            c.Settings.HookDir,
		"settings.install_dir":         c.Settings.InstallDir,
		"settings.http_timeout":        c.Settings.HTTPTimeout.String(),
		"settings.log_level":           c.Settings.LogLevel,
		"settings.output_format":       c.Settings.OutputFormat,
		"transfer.max_upload_size":     strconv.FormatInt(c.Transfer.MaxUploadSize, 10),
		"transfer.progress_interval":   c.Transfer.ProgressInterval.String(),
		"resolver.name_weight":         strconv.Itoa(c.Resolver.NameWeight),
		"resolver.author_weight":       strconv.Itoa(c.Resolver.AuthorWeight),
		"resolver.version_weight":      strconv.Itoa(c.Resolver.VersionWeight),
		"resolver.lookup_fail_penalty": strconv.Itoa(c.Resolver.LookupFailurePenalty),
	}
}

// GetValue returns the value for a flat configuration key.
func (c *Config) GetValue(key string) (string, error) {
	value, ok := c.ToMap()[key]
	if !ok {
		return "", errors.Wrapf(errors.ErrConfigValidation, "unknown config key %q", key)
	}
	return value, nil
}

// SetValue sets a flat configuration key from its string representation.
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "relay.url":
		c.Relay.URL = value
	case "relay.account_id":
		c.Relay.AccountID = value
	case "settings.cache_dir":
		c.Settings.CacheDir = value
	case "settings.hook_dir":
		c.Settings.HookDir = value
	case "settings.install_dir":
		c.Settings.InstallDir = value
	case "settings.log_level":
		c.Settings.LogLevel = value
	case "settings.output_format":
		c.Settings.OutputFormat = value
	case "settings.http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid duration %q", value)
		}
		c.Settings.HTTPTimeout = d
	case "transfer.progress_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid duration %q", value)
		}
		c.Transfer.ProgressInterval = d
	case "transfer.max_upload_size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid size %q", value)
		}
		c.Transfer.MaxUploadSize = n
	case "resolver.name_weight", "resolver.author_weight", "resolver.version_weight", "resolver.lookup_fail_penalty":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "invalid integer %q", value)
		}
		switch key {
		case "resolver.name_weight":
			c.Resolver.NameWeight = n
		case "resolver.author_weight":
			c.Resolver.AuthorWeight = n
		case "resolver.version_weight":
			c.Resolver.VersionWeight = n
		default:
			c.Resolver.LookupFailurePenalty = n
		}
	default:
		return errors.Wrapf(errors.ErrConfigValidation, "unknown config key %q", key)
	}
	return c.Validate()
}

// GetCacheDir resolves the package cache directory, falling back to the
// platform default.
func (c *Config) GetCacheDir() (string, error) {
	if c.Settings.CacheDir != "" {
		return c.Settings.CacheDir, nil
	}
	base, err := fsutil.GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "packages"), nil
}

// GetInstallDir resolves the mod install root, falling back to a "mods"
// directory next to the cache.
func (c *Config) GetInstallDir() (string, error) {
	if c.Settings.InstallDir != "" {
		return c.Settings.InstallDir, nil
	}
	base, err := fsutil.GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "mods"), nil
}

// GetHookDir resolves the hook script directory, falling back to the config
// directory.
func (c *Config) GetHookDir() (string, error) {
	if c.Settings.HookDir != "" {
		return c.Settings.HookDir, nil
	}
	base, err := fsutil.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "hooks"), nil
}
