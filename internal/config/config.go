package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"gitdash/internal/log"
)

// EnvPrefix prefixes environment overrides, e.g. GITDASH_GIT_STATUS_TIMEOUT
const EnvPrefix = "GITDASH"

// Config represents the application configuration
type Config struct {
	Version int        `mapstructure:"version" toml:"version"`
	BaseDir string     `mapstructure:"base_dir" toml:"base_dir"` // empty means the current directory
	Git     GitConfig  `mapstructure:"git" toml:"git"`
	Scan    ScanConfig `mapstructure:"scan" toml:"scan"`
	Log     LogConfig  `mapstructure:"log" toml:"log"`
}

// GitConfig controls how git is invoked
type GitConfig struct {
	Binary        string   `mapstructure:"binary" toml:"binary"`
	StatusTimeout Duration `mapstructure:"status_timeout" toml:"status_timeout"`
	ActionTimeout Duration `mapstructure:"action_timeout" toml:"action_timeout"`
}

// ScanConfig controls discovery and status aggregation
type ScanConfig struct {
	Workers         int      `mapstructure:"workers" toml:"workers"` // 0 means one per CPU, capped at 16
	ProgressEvery   int      `mapstructure:"progress_every" toml:"progress_every"`
	DiscoveryWeight float64  `mapstructure:"discovery_weight" toml:"discovery_weight"`
	SkipDirs        []string `mapstructure:"skip_dirs" toml:"skip_dirs"`
}

// LogConfig controls the debug log
type LogConfig struct {
	File   string `mapstructure:"file" toml:"file"` // empty disables file logging
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Duration is a time.Duration written as "5s" in config files
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Version: 1,
		Git: GitConfig{
			Binary:        "git",
			StatusTimeout: Duration(5 * time.Second),
			ActionTimeout: Duration(30 * time.Second),
		},
		Scan: ScanConfig{
			ProgressEvery:   20,
			DiscoveryWeight: 0.4,
			SkipDirs:        []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatText,
		},
	}
}

// DefaultPath returns the config file location under the user config dir,
// honoring XDG_CONFIG_HOME
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", errors.Wrap(err, "failed to locate config directory")
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "gitdash", "config.toml"), nil
}

// Load reads the configuration from path, then applies GITDASH_* environment
// overrides. An empty path means DefaultPath, which may be absent; an
// explicit path must exist
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else if defaultPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			v.SetConfigFile(defaultPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read config file %s", defaultPath)
			}
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := expandPaths(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Marshal renders cfg as TOML
func Marshal(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// ValidFormats lists the supported log formats
var ValidFormats = []string{log.FormatText, log.FormatJSON}

// ValidLevels lists the supported log levels
var ValidLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate validates the configuration and returns the first problem found
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Git.Binary) == "" {
		return errors.New("git.binary must not be empty")
	}
	if c.Git.StatusTimeout <= 0 {
		return errors.Newf("git.status_timeout must be positive, got %s", c.Git.StatusTimeout.Std())
	}
	if c.Git.ActionTimeout <= 0 {
		return errors.Newf("git.action_timeout must be positive, got %s", c.Git.ActionTimeout.Std())
	}
	if c.Scan.Workers < 0 {
		return errors.Newf("scan.workers must not be negative, got %d", c.Scan.Workers)
	}
	if c.Scan.ProgressEvery < 1 {
		return errors.Newf("scan.progress_every must be at least 1, got %d", c.Scan.ProgressEvery)
	}
	if c.Scan.DiscoveryWeight < 0 || c.Scan.DiscoveryWeight > 1 {
		return errors.Newf("scan.discovery_weight must be within [0,1], got %g", c.Scan.DiscoveryWeight)
	}
	if !slices.Contains(ValidLevels, strings.ToLower(c.Log.Level)) {
		return errors.Newf("invalid log.level %q: must be one of: %s", c.Log.Level, strings.Join(ValidLevels, ", "))
	}
	if !slices.Contains(ValidFormats, strings.ToLower(c.Log.Format)) {
		return errors.Newf("invalid log.format %q: must be one of: %s", c.Log.Format, strings.Join(ValidFormats, ", "))
	}
	return nil
}

// setDefaults mirrors Default into v so every key is known to the env binding
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("version", d.Version)
	v.SetDefault("base_dir", d.BaseDir)

	v.SetDefault("git.binary", d.Git.Binary)
	v.SetDefault("git.status_timeout", d.Git.StatusTimeout.Std().String())
	v.SetDefault("git.action_timeout", d.Git.ActionTimeout.Std().String())

	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.progress_every", d.Scan.ProgressEvery)
	v.SetDefault("scan.discovery_weight", d.Scan.DiscoveryWeight)
	v.SetDefault("scan.skip_dirs", d.Scan.SkipDirs)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// expandPaths expands a leading ~ in path settings
func expandPaths(cfg *Config) error {
	var err error

	cfg.BaseDir, err = expandPath(cfg.BaseDir)
	if err != nil {
		return err
	}

	cfg.Log.File, err = expandPath(cfg.Log.File)
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	return filepath.Join(homeDir, path[1:]), nil
}
