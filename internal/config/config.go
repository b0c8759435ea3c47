// Package config loads specmigrate settings from .specmigrate.yaml, the
// SPECMIGRATE_* environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/speclayout/specmigrate/internal/corpus"
	"github.com/speclayout/specmigrate/internal/hierarchy"
	"github.com/speclayout/specmigrate/internal/migrate"
)

const (
	// FileName is the config file base name searched in the working
	// directory. Any extension viper understands is accepted.
	FileName = ".specmigrate"

	EnvPrefix = "SPECMIGRATE"

	DefaultLedger  = ".specmigrate/ledger.db"
	DefaultLogFile = ".specmigrate/specmigrate.log"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds validated settings.
type Config struct {
	SpecsDir       string   `mapstructure:"specs_dir"`
	MigrationLog   string   `mapstructure:"migration_log"`
	RollbackScript string   `mapstructure:"rollback_script"`
	Ledger         string   `mapstructure:"ledger"`
	Exclude        []string `mapstructure:"exclude"`
	RequireClean   bool     `mapstructure:"require_clean"`

	Backup BackupConfig `mapstructure:"backup"`
	Token  TokenConfig  `mapstructure:"token"`
	Log    LogConfig    `mapstructure:"log"`

	// Namespace is Token.Namespace parsed.
	Namespace uuid.UUID `mapstructure:"-"`
}

type BackupConfig struct {
	Prefix     string `mapstructure:"prefix"`
	TimeFormat string `mapstructure:"time_format"`
}

type TokenConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LogConfig controls the rotated run log. An empty File disables it.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("specs_dir", migrate.DefaultSpecsDir)
	v.SetDefault("backup.prefix", migrate.DefaultBackupPrefix)
	v.SetDefault("backup.time_format", migrate.DefaultBackupTimeFormat)
	v.SetDefault("migration_log", migrate.DefaultLogPath)
	v.SetDefault("rollback_script", migrate.DefaultRollbackScript)
	v.SetDefault("ledger", DefaultLedger)
	v.SetDefault("exclude", corpus.DefaultExclude)
	v.SetDefault("token.namespace", hierarchy.DefaultNamespace.String())
	v.SetDefault("require_clean", false)
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads path, or searches the working directory for FileName when
// path is empty. A missing searched file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, key, fmt.Sprintf(format, args...))
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SpecsDir) == "" {
		return invalid("specs_dir", "must not be empty")
	}
	if c.Backup.Prefix == "" {
		return invalid("backup.prefix", "must not be empty")
	}
	if strings.ContainsAny(c.Backup.Prefix, `/\`) {
		return invalid("backup.prefix", "must be a plain name, got %q", c.Backup.Prefix)
	}
	if c.Backup.TimeFormat == "" {
		return invalid("backup.time_format", "must not be empty")
	}
	// A layout without time fields formats every instant the same way.
	a := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC).Format(c.Backup.TimeFormat)
	b := time.Date(2025, 11, 28, 21, 7, 9, 0, time.UTC).Format(c.Backup.TimeFormat)
	if a == b || strings.ContainsAny(a+b, `/\`) {
		return invalid("backup.time_format", "%q is not a usable time layout", c.Backup.TimeFormat)
	}
	if c.MigrationLog == "" {
		return invalid("migration_log", "must not be empty")
	}
	if c.RollbackScript == "" {
		return invalid("rollback_script", "must not be empty")
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return invalid("exclude", "bad pattern %q", p)
		}
	}

	ns, err := uuid.Parse(c.Token.Namespace)
	if err != nil {
		return invalid("token.namespace", "%v", err)
	}
	c.Namespace = ns

	switch {
	case c.Log.MaxSizeMB < 0:
		return invalid("log.max_size_mb", "must not be negative")
	case c.Log.MaxBackups < 0:
		return invalid("log.max_backups", "must not be negative")
	case c.Log.MaxAgeDays < 0:
		return invalid("log.max_age_days", "must not be negative")
	}
	return nil
}
