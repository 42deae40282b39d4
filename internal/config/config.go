// Package config loads anchorstack settings.
//
// Precedence, lowest first: built-in defaults, the TOML config file, ANCHORSTACK_*
// environment variables, and command-line flags bound with BindFlag.
//
// The config file is ~/.config/anchorstack/config.toml unless ANCHORSTACK_CONFIG
// or --config names another one. A missing default file is not an error; a
// missing explicit file is.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ANCHORSTACK"

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds application configuration.
type Config struct {
	Solve  SolveConfig  `mapstructure:"solve"`
	Probe  ProbeConfig  `mapstructure:"probe"`
	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// SolveConfig holds defaults for solving documents.
type SolveConfig struct {
	Gap   float64 `mapstructure:"gap"`
	Width float64 `mapstructure:"width"`
}

// ProbeConfig holds browser probe settings.
type ProbeConfig struct {
	AnchorSelector string        `mapstructure:"anchor_selector"`
	CardSelector   string        `mapstructure:"card_selector"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Headful        bool          `mapstructure:"headful"`
	ExecPath       string        `mapstructure:"exec_path"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	Settle         time.Duration `mapstructure:"settle"`
	FrameInterval  time.Duration `mapstructure:"frame_interval"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to apply.
func SetDefaults(v *viper.Viper) {
	// -- Solve --
	v.SetDefault("solve.gap", anchor.DefaultGap)
	v.SetDefault("solve.width", 640.0)

	// -- Probe --
	v.SetDefault("probe.anchor_selector", `[data-anchor-id="%s"]`)
	v.SetDefault("probe.card_selector", `[data-card-id="%s"]`)
	v.SetDefault("probe.width", 1280)
	v.SetDefault("probe.height", 800)
	v.SetDefault("probe.headful", false)
	v.SetDefault("probe.exec_path", "")
	v.SetDefault("probe.nav_timeout", "30s")
	v.SetDefault("probe.settle", "500ms")
	v.SetDefault("probe.frame_interval", "16ms")
	v.SetDefault("probe.poll_interval", "100ms")

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// -- Cache --
	v.SetDefault("cache.backend", CacheFile)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "anchorstack:")
}

// DefaultPath returns ~/.config/anchorstack/config.toml.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "anchorstack", "config.toml")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "anchorstack", "config.toml")
}

// New returns a viper instance with defaults and environment overrides
// configured. path names the config file; "" falls back to
// ANCHORSTACK_CONFIG and then DefaultPath.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultPath())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlag makes flag override key. Call it after the flags are parsed: a
// flag left at its default does not shadow the file or the environment.
func BindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil {
		return errs.New(errs.ErrCodeInternal, "no flag to bind to %s", key)
	}
	if !flag.Changed {
		return nil
	}
	return v.BindPFlag(key, flag)
}

// Load reads the config file, if any, and decodes the result.
// explicit reports whether the caller named the file; only then is a missing
// file an error.
func Load(v *viper.Viper, explicit bool) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		switch {
		case missing && !explicit:
		case missing:
			return Config{}, errs.Wrap(errs.ErrCodeFileNotFound, err, "config file %s", v.ConfigFileUsed())
		default:
			return Config{}, errs.Wrap(errs.ErrCodeInvalidFormat, err, "read config %s", v.ConfigFileUsed())
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate checks the configuration for sane values.
func (c Config) Validate() error {
	if err := errs.ValidateGap(c.Solve.Gap); err != nil {
		return fmt.Errorf("solve.gap: %w", err)
	}
	if err := errs.ValidateSelectorTemplate(c.Probe.AnchorSelector); err != nil {
		return fmt.Errorf("probe.anchor_selector: %w", err)
	}
	if err := errs.ValidateSelectorTemplate(c.Probe.CardSelector); err != nil {
		return fmt.Errorf("probe.card_selector: %w", err)
	}
	if c.Probe.Width <= 0 || c.Probe.Height <= 0 {
		return errs.New(errs.ErrCodeInvalidInput, "probe viewport must be positive, got %dx%d", c.Probe.Width, c.Probe.Height)
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	return nil
}
