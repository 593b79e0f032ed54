// Package config loads calhue settings from defaults, an optional YAML file,
// CALHUE_* environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/calhue/internal/cache"
	"github.com/jmylchreest/calhue/internal/colour"
)

// Configuration keys.
const (
	KeyColours          = "colours"
	KeyQuantisationBits = "quantisation_bits"
	KeyMaxDimension     = "max_dimension"
	KeyWorkers          = "workers"
	KeyLogLevel         = "log_level"
	KeyCacheBackend     = "cache.backend"
	KeyCacheExtension   = "cache.extension"
	KeyCacheDir         = "cache.dir"
	KeyRedisAddr        = "cache.redis.addr"
	KeyRedisPassword    = "cache.redis.password"
	KeyRedisDB          = "cache.redis.db"
	KeyRedisPrefix      = "cache.redis.prefix"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CALHUE"

// Cache backends.
const (
	BackendSidecar = "sidecar"
	BackendDir     = "dir"
	BackendRedis   = "redis"
	BackendNone    = "none"
)

// DefaultMaxDimension bounds decoded images before extraction.
const DefaultMaxDimension = 512

// Backends lists the valid cache.backend values.
func Backends() []string {
	return []string{BackendSidecar, BackendDir, BackendRedis, BackendNone}
}

// FlagNames maps configuration keys to the command-line flags that set them.
var FlagNames = map[string]string{
	KeyColours:          "colours",
	KeyQuantisationBits: "bits",
	KeyMaxDimension:     "max-dimension",
	KeyWorkers:          "workers",
	KeyLogLevel:         "log-level",
	KeyCacheBackend:     "cache",
	KeyCacheDir:         "cache-dir",
}

// RedisConfig holds the Redis cache backend settings.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"-"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Backend   string      `json:"backend" yaml:"backend"`
	Extension string      `json:"extension" yaml:"extension"`
	Dir       string      `json:"dir" yaml:"dir"`
	Redis     RedisConfig `json:"redis" yaml:"redis"`
}

// Config is the resolved application configuration.
type Config struct {
	Colours          int         `json:"colours" yaml:"colours"`
	QuantisationBits int         `json:"quantisation_bits" yaml:"quantisation_bits"`
	MaxDimension     int         `json:"max_dimension" yaml:"max_dimension"`
	Workers          int         `json:"workers" yaml:"workers"`
	LogLevel         string      `json:"log_level" yaml:"log_level"`
	Cache            CacheConfig `json:"cache" yaml:"cache"`

	// File is the configuration file that was read, if any.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string

	// SearchDirs are searched for config.yaml when File is empty. Defaults
	// to the user config directory's calhue subdirectory.
	SearchDirs []string

	// Flags are bound to their configuration keys via FlagNames.
	Flags *pflag.FlagSet
}

// SetDefaults registers default values on vp.
func SetDefaults(vp *viper.Viper) {
	vp.SetDefault(KeyColours, colour.DefaultColourCount)
	vp.SetDefault(KeyQuantisationBits, colour.DefaultQuantisationBits)
	vp.SetDefault(KeyMaxDimension, DefaultMaxDimension)
	vp.SetDefault(KeyWorkers, 0)
	vp.SetDefault(KeyLogLevel, "warn")
	vp.SetDefault(KeyCacheBackend, BackendSidecar)
	vp.SetDefault(KeyCacheExtension, cache.DefaultExtension)
	vp.SetDefault(KeyCacheDir, "")
	vp.SetDefault(KeyRedisAddr, "")
	vp.SetDefault(KeyRedisPassword, "")
	vp.SetDefault(KeyRedisDB, 0)
	vp.SetDefault(KeyRedisPrefix, cache.DefaultRedisPrefix)
}

// Load resolves the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	vp := viper.New()
	SetDefaults(vp)

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if opts.Flags != nil {
		for key, name := range FlagNames {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := vp.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	file, err := readConfigFile(vp, opts)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Colours:          vp.GetInt(KeyColours),
		QuantisationBits: vp.GetInt(KeyQuantisationBits),
		MaxDimension:     vp.GetInt(KeyMaxDimension),
		Workers:          vp.GetInt(KeyWorkers),
		LogLevel:         strings.ToLower(vp.GetString(KeyLogLevel)),
		Cache: CacheConfig{
			Backend:   strings.ToLower(vp.GetString(KeyCacheBackend)),
			Extension: vp.GetString(KeyCacheExtension),
			Dir:       vp.GetString(KeyCacheDir),
			Redis: RedisConfig{
				Addr:     vp.GetString(KeyRedisAddr),
				Password: vp.GetString(KeyRedisPassword),
				DB:       vp.GetInt(KeyRedisDB),
				Prefix:   vp.GetString(KeyRedisPrefix),
			},
		},
		File: file,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(vp *viper.Viper, opts LoadOptions) (string, error) {
	if opts.File != "" {
		vp.SetConfigFile(opts.File)
		if err := vp.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", opts.File, err)
		}
		return vp.ConfigFileUsed(), nil
	}

	dirs := opts.SearchDirs
	if dirs == nil {
		if dir, err := DefaultConfigDir(); err == nil {
			dirs = []string{dir}
		}
	}
	if len(dirs) == 0 {
		return "", nil
	}

	vp.SetConfigName("config")
	vp.SetConfigType("yaml")
	for _, dir := range dirs {
		vp.AddConfigPath(dir)
	}

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return vp.ConfigFileUsed(), nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/calhue or the platform equivalent.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, "calhue"), nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if err := c.Extractor().Validate(); err != nil {
		return err
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max_dimension must not be negative, got %d", c.MaxDimension)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid log_level %q (valid: trace, debug, info, warn, error, off)", c.LogLevel)
	}
	if !slices.Contains(Backends(), c.Cache.Backend) {
		return fmt.Errorf("invalid cache.backend %q (valid: %s)", c.Cache.Backend, strings.Join(Backends(), ", "))
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Cache.Redis.DB < 0 {
		return fmt.Errorf("cache.redis.db must not be negative, got %d", c.Cache.Redis.DB)
	}
	return nil
}

// Extractor returns the colour extraction settings.
func (c *Config) Extractor() colour.Config {
	return colour.Config{
		ColourCount:      c.Colours,
		QuantisationBits: c.QuantisationBits,
	}
}

// Level returns the configured log level.
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}
