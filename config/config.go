// Package config loads a cache backend selection from a file (TOML, YAML or
// JSON, by extension) and builds the matching provider.
//
//	backend     = "filesystem"
//	prefix      = "app_"
//	default_ttl = "1h"
//
//	[filesystem]
//	root = "/var/cache/app"
//
//	[metrics]
//	enabled = true
//
// Every key can be overridden from the environment as CACHELIB_<SECTION>_<KEY>,
// e.g. CACHELIB_FILESYSTEM_ROOT.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/cachelib"
	cachelogrus "github.com/unkn0wn-root/cachelib/log/logrus"
	"github.com/unkn0wn-root/cachelib/metrics"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

// Backend names.
const (
	Filesystem = "filesystem"
	Ristretto  = "ristretto"
	BigCache   = "bigcache"
	Redis      = "redis"
	Null       = "null"
)

type Config struct {
	Backend    string        `mapstructure:"backend"`
	Prefix     string        `mapstructure:"prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Ristretto  RistrettoConfig  `mapstructure:"ristretto"`
	BigCache   BigCacheConfig   `mapstructure:"bigcache"`
	Redis      RedisConfig      `mapstructure:"redis"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type FilesystemConfig struct {
	Root     string `mapstructure:"root"`
	DirPerm  uint32 `mapstructure:"dir_perm"`
	FilePerm uint32 `mapstructure:"file_perm"`
}

type RistrettoConfig struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items"`
	CostBytes   bool  `mapstructure:"cost_bytes"`
	Metrics     bool  `mapstructure:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `mapstructure:"life_window"`
	CleanWindow        time.Duration `mapstructure:"clean_window"`
	Shards             int           `mapstructure:"shards"`
	MaxEntriesInWindow int           `mapstructure:"max_entries_in_window"`
	MaxEntrySize       int           `mapstructure:"max_entry_size"`
	HardMaxCacheSizeMB int           `mapstructure:"hard_max_cache_size_mb"`
}

type RedisConfig struct {
	Addrs       []string      `mapstructure:"addrs"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LogConfig enables a rotating JSON log file. An empty Path disables logging.
type LogConfig struct {
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	RelativeAccuracy float64 `mapstructure:"relative_accuracy"`
}

// Load reads path and returns a validated Config.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: %w: empty path", pr.ErrInvalidConfiguration)
	}
	v := New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromViper(v)
}

// New returns a viper instance carrying the defaults and environment binding
// used by Load. Callers that assemble configuration themselves pass it to
// FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CACHELIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", Filesystem)
	v.SetDefault("prefix", "")
	v.SetDefault("default_ttl", "24h")

	v.SetDefault("filesystem.root", "")
	v.SetDefault("filesystem.dir_perm", 0o755)
	v.SetDefault("filesystem.file_perm", 0o644)

	v.SetDefault("ristretto.num_counters", 1_000_000)
	v.SetDefault("ristretto.max_cost", 100_000)
	v.SetDefault("ristretto.buffer_items", 64)
	v.SetDefault("ristretto.cost_bytes", false)
	v.SetDefault("ristretto.metrics", false)

	v.SetDefault("bigcache.life_window", "10m")
	v.SetDefault("bigcache.clean_window", "1m")
	v.SetDefault("bigcache.shards", 1024)
	v.SetDefault("bigcache.max_entries_in_window", 600_000)
	v.SetDefault("bigcache.max_entry_size", 500)
	v.SetDefault("bigcache.hard_max_cache_size_mb", 0)

	v.SetDefault("redis.addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.relative_accuracy", 0.01)
}

// Validate reports the first unusable setting. Errors wrap
// provider.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.DefaultTTL < 0 {
		return invalid("default_ttl", "must not be negative")
	}
	switch c.Backend {
	case Filesystem:
		if c.Filesystem.Root == "" {
			return invalid("filesystem.root", "required")
		}
	case Ristretto:
		r := c.Ristretto
		if r.NumCounters <= 0 || r.MaxCost <= 0 || r.BufferItems <= 0 {
			return invalid("ristretto", "num_counters, max_cost and buffer_items must be > 0")
		}
	case BigCache:
		if c.BigCache.LifeWindow <= 0 {
			return invalid("bigcache.life_window", "must be > 0")
		}
	case Redis:
		if len(c.Redis.Addrs) == 0 {
			return invalid("redis.addrs", "at least one address required")
		}
	case Null:
	default:
		return invalid("backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.Metrics.Enabled && (c.Metrics.RelativeAccuracy <= 0 || c.Metrics.RelativeAccuracy >= 1) {
		return invalid("metrics.relative_accuracy", "must be in (0, 1)")
	}
	return nil
}

// Logger returns the configured logger and a closer for its file. Without
// log.path it returns a NopLogger and a no-op closer.
func (c *Config) Logger() (cachelib.Logger, io.Closer, error) {
	if c.Log.Path == "" {
		return cachelib.NopLogger{}, nopCloser{}, nil
	}
	l, closer, err := cachelogrus.NewRotating(cachelogrus.RotateConfig{
		Path:       c.Log.Path,
		Level:      c.Log.Level,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("config: log: %w", err)
	}
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func invalid(field, msg string) error {
	return fmt.Errorf("config: %w: %s: %s", pr.ErrInvalidConfiguration, field, msg)
}

// tracker returns a LatencyTracker when metrics are enabled.
func (c *Config) tracker() *metrics.LatencyTracker {
	if !c.Metrics.Enabled {
		return nil
	}
	return metrics.NewLatencyTracker(c.Metrics.RelativeAccuracy)
}
