package config

import (
	"io/fs"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachelib"
	"github.com/unkn0wn-root/cachelib/metrics"
	pr "github.com/unkn0wn-root/cachelib/provider"
	"github.com/unkn0wn-root/cachelib/provider/bigcache"
	"github.com/unkn0wn-root/cachelib/provider/filesystem"
	"github.com/unkn0wn-root/cachelib/provider/null"
	"github.com/unkn0wn-root/cachelib/provider/redis"
	"github.com/unkn0wn-root/cachelib/provider/ristretto"
)

// Build constructs the configured provider. When metrics are enabled the
// provider is wrapped and the tracker is returned; otherwise it is nil.
// log and hooks may be nil.
func (c *Config) Build(log cachelib.Logger, hooks cachelib.Hooks) (pr.Provider, *metrics.LatencyTracker, error) {
	p, err := c.provider(log, hooks)
	if err != nil {
		return nil, nil, err
	}
	lt := c.tracker()
	if lt == nil {
		return p, nil, nil
	}
	return metrics.Wrap(p, lt), lt, nil
}

func (c *Config) provider(log cachelib.Logger, hooks cachelib.Hooks) (pr.Provider, error) {
	switch c.Backend {
	case Filesystem:
		fc := c.Filesystem
		return filesystem.New(filesystem.Config{
			Root:       fc.Root,
			Prefix:     c.Prefix,
			DefaultTTL: c.DefaultTTL,
			DirPerm:    fs.FileMode(fc.DirPerm),
			FilePerm:   fs.FileMode(fc.FilePerm),
			Logger:     log,
			Hooks:      hooks,
		})
	case Ristretto:
		rc := c.Ristretto
		return ristretto.New(ristretto.Config{
			NumCounters: rc.NumCounters,
			MaxCost:     rc.MaxCost,
			BufferItems: rc.BufferItems,
			Metrics:     rc.Metrics,
			CostBytes:   rc.CostBytes,
			Prefix:      c.Prefix,
			DefaultTTL:  c.DefaultTTL,
		})
	case BigCache:
		bc := c.BigCache
		return bigcache.New(bigcache.Config{
			LifeWindow:         bc.LifeWindow,
			CleanWindow:        bc.CleanWindow,
			Shards:             bc.Shards,
			MaxEntriesInWindow: bc.MaxEntriesInWindow,
			MaxEntrySize:       bc.MaxEntrySize,
			HardMaxCacheSizeMB: bc.HardMaxCacheSizeMB,
			Prefix:             c.Prefix,
		})
	case Redis:
		rc := c.Redis
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:       rc.Addrs,
			Username:    rc.Username,
			Password:    rc.Password,
			DB:          rc.DB,
			DialTimeout: rc.DialTimeout,
		})
		return redis.New(redis.Config{
			Client:      rdb,
			CloseClient: true,
			Prefix:      c.Prefix,
			DefaultTTL:  c.DefaultTTL,
		})
	case Null:
		return null.New(), nil
	default:
		return nil, invalid("backend", "unknown backend "+c.Backend)
	}
}
