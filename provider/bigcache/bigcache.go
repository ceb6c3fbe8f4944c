// Package bigcache adapts allegro/bigcache as a shared, GC-friendly in-memory
// provider.
//
// BigCache has a single LifeWindow for all entries: the ttl passed to Set and
// Renew is ignored, and Renew only restarts the entry's window by storing it
// again.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cachelib/internal/util"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

type Provider struct {
	c      *bc.BigCache
	prefix string
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration // required
	CleanWindow        time.Duration
	Shards             int // power of two; 0 = bigcache default
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Prefix             string
}

func New(cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, pr.Invalid("bigcache", "LifeWindow must be > 0")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, pr.Invalid("bigcache", "%v", err)
	}
	return &Provider{c: c, prefix: cfg.Prefix}, nil
}

func (p *Provider) key(k string) string { return util.Qualify(p.prefix, k) }

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(p.key(key))
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	if err := p.c.Set(p.key(key), value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	has, err := p.Has(ctx, key)
	if err != nil || has {
		return false, err
	}
	return p.Set(ctx, key, value, ttl)
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	b, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return p.Set(ctx, key, b, ttl)
}

func (p *Provider) Remove(_ context.Context, key string) (bool, error) {
	err := p.c.Delete(p.key(key))
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Flush(context.Context) (bool, error) {
	if err := p.c.Reset(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}

// Raw returns the underlying cache.
func (p *Provider) Raw() *bc.BigCache { return p.c }
