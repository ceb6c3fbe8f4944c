// Package ristretto adapts dgraph-io/ristretto as an in-process cache provider.
//
// Ristretto has no native add or touch, so SetIfNotExists, Renew and Remove are
// read-then-write sequences and are not atomic.
package ristretto

import (
	"context"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cachelib/internal/util"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

type Provider struct {
	c          *rc.Cache
	prefix     string
	defaultTTL time.Duration
	costBytes  bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool

	// CostBytes charges len(value) per entry; otherwise every entry costs 1 and
	// MaxCost is an item count.
	CostBytes bool

	Prefix     string
	DefaultTTL time.Duration // ttl <= 0 => DefaultTTL; 0 => provider.DefaultTTL
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, pr.Invalid("ristretto", "NumCounters, MaxCost and BufferItems must be > 0")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, pr.Invalid("ristretto", "%v", err)
	}
	return &Provider{c: c, prefix: cfg.Prefix, defaultTTL: cfg.DefaultTTL, costBytes: cfg.CostBytes}, nil
}

func (p *Provider) key(k string) string { return util.Qualify(p.prefix, k) }

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	k := p.key(key)
	v, ok := p.c.Get(k)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(k)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.set(p.key(key), value, ttl), nil
}

func (p *Provider) set(k string, value []byte, ttl time.Duration) bool {
	cost := int64(1)
	if p.costBytes {
		cost = int64(len(value))
	}
	if value == nil {
		value = []byte{}
	}
	ok := p.c.SetWithTTL(k, value, cost, pr.TTL(ttl, p.defaultTTL))
	if ok {
		// make the write visible to the next Get
		p.c.Wait()
	}
	return ok
}

func (p *Provider) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok, _ := p.Get(ctx, key); ok {
		return false, nil
	}
	return p.Set(ctx, key, value, ttl)
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	b, ok, _ := p.Get(ctx, key)
	if !ok {
		return false, nil
	}
	return p.set(p.key(key), b, ttl), nil
}

func (p *Provider) Remove(_ context.Context, key string) (bool, error) {
	k := p.key(key)
	if _, ok := p.c.Get(k); !ok {
		return false, nil
	}
	p.c.Del(k)
	return true, nil
}

// Flush clears the whole ristretto instance, prefix or not.
func (p *Provider) Flush(context.Context) (bool, error) {
	p.c.Clear()
	return true, nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

// Raw returns the underlying cache.
func (p *Provider) Raw() *rc.Cache { return p.c }
