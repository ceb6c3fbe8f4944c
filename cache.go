package cachelib

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/cachelib/codec"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

type cache[V any] struct {
	provider   pr.Provider
	codec      c.Codec[V]
	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("cachelib: %w: provider is required", pr.ErrInvalidConfiguration)
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("cachelib: %w: codec is required", pr.ErrInvalidConfiguration)
	}

	c := &cache[V]{
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, pr.DefaultTTL)

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		return zero, false, c.fail("get", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		// self-heal: bytes from an older V shape or a foreign writer
		if _, delErr := c.provider.Remove(ctx, key); delErr != nil {
			c.log.Warn("self-heal remove failed", Fields{"key": key, "err": delErr})
		}
		c.hooks.SelfHeal(key, ReasonValueDecode)
		c.log.Debug("dropped undecodable value", Fields{"key": key, "codec": c.codec.Name(), "err": err})
		return zero, false, nil
	}
	return v, true, nil
}

func (c *cache[V]) GetOr(ctx context.Context, key string, def V) V {
	v, ok, _ := c.Get(ctx, key)
	if !ok {
		return def
	}
	return v
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	raw, err := c.codec.Encode(value)
	if err != nil {
		return false, &OpError{Op: "set", Key: key, Err: err}
	}
	ok, err := c.provider.Set(ctx, key, raw, c.ttl(ttl))
	if err != nil {
		return false, c.fail("set", key, err)
	}
	if !ok {
		c.hooks.ProviderSetRejected(key)
		c.log.Debug("Set rejected by provider", Fields{"key": key})
	}
	return ok, nil
}

// SetIfNotExists delegates the existence check to the provider so engines with
// a native add (Redis SETNX) keep it atomic. The filesystem provider does not.
func (c *cache[V]) SetIfNotExists(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	raw, err := c.codec.Encode(value)
	if err != nil {
		return false, &OpError{Op: "set_if_not_exists", Key: key, Err: err}
	}
	ok, err := c.provider.SetIfNotExists(ctx, key, raw, c.ttl(ttl))
	if err != nil {
		return false, c.fail("set_if_not_exists", key, err)
	}
	return ok, nil
}

// Has performs a full Get, so an undecodable value counts as absent and is removed.
func (c *cache[V]) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *cache[V]) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	ok, err := c.provider.Renew(ctx, key, c.ttl(ttl))
	if err != nil {
		return false, c.fail("renew", key, err)
	}
	return ok, nil
}

func (c *cache[V]) Remove(ctx context.Context, key string) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	ok, err := c.provider.Remove(ctx, key)
	if err != nil {
		return false, c.fail("remove", key, err)
	}
	return ok, nil
}

func (c *cache[V]) Flush(ctx context.Context) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	ok, err := c.provider.Flush(ctx)
	if err != nil {
		return false, c.fail("flush", "", err)
	}
	c.log.Info("cache flushed", Fields{"ok": ok})
	return ok, nil
}

func (c *cache[V]) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

func (c *cache[V]) fail(op, key string, err error) error {
	c.hooks.ProviderError(op, key, err)
	c.log.Warn("provider error", Fields{"op": op, "key": key, "err": err})
	return &OpError{Op: op, Key: key, Err: err}
}
