package cachelib

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/cachelib/codec"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

// Cache is the high-level, provider-agnostic cache API.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns (v, true, nil) on hit. Entries whose bytes no longer decode
	// into V are removed and reported as a miss.
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	// GetOr returns def on miss or error.
	GetOr(ctx context.Context, key string, def V) V

	// ttl <= 0 selects Options.DefaultTTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	SetIfNotExists(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Has(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) (bool, error)
}

// Options tune the behavior of the typed cache.
// Only Provider and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Provider pr.Provider
	Codec    c.Codec[V]

	Logger     Logger        // if nil, NopLogger is used
	Hooks      Hooks         // if nil, NopHooks is used
	DefaultTTL time.Duration // 0 => 24h
	Disabled   bool          // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	c, err := newCache[V](opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}
