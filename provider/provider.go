// Package provider defines the storage abstraction used by cachelib.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata visible to the caller, no re-encoding). Providers that frame values
// internally (e.g. the filesystem provider's expiry header) must fully strip that
// framing on Get.
//
// Keys handed to a provider are logical keys. Each provider owns its own key
// prefix and qualifies keys before touching its engine.
package provider

import (
	"context"
	"time"
)

// DefaultTTL is used by providers when Set/Renew receive ttl <= 0.
const DefaultTTL = 24 * time.Hour

// Provider is a byte store with TTLs exposing the seven cache operations.
//
// Boolean results carry the operation outcome (hit, written, removed...). A
// non-nil error is reserved for failures the caller may want to act on
// (connection loss, protocol errors); advisory failures such as a corrupt
// entry are resolved as misses.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL, replacing any existing entry.
	// Returns ok=false when the store refused or failed the write.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// SetIfNotExists stores value only if key is absent (or expired).
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Has reports whether a live entry exists for key.
	Has(ctx context.Context, key string) (bool, error)

	// Renew resets the TTL of an existing entry, keeping its value.
	Renew(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// Remove deletes key. ok reports whether an entry existed and was removed.
	Remove(ctx context.Context, key string) (ok bool, err error)

	// Flush removes every entry owned by the provider.
	Flush(ctx context.Context) (ok bool, err error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// TTL returns ttl, or def when ttl <= 0.
func TTL(ttl, def time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if def > 0 {
		return def
	}
	return DefaultTTL
}
