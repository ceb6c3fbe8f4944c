package cachelib

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Caches and providers call them on hot paths.
//
// storageKey is the logical key when the Cache facade reports an event and the
// record's file path when provider/filesystem reports SelfHeal.
type Hooks interface {
	// An entry was deleted on read. Reported by the Cache facade
	// (value_decode) and by provider/filesystem (the other reasons).
	// reason ∈ {"malformed_header", "malformed_payload", "expired", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (full disk, eviction pressure, bad shard dir).
	// Reported by the Cache facade.
	ProviderSetRejected(storageKey string)

	// Provider returned an error for op.
	ProviderError(op, storageKey string, err error)
}

// Self-heal reasons.
const (
	ReasonMalformedHeader  = "malformed_header"
	ReasonMalformedPayload = "malformed_payload"
	ReasonExpired          = "expired"
	ReasonValueDecode      = "value_decode"
)

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) ProviderError(string, string, error) {}
