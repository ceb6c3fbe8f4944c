package util

// Qualify prepends a provider's prefix to a logical key.
// The empty key is valid and yields the bare prefix.
func Qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}
