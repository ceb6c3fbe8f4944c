// Package shard maps logical cache keys to fixed-length content hashes and to the
// two-level directory fan-out used by the filesystem provider.
package shard

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

// Size is the length of every hash returned by Hash.
const Size = md5.Size * 2

// Hash returns the lowercase hex MD5 digest of key. The empty key is valid.
func Hash(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Of splits hash into its first and second two-character segments.
// hash must be at least 4 characters long (every Hash result is).
func Of(hash string) (a, b string) {
	return hash[0:2], hash[2:4]
}

// Dir returns the OS-specific relative directory for hash, e.g. "ab/cd".
func Dir(hash string) string {
	a, b := Of(hash)
	return filepath.Join(a, b)
}
