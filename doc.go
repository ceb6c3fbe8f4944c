// Package cachelib is a uniform cache facade over interchangeable backing stores.
// Every backend exposes the same seven operations: Get, Set, SetIfNotExists, Has,
// Renew, Remove and Flush.
//
// Components:
//   - Provider: byte store with TTL (filesystem, Ristretto, BigCache, Redis, null).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - Cache[V]: typed facade; self-heals entries whose value no longer decodes.
//
// The filesystem provider is the only backend that implements TTL itself. It
// stores one file per key:
//
//	<root>/<hash[0:2]>/<hash[2:4]>/<prefix><hash>
//
// where hash is the MD5 hex digest of the key, and the file holds
//
//	<expires-at unix seconds>\n<msgpack bin payload>
//
// Expired or corrupt files are deleted lazily when read. There is no background
// sweep.
//
// Usage:
//
//	fs, err := filesystem.New(filesystem.Config{Root: "/var/cache/app"})
//	if err != nil { ... }
//	users, _ := cachelib.New[User](cachelib.Options[User]{
//	    Provider: fs,
//	    Codec:    codec.JSON[User]{},
//	})
//	_, _ = users.Set(ctx, "u:1", u, time.Hour)
//	u, ok, _ := users.Get(ctx, "u:1")
package cachelib
