// Package redis adapts a go-redis UniversalClient as a shared cache provider.
//
// Every failure reaching the caller is a *provider.Error classified as
// provider.ErrUnavailable (transport) or provider.ErrProtocol (server reply).
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachelib/internal/util"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

const backend = "redis"

// scanCount is the COUNT hint used when flushing a prefix.
const scanCount = 512

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	prefix      string
	defaultTTL  time.Duration
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client

	// Prefix namespaces keys. With an empty prefix Flush issues FLUSHDB.
	Prefix     string
	DefaultTTL time.Duration // ttl <= 0 => DefaultTTL; 0 => provider.DefaultTTL
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, pr.Invalid(backend, "nil client")
	}
	return &Redis{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		prefix:      cfg.Prefix,
		defaultTTL:  cfg.DefaultTTL,
	}, nil
}

func (p *Redis) key(k string) string { return util.Qualify(p.prefix, k) }

func (p *Redis) ttl(ttl time.Duration) time.Duration { return pr.TTL(ttl, p.defaultTTL) }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, classify("get", err)
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, p.key(key), value, p.ttl(ttl)).Err(); err != nil {
		return false, classify("set", err)
	}
	return true, nil
}

func (p *Redis) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, p.key(key), value, p.ttl(ttl)).Result()
	if err != nil {
		return false, classify("set_if_not_exists", err)
	}
	return ok, nil
}

func (p *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.key(key)).Result()
	if err != nil {
		return false, classify("has", err)
	}
	return n > 0, nil
}

func (p *Redis) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := p.rdb.Expire(ctx, p.key(key), p.ttl(ttl)).Result()
	if err != nil {
		return false, classify("renew", err)
	}
	return ok, nil
}

func (p *Redis) Remove(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, p.key(key)).Result()
	if err != nil {
		return false, classify("remove", err)
	}
	return n > 0, nil
}

// Flush drops the whole database when no prefix is set, otherwise only the
// keys under the prefix. On a cluster client SCAN visits a single node.
func (p *Redis) Flush(ctx context.Context) (bool, error) {
	if p.prefix == "" {
		if err := p.rdb.FlushDB(ctx).Err(); err != nil {
			return false, classify("flush", err)
		}
		return true, nil
	}

	match := escapeGlob(p.prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return false, classify("flush", err)
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return false, classify("flush", err)
			}
		}
		if next == 0 {
			return true, nil
		}
		cursor = next
	}
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// Raw returns the underlying client.
func (p *Redis) Raw() goredis.UniversalClient { return p.rdb }

// classify wraps err in a *provider.Error. Cancellation by the caller is
// returned unchanged.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &pr.Error{Backend: backend, Op: op, Kind: kindOf(err), Err: err}
}

// kindOf reports ErrProtocol for replies the server sent back (WRONGTYPE,
// OOM, READONLY...). Anything else is the client failing to reach the server:
// dial/read errors, timeouts, io.EOF, a closed client or an exhausted pool.
func kindOf(err error) error {
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return pr.ErrProtocol
	}
	return pr.ErrUnavailable
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
