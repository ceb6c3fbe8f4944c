// Package filesystem is a provider that keeps one file per key under a root
// directory and implements TTL itself.
//
// Layout:
//
//	<Root>/<hash[0:2]>/<hash[2:4]>/<Prefix><hash>
//
// hash is the MD5 hex digest of the logical key. Each file holds
//
//	<expires-at unix seconds>\n<msgpack bin payload>
//
// Expiry is lazy: expired or corrupt files are deleted when Get, Has or Renew
// reads them. Nothing sweeps the tree in the background.
//
// Concurrency: no locking is done around read-then-write sequences. Two
// concurrent SetIfNotExists calls for the same key may both write, and Renew
// may overwrite a concurrent Set. Single writes are temp file + rename, so a
// reader never observes a partially written record on POSIX filesystems.
package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/cachelib"
	"github.com/unkn0wn-root/cachelib/internal/fsutil"
	"github.com/unkn0wn-root/cachelib/internal/record"
	"github.com/unkn0wn-root/cachelib/internal/shard"
	"github.com/unkn0wn-root/cachelib/internal/util"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

// DefaultPrefix keeps cache files distinguishable from anything else under Root.
const DefaultPrefix = "cachelib_"

type Config struct {
	Root       string        // required; must exist and be writable
	Prefix     string        // "" => DefaultPrefix
	DefaultTTL time.Duration // used when ttl <= 0; 0 => provider.DefaultTTL

	DirPerm  fs.FileMode // 0 => 0o755
	FilePerm fs.FileMode // 0 => 0o644

	Logger cachelib.Logger // nil => NopLogger
	Hooks  cachelib.Hooks  // nil => NopHooks

	// Now is the clock used for expiry. nil => time.Now.
	Now func() time.Time
}

type Store struct {
	root       string
	prefix     string
	defaultTTL time.Duration
	dirPerm    fs.FileMode
	filePerm   fs.FileMode
	log        cachelib.Logger
	hooks      cachelib.Hooks
	now        func() time.Time
}

var _ pr.Provider = (*Store)(nil)

// New validates cfg.Root and returns a Store. Errors wrap
// provider.ErrInvalidConfiguration.
func New(cfg Config) (*Store, error) {
	if err := fsutil.CheckRoot(cfg.Root); err != nil {
		return nil, pr.Invalid("filesystem", "%v", err)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, pr.Invalid("filesystem", "resolve root: %v", err)
	}
	// Flush purges the real directory, never a link to it.
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, pr.Invalid("filesystem", "resolve root: %v", err)
	}
	if err := checkPrefix(cfg.Prefix); err != nil {
		return nil, err
	}

	s := &Store{
		root:       root,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
		dirPerm:    cfg.DirPerm,
		filePerm:   cfg.FilePerm,
		log:        cfg.Logger,
		hooks:      cfg.Hooks,
		now:        cfg.Now,
	}
	if s.prefix == "" {
		s.prefix = DefaultPrefix
	}
	if s.dirPerm == 0 {
		s.dirPerm = 0o755
	}
	if s.filePerm == 0 {
		s.filePerm = 0o644
	}
	if s.log == nil {
		s.log = cachelib.NopLogger{}
	}
	if s.hooks == nil {
		s.hooks = cachelib.NopHooks{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// checkPrefix rejects prefixes that would turn the file name into a path.
func checkPrefix(prefix string) error {
	if strings.ContainsRune(prefix, '/') || strings.ContainsRune(prefix, filepath.Separator) {
		return pr.Invalid("filesystem", "prefix %q must not contain a path separator", prefix)
	}
	if prefix == "." || prefix == ".." {
		return pr.Invalid("filesystem", "prefix %q is not a valid file name", prefix)
	}
	return nil
}

// Root returns the absolute root directory with symlinks resolved.
func (s *Store) Root() string { return s.root }

// Path returns where the record for key lives, whether or not it exists.
func (s *Store) Path(key string) string {
	dir, name := s.locate(key)
	return filepath.Join(dir, name)
}

func (s *Store) locate(key string) (dir, name string) {
	h := shard.Hash(key)
	return filepath.Join(s.root, shard.Dir(h)), util.Qualify(s.prefix, h)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p := s.Path(key)
	payload, expiresAt, ok := s.load(p)
	if !ok {
		return nil, false, nil
	}
	if record.Expired(expiresAt, s.now()) {
		s.heal(p, cachelib.ReasonExpired)
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h := shard.Hash(key)
	if err := fsutil.EnsurePath(s.root, shard.Dir(h), s.dirPerm); err != nil {
		s.rejected(key, "provision shard dir", err)
		return false, nil
	}
	b, err := record.Encode(value, pr.TTL(ttl, s.defaultTTL), s.now())
	if err != nil {
		s.rejected(key, "encode record", err)
		return false, nil
	}
	dir := filepath.Join(s.root, shard.Dir(h))
	if err := s.write(dir, util.Qualify(s.prefix, h), b); err != nil {
		s.rejected(key, "write record", err)
		return false, nil
	}
	return true, nil
}

// SetIfNotExists is Has followed by Set; an expired file counts as absent and
// is overwritten. Not atomic.
func (s *Store) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	has, err := s.Has(ctx, key)
	if err != nil || has {
		return false, err
	}
	return s.Set(ctx, key, value, ttl)
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Renew rewrites the record with a fresh expiry. The stored expiry is not
// consulted, so a record that expired but was never read again is revived.
func (s *Store) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	payload, _, ok := s.load(s.Path(key))
	if !ok {
		return false, nil
	}
	return s.Set(ctx, key, payload, ttl)
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := os.Remove(s.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Flush empties Root, keeping the directory itself.
func (s *Store) Flush(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := fsutil.PurgeTree(s.root, true); err != nil {
		s.log.Error("flush failed", cachelib.Fields{"root": s.root, "err": err})
		return false, err
	}
	s.log.Debug("flushed", cachelib.Fields{"root": s.root})
	return true, nil
}

func (s *Store) Close(context.Context) error { return nil }

// load reads and decodes the record at p. Corrupt records are deleted.
// ok=false covers missing, unreadable and corrupt files alike.
func (s *Store) load(p string) (payload []byte, expiresAt int64, ok bool) {
	b, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("unreadable cache file", cachelib.Fields{"path": p, "err": err})
		}
		return nil, 0, false
	}
	payload, expiresAt, err = record.Decode(b)
	switch {
	case errors.Is(err, record.ErrMalformedHeader):
		s.heal(p, cachelib.ReasonMalformedHeader)
		return nil, 0, false
	case err != nil:
		s.heal(p, cachelib.ReasonMalformedPayload)
		return nil, 0, false
	}
	return payload, expiresAt, true
}

func (s *Store) heal(p, reason string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("self-heal remove failed", cachelib.Fields{"path": p, "reason": reason, "err": err})
		return
	}
	s.hooks.SelfHeal(p, reason)
	s.log.Debug("self-healed cache file", cachelib.Fields{"path": p, "reason": reason})
}

// rejected only logs; cachelib.Cache reports ProviderSetRejected for the
// (false, nil) result.
func (s *Store) rejected(key, stage string, err error) {
	s.log.Warn("filesystem set failed", cachelib.Fields{"key": key, "stage": stage, "err": err})
}

// write replaces dir/name with b via a temp file in the same directory.
func (s *Store) write(dir, name string, b []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(s.filePerm); err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}
