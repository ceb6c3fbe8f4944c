package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/cachelib"
	"github.com/unkn0wn-root/cachelib/internal/record"
	"github.com/unkn0wn-root/cachelib/internal/shard"
	pr "github.com/unkn0wn-root/cachelib/provider"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type healRecorder struct {
	cachelib.NopHooks
	reasons  []string
	keys     []string
	rejected int
}

func (h *healRecorder) SelfHeal(key, reason string) {
	h.keys = append(h.keys, key)
	h.reasons = append(h.reasons, reason)
}

func (h *healRecorder) ProviderSetRejected(string) { h.rejected++ }

func skipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
}

func newTestStore(t *testing.T) (*Store, *fakeClock, *healRecorder) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	hooks := &healRecorder{}
	s, err := New(Config{
		Root:   t.TempDir(),
		Prefix: "TEST_",
		Now:    clk.Now,
		Hooks:  hooks,
	})
	require.NoError(t, err)
	return s, clk, hooks
}

func writeRaw(t *testing.T, s *Store, key string, content []byte) string {
	t.Helper()
	p := s.Path(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, content, 0o644))
	return p
}

func requireGone(t *testing.T, p string) {
	t.Helper()
	_, err := os.Stat(p)
	require.True(t, os.IsNotExist(err), "expected %s to be removed, stat err=%v", p, err)
}

func TestNewRejectsInvalidRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, root := range []string{"", filepath.Join(t.TempDir(), "missing"), file} {
		s, err := New(Config{Root: root})
		require.ErrorIs(t, err, pr.ErrInvalidConfiguration, "root=%q", root)
		require.Nil(t, s)
	}
}

func TestNewRejectsReadOnlyRoot(t *testing.T) {
	skipIfRoot(t)
	root := t.TempDir()
	require.NoError(t, os.Chmod(root, 0o555))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	s, err := New(Config{Root: root})
	require.ErrorIs(t, err, pr.ErrInvalidConfiguration)
	require.Nil(t, s)
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	values := map[string][]byte{
		"foo":       []byte("bar"),
		"":          []byte("empty key is valid"),
		"multiline": []byte("one\ntwo\n\nthree"),
		"binary":    {0x00, 0xff, '\n', 0xc4, 0x01},
	}
	for k, v := range values {
		ok, err := s.Set(ctx, k, v, 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}
	for k, v := range values {
		got, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, ok, "key=%q", k)
		require.Equal(t, v, got)
	}
}

func TestOnDiskLayout(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	ok, err := s.Set(ctx, "foo", []byte("bar"), 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	h := shard.Hash("foo")
	want := filepath.Join(s.Root(), h[0:2], h[2:4], "TEST_"+h)
	require.Equal(t, want, s.Path("foo"))

	b, err := os.ReadFile(want)
	require.NoError(t, err)
	payload, exp, err := record.Decode(b)
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), payload)
	require.Equal(t, clk.Now().Unix()+10, exp)
	hdr := strconv.FormatInt(exp, 10) + "\n"
	require.Equal(t, hdr, string(b[:len(hdr)]))
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s, err := New(Config{Root: t.TempDir(), Now: clk.Now, DefaultTTL: time.Hour})
	require.NoError(t, err)

	h := shard.Hash("k")
	require.Equal(t, DefaultPrefix+h, filepath.Base(s.Path("k")))

	ok, err := s.Set(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	b, err := os.ReadFile(s.Path("k"))
	require.NoError(t, err)
	_, exp, err := record.Decode(b)
	require.NoError(t, err)
	require.Equal(t, clk.Now().Add(time.Hour).Unix(), exp)
}

func TestLazyExpiryRemovesFile(t *testing.T) {
	ctx := context.Background()
	s, clk, hooks := newTestStore(t)

	ok, err := s.Set(ctx, "foo", []byte("slept"), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(2 * time.Second)
	got, ok, err := s.Get(ctx, "foo")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
	requireGone(t, s.Path("foo"))
	require.Equal(t, []string{cachelib.ReasonExpired}, hooks.reasons)
}

func TestExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	_, _ = s.Set(ctx, "k", []byte("v"), time.Second)
	clk.Advance(999 * time.Millisecond)
	_, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)

	clk.Advance(time.Millisecond) // now == expiresAt
	_, ok, _ = s.Get(ctx, "k")
	require.False(t, ok)
}

func TestSetIfNotExists(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	ok, err := s.SetIfNotExists(ctx, "k", []byte("v1"), 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetIfNotExists(ctx, "k", []byte("v2"), 10*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	// an expired-but-present file counts as absent
	clk.Advance(11 * time.Second)
	ok, err = s.SetIfNotExists(ctx, "k", []byte("v3"), 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	got, _, _ = s.Get(ctx, "k")
	require.Equal(t, []byte("v3"), got)
}

func TestHas(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	has, err := s.Has(ctx, "never-set")
	require.NoError(t, err)
	require.False(t, has)

	_, _ = s.Set(ctx, "k", []byte("v"), time.Second)
	has, _ = s.Has(ctx, "k")
	require.True(t, has)

	clk.Advance(2 * time.Second)
	has, _ = s.Has(ctx, "k")
	require.False(t, has)
	requireGone(t, s.Path("k"))
}

func TestRenewExtendsTTL(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	_, _ = s.Set(ctx, "k", []byte("foobar"), 2*time.Second)
	clk.Advance(time.Second)

	ok, err := s.Renew(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// past the original ttl, before the renewed one
	clk.Advance(5 * time.Second)
	got, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("foobar"), got)

	clk.Advance(6 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	require.False(t, ok)
}

// Renew does not look at the stored expiry: a record that expired but was not
// read since is brought back with the new ttl.
func TestRenewResurrectsExpiredRecord(t *testing.T) {
	ctx := context.Background()
	s, clk, _ := newTestStore(t)

	_, _ = s.Set(ctx, "k", []byte("stale"), time.Second)
	clk.Advance(5 * time.Second)

	ok, err := s.Renew(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("stale"), got)
}

func TestRenewMissing(t *testing.T) {
	s, _, _ := newTestStore(t)
	ok, err := s.Renew(context.Background(), "missing", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	_, _ = s.Set(ctx, "foo", []byte("foobar"), 10*time.Second)

	ok, err := s.Remove(ctx, "foo")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Remove(ctx, "foo")
	require.NoError(t, err)
	require.False(t, ok)

	has, _ := s.Has(ctx, "foo")
	require.False(t, has)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	keys := []string{"a", "b", "c", "d", ""}
	for _, k := range keys {
		ok, err := s.Set(ctx, k, []byte("v-"+k), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	// foreign file directly under root goes too
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stray"), []byte("x"), 0o644))

	ok, err := s.Flush(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	for _, k := range keys {
		has, _ := s.Has(ctx, k)
		require.False(t, has, "key=%q", k)
	}
	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Empty(t, entries)

	// root survives and is writable
	ok, err = s.Set(ctx, "after", []byte("flush"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFlushThroughSymlinkedRoot(t *testing.T) {
	ctx := context.Background()
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "cache")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s, err := New(Config{Root: link})
	require.NoError(t, err)
	wantRoot, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	require.Equal(t, wantRoot, s.Root())

	ok, err := s.Set(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Flush(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, has)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	require.Empty(t, entries)

	fi, err := os.Lstat(link)
	require.NoError(t, err)
	require.NotZero(t, fi.Mode()&os.ModeSymlink, "link itself is left alone")
}

func TestNewRejectsPathLikePrefix(t *testing.T) {
	for _, prefix := range []string{"a/b", "../../", "/abs", "..", "."} {
		s, err := New(Config{Root: t.TempDir(), Prefix: prefix})
		require.ErrorIs(t, err, pr.ErrInvalidConfiguration, "prefix=%q", prefix)
		require.Nil(t, s)
	}

	s, err := New(Config{Root: t.TempDir(), Prefix: "app.v2-"})
	require.NoError(t, err)
	ok, err := s.Set(context.Background(), "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCorruptRecordsSelfHeal(t *testing.T) {
	ctx := context.Background()
	future := strconv.FormatInt(time.Unix(1_700_000_000, 0).Add(100*time.Second).Unix(), 10)

	cases := []struct {
		name    string
		content string
		reason  string
	}{
		{"no header", "abc", cachelib.ReasonMalformedHeader},
		{"zero", "0", cachelib.ReasonMalformedHeader},
		{"non numeric header", "soon\n\xc4\x01x", cachelib.ReasonMalformedHeader},
		{"garbage payload", future + "\na;x/sdr", cachelib.ReasonMalformedPayload},
		{"plain payload", future + "\nabc", cachelib.ReasonMalformedPayload},
		{"truncated payload", future + "\n\xc4\x05ab", cachelib.ReasonMalformedPayload},
		{"empty payload", future + "\n", cachelib.ReasonMalformedPayload},
	}

	ops := map[string]func(t *testing.T, s *Store, key string) bool{
		"get": func(t *testing.T, s *Store, key string) bool {
			_, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			return ok
		},
		"has": func(t *testing.T, s *Store, key string) bool {
			ok, err := s.Has(ctx, key)
			require.NoError(t, err)
			return ok
		},
		"renew": func(t *testing.T, s *Store, key string) bool {
			ok, err := s.Renew(ctx, key, 100*time.Second)
			require.NoError(t, err)
			return ok
		},
	}

	for _, tc := range cases {
		for opName, op := range ops {
			t.Run(tc.name+"/"+opName, func(t *testing.T) {
				s, _, hooks := newTestStore(t)
				p := writeRaw(t, s, "corrupt", []byte(tc.content))

				require.False(t, op(t, s, "corrupt"))
				requireGone(t, p)
				require.Equal(t, []string{tc.reason}, hooks.reasons)
				require.Equal(t, []string{p}, hooks.keys, "store reports the file path")
			})
		}
	}
}

func TestUnreadableFileIsMissAndKept(t *testing.T) {
	skipIfRoot(t)
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	_, _ = s.Set(ctx, "k", []byte("v"), time.Minute)
	p := s.Path("k")
	require.NoError(t, os.Chmod(p, 0o200))
	t.Cleanup(func() { _ = os.Chmod(p, 0o644) })

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	_, err = os.Stat(p)
	require.NoError(t, err)
}

func TestSetFailsWhenShardDirCannotBeCreated(t *testing.T) {
	skipIfRoot(t)
	ctx := context.Background()
	s, _, hooks := newTestStore(t)
	require.NoError(t, os.Chmod(s.Root(), 0o555))
	t.Cleanup(func() { _ = os.Chmod(s.Root(), 0o755) })

	ok, err := s.Set(ctx, "abc", []byte("def"), time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Renew(ctx, "abc", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// the Cache facade reports the rejection, not the store
	require.Zero(t, hooks.rejected)
}

func TestCanceledContext(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Set(ctx, "k", []byte("v"), time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Flush(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	for i := 0; i < 5; i++ {
		ok, err := s.Set(ctx, "k", []byte(strconv.Itoa(i)), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path("k")))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, _, _ := s.Get(ctx, "k")
	require.Equal(t, []byte("4"), got)
}
