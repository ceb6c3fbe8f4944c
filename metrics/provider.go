package metrics

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/cachelib/provider"
)

// Operation names recorded by Wrap.
const (
	OpGet            = "get"
	OpSet            = "set"
	OpSetIfNotExists = "set_if_not_exists"
	OpHas            = "has"
	OpRenew          = "renew"
	OpRemove         = "remove"
	OpFlush          = "flush"
)

type instrumented struct {
	next pr.Provider
	lt   *LatencyTracker
	now  func() time.Time
}

// Wrap returns a Provider that records every call on next into lt.
func Wrap(next pr.Provider, lt *LatencyTracker) pr.Provider {
	return &instrumented{next: next, lt: lt, now: time.Now}
}

func (p *instrumented) observe(op string, start time.Time, ok bool, err error) {
	p.lt.Observe(op, p.now().Sub(start), ok, err)
}

func (p *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := p.now()
	v, ok, err := p.next.Get(ctx, key)
	p.observe(OpGet, start, ok, err)
	return v, ok, err
}

func (p *instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := p.now()
	ok, err := p.next.Set(ctx, key, value, ttl)
	p.observe(OpSet, start, ok, err)
	return ok, err
}

func (p *instrumented) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := p.now()
	ok, err := p.next.SetIfNotExists(ctx, key, value, ttl)
	p.observe(OpSetIfNotExists, start, ok, err)
	return ok, err
}

func (p *instrumented) Has(ctx context.Context, key string) (bool, error) {
	start := p.now()
	ok, err := p.next.Has(ctx, key)
	p.observe(OpHas, start, ok, err)
	return ok, err
}

func (p *instrumented) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	start := p.now()
	ok, err := p.next.Renew(ctx, key, ttl)
	p.observe(OpRenew, start, ok, err)
	return ok, err
}

func (p *instrumented) Remove(ctx context.Context, key string) (bool, error) {
	start := p.now()
	ok, err := p.next.Remove(ctx, key)
	p.observe(OpRemove, start, ok, err)
	return ok, err
}

func (p *instrumented) Flush(ctx context.Context) (bool, error) {
	start := p.now()
	ok, err := p.next.Flush(ctx)
	p.observe(OpFlush, start, ok, err)
	return ok, err
}

func (p *instrumented) Close(ctx context.Context) error { return p.next.Close(ctx) }
