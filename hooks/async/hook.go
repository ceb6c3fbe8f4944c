// Package asynchook moves hook delivery off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:      10, // sample logs: ~every 10th self-heal
//	    ProviderErrorEvery: 1,  // log every provider error
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := filesystem.New(filesystem.Config{Root: "/var/cache/app", Hooks: hooks})
//	cache, _ := cachelib.New[User](cachelib.Options[User]{
//	    Provider: store,
//	    Codec:    codec.JSON[User]{},
//	    Hooks:    hooks, // or `raw` if you don’t want async
//	})
//
// Events are dropped, not blocked on, when the queue is full. Dropped reports
// how many were lost.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachelib"
)

type Hooks struct {
	inner   cachelib.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ cachelib.Hooks = (*Hooks)(nil)

func New(inner cachelib.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = cachelib.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events reported after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns the number of events lost to a full queue or a closed Hooks.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// send on a queue closed between the check and the send
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) ProviderError(op, k string, err error) {
	h.try(func() { h.inner.ProviderError(op, k, err) })
}
