// Package null is a provider that stores nothing. Every write is refused and
// every read misses, which turns caching off without touching call sites.
package null

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/cachelib/provider"
)

type Null struct{}

var _ pr.Provider = Null{}

func New() Null { return Null{} }

func (Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Null) Set(context.Context, string, []byte, time.Duration) (bool, error) { return false, nil }

func (Null) SetIfNotExists(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, nil
}

func (Null) Has(context.Context, string) (bool, error)                  { return false, nil }
func (Null) Renew(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (Null) Remove(context.Context, string) (bool, error)               { return false, nil }
func (Null) Flush(context.Context) (bool, error)                        { return false, nil }
func (Null) Close(context.Context) error                                { return nil }
