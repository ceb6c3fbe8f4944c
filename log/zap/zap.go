package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/cachelib"
)

var _ cachelib.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New wraps l. A nil l discards everything.
func New(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{L: l.Named("cachelib")}
}

func (z ZapLogger) Debug(msg string, f cachelib.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f cachelib.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f cachelib.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f cachelib.Fields) { z.L.Error(msg, zf(f)...) }

// zf converts f in key order so output is stable.
func zf(f cachelib.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
