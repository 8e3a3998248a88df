// Package zap adapts a *zap.Logger to regioncache.Logger.
package zap

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/regioncache"
)

var _ regioncache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "regioncache".
func New(l *zap.Logger) Logger { return Logger{L: l.Named("regioncache")} }

func (z Logger) Debug(msg string, f regioncache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f regioncache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f regioncache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f regioncache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so output is stable; errors become zap.NamedError.
func fields(f regioncache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
