// Package zerolog adapts a zerolog.Logger to regioncache.Logger.
package zerolog

import (
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/regioncache"
)

var _ regioncache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func New(l zerolog.Logger) Logger {
	return Logger{L: l.With().Str("component", "regioncache").Logger()}
}

func (z Logger) Debug(msg string, f regioncache.Fields) { z.emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f regioncache.Fields)  { z.emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f regioncache.Fields)  { z.emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f regioncache.Fields) { z.emit(z.L.Error(), msg, f) }

func (z Logger) emit(e *zerolog.Event, msg string, f regioncache.Fields) {
	if e == nil {
		return // level disabled
	}
	for _, k := range slices.Sorted(maps.Keys(f)) {
		switch v := f[k].(type) {
		case error:
			e = e.AnErr(k, v)
		default:
			e = e.Interface(k, v)
		}
	}
	e.Msg(msg)
}
