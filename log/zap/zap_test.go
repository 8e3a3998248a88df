package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/regioncache"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", regioncache.Fields{"region": "users", "key": "k"})
	l.Warn("w", regioncache.Fields{"err": errors.New("boom")})
	l.Error("e", nil)

	all := logs.All()
	if len(all) != 3 {
		t.Fatalf("got %d entries", len(all))
	}
	if all[0].Level != zapcore.DebugLevel || all[0].LoggerName != "regioncache" {
		t.Fatalf("entry 0 = %+v", all[0].Entry)
	}
	ctx := all[0].ContextMap()
	if ctx["region"] != "users" || ctx["key"] != "k" {
		t.Fatalf("fields = %v", ctx)
	}
	if got := all[1].ContextMap()["err"]; got != "boom" {
		t.Fatalf("error field = %v", got)
	}
	if all[2].Level != zapcore.ErrorLevel || len(all[2].Context) != 0 {
		t.Fatalf("entry 2 = %+v", all[2])
	}
}
