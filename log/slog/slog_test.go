package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/regioncache"
)

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("hidden", regioncache.Fields{"key": "k"})
	l.Info("cleared", regioncache.Fields{"to": int64(2), "region": "users", "from": int64(1)})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked: %s", out)
	}
	if !strings.Contains(out, "component=regioncache from=1 region=users to=2") {
		t.Fatalf("fields not sorted or missing: %s", out)
	}
}
