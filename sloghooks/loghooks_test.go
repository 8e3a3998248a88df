package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/regioncache"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestRedactsKeys(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.LockFailed("users", "secret-key", 3, time.Second)
	out := buf.String()
	if strings.Contains(out, "secret-key") {
		t.Fatalf("key not redacted: %s", out)
	}
	if !strings.Contains(out, "regioncache.lock_failed") || !strings.Contains(out, "attempts=3") {
		t.Fatalf("unexpected line: %s", out)
	}

	h, buf = newBuffered(Options{Redact: func(k string) string { return "<" + k + ">" }})
	h.UnlockFailed("users", "k", true)
	if !strings.Contains(buf.String(), "key=<k>") {
		t.Fatalf("custom redactor not used: %s", buf.String())
	}
}

func TestSampling(t *testing.T) {
	h, buf := newBuffered(Options{SelfHealEvery: 3})
	for i := 0; i < 9; i++ {
		h.SelfHeal("users", "k", "corrupt")
	}
	if n := strings.Count(buf.String(), "regioncache.self_heal"); n != 3 {
		t.Fatalf("logged %d of 9, want 3", n)
	}
}

func TestQuietByDefault(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.Lookup("users", true)
	h.LockAcquired("users", "k", 1, 0)
	if buf.Len() != 0 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	h.ErrorSuppressed("users", regioncache.MethodGet, errors.New("down"))
	if !strings.Contains(buf.String(), "method=get") {
		t.Fatalf("missing method: %s", buf.String())
	}

	var nilLogger Hooks
	nilLogger.GenerationRestored("users", 3) // must not panic
}
