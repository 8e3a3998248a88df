package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/regioncache"
)

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden", regioncache.Fields{"key": "k"})
	l.Warn("unlock failed", regioncache.Fields{"region": "users", "err": errors.New("boom")})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["message"] != "unlock failed" {
		t.Fatalf("line = %v", line)
	}
	if line["region"] != "users" || line["err"] != "boom" || line["component"] != "regioncache" {
		t.Fatalf("fields = %v", line)
	}
}
