package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/regioncache"
)

func TestLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("ready", regioncache.Fields{"region": "users"})
	l.Warn("lost", regioncache.Fields{"err": errors.New("boom"), "key": "k"})

	if len(hook.Entries) != 2 {
		t.Fatalf("got %d entries", len(hook.Entries))
	}
	first := hook.Entries[0]
	if first.Level != logrus.InfoLevel || first.Data["region"] != "users" || first.Data["component"] != "regioncache" {
		t.Fatalf("entry 0 = %+v", first.Data)
	}
	last := hook.LastEntry()
	if last.Level != logrus.WarnLevel || last.Data["key"] != "k" {
		t.Fatalf("entry 1 = %+v", last.Data)
	}
	if err, ok := last.Data[logrus.ErrorKey].(error); !ok || err.Error() != "boom" {
		t.Fatalf("error field = %v", last.Data[logrus.ErrorKey])
	}
}
