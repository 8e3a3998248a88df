package promhooks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/regioncache"
	"github.com/unkn0wn-root/regioncache/codec"
	rp "github.com/unkn0wn-root/regioncache/provider/redis"
)

func TestCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "test")
	require.NoError(t, err)

	h.Lookup("users", true)
	h.Lookup("users", false)
	h.Lookup("users", false)
	h.GenerationAdvanced("users", 1, 7, "clear")
	h.SelfHeal("users", "k", "corrupt")
	h.LockFailed("users", "k", 3, 50*time.Millisecond)
	h.UnlockFailed("users", "k", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.lookups.WithLabelValues("users", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.lookups.WithLabelValues("users", "miss")))
	assert.Equal(t, 7.0, testutil.ToFloat64(h.generation.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.selfHeals.WithLabelValues("users", "corrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.unlockFails.WithLabelValues("users", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(h.lockWait))

	_, err = New(reg, "test")
	assert.Error(t, err, "registering twice must fail")
}

func TestWiredIntoCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	p, err := rp.New(rp.Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), CloseClient: true})
	require.NoError(t, err)

	h, err := New(prometheus.NewRegistry(), "")
	require.NoError(t, err)
	cc, err := regioncache.New[string](regioncache.Options[string]{
		Provider:      p,
		Codec:         codec.String{},
		Hooks:         h,
		CloseProvider: true,
	})
	require.NoError(t, err)
	defer cc.Close(ctx)

	require.NoError(t, cc.Put(ctx, "users", "k", "v"))
	_, ok, err := cc.Get(ctx, "users", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, cc.Clear(ctx, "users"))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.lookups.WithLabelValues("users", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.generation.WithLabelValues("users")))
}
