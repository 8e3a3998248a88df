package traced

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	pr "github.com/unkn0wn-root/regioncache/provider"
	"github.com/unkn0wn-root/regioncache/provider/ristretto"
)

func setup(t *testing.T) (*Provider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	inner, err := ristretto.New(ristretto.Config{MaxItems: 100})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close(context.Background()) })
	return New(inner, WithTracerProvider(tp), WithBackend("memory")), exporter
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSpansPerCall(t *testing.T) {
	ctx := context.Background()
	p, exporter := setup(t)

	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	_, _, err = p.Exec(ctx, pr.Guard{}, pr.GetOp("k"), pr.DelOp("k"))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "regioncache.Set", spans[0].Name)
	assert.Equal(t, "regioncache.Get", spans[1].Name)
	assert.Equal(t, "regioncache.Exec", spans[2].Name)

	hit, ok := attr(spans[1].Attributes, "cache.hit")
	require.True(t, ok)
	assert.True(t, hit.AsBool())
	backend, _ := attr(spans[1].Attributes, "cache.backend")
	assert.Equal(t, "memory", backend.AsString())
	ops, _ := attr(spans[2].Attributes, "cache.ops")
	assert.Equal(t, []string{"get", "del"}, ops.AsStringSlice())
}

type down struct{ pr.Provider }

func (down) Incr(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("%w: connection refused", pr.ErrUnavailable)
}

func TestErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	p := New(down{}, WithTracerProvider(tp))

	_, err := p.Incr(context.Background(), "gen")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	v, ok := attr(spans[0].Attributes, "cache.unavailable")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}

func TestEvalSpan(t *testing.T) {
	p, exporter := setup(t)
	_, err := p.Eval(context.Background(), "return 1", []string{"k"})
	require.ErrorIs(t, err, pr.ErrScriptsUnsupported)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "regioncache.Eval", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	keys, ok := attr(spans[0].Attributes, "cache.keys")
	require.True(t, ok)
	assert.Equal(t, []string{"k"}, keys.AsStringSlice())
}
