// Package traced wraps a Provider with OpenTelemetry client spans.
package traced

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

const tracerName = "github.com/unkn0wn-root/regioncache/provider/traced"

type Option func(*Provider)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Provider) { p.tracer = tp.Tracer(tracerName) }
}

// WithBackend sets the cache.backend attribute. Default "redis".
func WithBackend(name string) Option {
	return func(p *Provider) { p.backend = name }
}

type Provider struct {
	inner   pr.Provider
	tracer  trace.Tracer
	backend string
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scripter = (*Provider)(nil)
)

func New(inner pr.Provider, opts ...Option) *Provider {
	p := &Provider{inner: inner, tracer: otel.Tracer(tracerName), backend: "redis"}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("cache.backend", p.backend))
	return p.tracer.Start(ctx, "regioncache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, pr.ErrUnavailable) {
			span.SetAttributes(attribute.Bool("cache.unavailable", true))
		}
	}
	span.End()
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := p.start(ctx, "Get", attribute.String("cache.key", key))
	b, ok, err := p.inner.Get(ctx, key)
	span.SetAttributes(attribute.Bool("cache.hit", ok))
	end(span, err)
	return b, ok, err
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := p.start(ctx, "Set",
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(value)),
		attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
	)
	err := p.inner.Set(ctx, key, value, ttl)
	end(span, err)
	return err
}

func (p *Provider) Del(ctx context.Context, keys ...string) error {
	ctx, span := p.start(ctx, "Del", attribute.StringSlice("cache.keys", keys))
	err := p.inner.Del(ctx, keys...)
	end(span, err)
	return err
}

func (p *Provider) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := p.start(ctx, "Incr", attribute.String("cache.key", key))
	n, err := p.inner.Incr(ctx, key)
	end(span, err)
	return n, err
}

func (p *Provider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, span := p.start(ctx, "SetNX", attribute.String("cache.key", key))
	ok, err := p.inner.SetNX(ctx, key, value, ttl)
	span.SetAttributes(attribute.Bool("cache.stored", ok))
	end(span, err)
	return ok, err
}

func (p *Provider) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, span := p.start(ctx, "TTL", attribute.String("cache.key", key))
	d, ok, err := p.inner.TTL(ctx, key)
	end(span, err)
	return d, ok, err
}

func (p *Provider) Exec(ctx context.Context, guard pr.Guard, ops ...pr.Op) ([]pr.Result, bool, error) {
	kinds := make([]string, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind.String()
	}
	ctx, span := p.start(ctx, "Exec",
		attribute.String("cache.guard_key", guard.Key),
		attribute.StringSlice("cache.ops", kinds),
	)
	res, ok, err := p.inner.Exec(ctx, guard, ops...)
	span.SetAttributes(attribute.Bool("cache.committed", ok))
	end(span, err)
	return res, ok, err
}

func (p *Provider) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, span := p.start(ctx, "CompareAndDelete", attribute.String("cache.key", key))
	ok, err := p.inner.CompareAndDelete(ctx, key, value)
	span.SetAttributes(attribute.Bool("cache.deleted", ok))
	end(span, err)
	return ok, err
}

func (p *Provider) Touch(ctx context.Context, key string, expiration, threshold time.Duration) (bool, error) {
	ctx, span := p.start(ctx, "Touch", attribute.String("cache.key", key))
	ok, err := p.inner.Touch(ctx, key, expiration, threshold)
	span.SetAttributes(attribute.Bool("cache.reset", ok))
	end(span, err)
	return ok, err
}

func (p *Provider) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	ctx, span := p.start(ctx, "Eval", attribute.StringSlice("cache.keys", keys))
	v, err := pr.Eval(ctx, p.inner, script, keys, args...)
	end(span, err)
	return v, err
}

func (p *Provider) Close(ctx context.Context) error { return p.inner.Close(ctx) }
