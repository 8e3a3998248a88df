// Package breaker wraps a Provider with a circuit breaker so a dead store
// fails fast instead of costing a dial timeout on every cache call.
//
// Only failures marked provider.ErrUnavailable count against the breaker.
// While open, calls return an error wrapping provider.ErrUnavailable and
// gobreaker.ErrOpenState, which the cache's default error handler swallows.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

type Config struct {
	Name string
	// ConsecutiveFailures trips the breaker. 0 => 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing. 0 => 5s.
	OpenTimeout time.Duration
	// HalfOpenRequests allowed while probing. 0 => 1.
	HalfOpenRequests uint32
	// OnStateChange is optional.
	OnStateChange func(name string, from, to gobreaker.State)
}

type Provider struct {
	inner pr.Provider
	cb    *gobreaker.CircuitBreaker
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scripter = (*Provider)(nil)
)

func New(inner pr.Provider, cfg Config) (*Provider, error) {
	if inner == nil {
		return nil, errors.New("breaker: nil provider")
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "regioncache"
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, pr.ErrUnavailable)
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &Provider{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// State reports the current breaker state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		b  []byte
		ok bool
	)
	err := p.run(func() (err error) {
		b, ok, err = p.inner.Get(ctx, key)
		return err
	})
	return b, ok, err
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.run(func() error { return p.inner.Set(ctx, key, value, ttl) })
}

func (p *Provider) Del(ctx context.Context, keys ...string) error {
	return p.run(func() error { return p.inner.Del(ctx, keys...) })
}

func (p *Provider) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := p.run(func() (err error) {
		n, err = p.inner.Incr(ctx, key)
		return err
	})
	return n, err
}

func (p *Provider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var ok bool
	err := p.run(func() (err error) {
		ok, err = p.inner.SetNX(ctx, key, value, ttl)
		return err
	})
	return ok, err
}

func (p *Provider) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	var (
		d  time.Duration
		ok bool
	)
	err := p.run(func() (err error) {
		d, ok, err = p.inner.TTL(ctx, key)
		return err
	})
	return d, ok, err
}

func (p *Provider) Exec(ctx context.Context, guard pr.Guard, ops ...pr.Op) ([]pr.Result, bool, error) {
	var (
		res []pr.Result
		ok  bool
	)
	err := p.run(func() (err error) {
		res, ok, err = p.inner.Exec(ctx, guard, ops...)
		return err
	})
	return res, ok, err
}

func (p *Provider) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	var ok bool
	err := p.run(func() (err error) {
		ok, err = p.inner.CompareAndDelete(ctx, key, value)
		return err
	})
	return ok, err
}

func (p *Provider) Touch(ctx context.Context, key string, expiration, threshold time.Duration) (bool, error) {
	var ok bool
	err := p.run(func() (err error) {
		ok, err = p.inner.Touch(ctx, key, expiration, threshold)
		return err
	})
	return ok, err
}

// Eval forwards to the wrapped store. Stores without scripting fail with
// provider.ErrScriptsUnsupported, which does not count against the breaker.
func (p *Provider) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	var v any
	err := p.run(func() (err error) {
		v, err = pr.Eval(ctx, p.inner, script, keys, args...)
		return err
	})
	return v, err
}

// Close bypasses the breaker.
func (p *Provider) Close(ctx context.Context) error { return p.inner.Close(ctx) }

func (p *Provider) run(fn func() error) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	return err
}
