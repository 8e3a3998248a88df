// Package ristretto is an in-process Provider backed by dgraph-io/ristretto.
//
// It serves single-replica deployments and tests. Ristretto applies writes
// asynchronously, so every mutation is followed by Wait; a provider-wide
// mutex makes compound operations (SetNX, Exec, CompareAndDelete, Touch)
// atomic with respect to each other.
//
// Ristretto is a bounded cache, not a store. Once MaxItems is reached its
// admission policy may drop any key, including a held lock or a region
// generation counter. A dropped lock can be acquired again by a second
// caller while the first still believes it holds it, and a dropped
// generation restarts from the value the next caller remembers. Size
// MaxItems well above the working set, and do not rely on Lock for mutual
// exclusion when the cache runs near capacity.
package ristretto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

var (
	ErrRejected  = errors.New("ristretto provider: write rejected")
	ErrWrongType = errors.New("ristretto provider: wrong value type")
	ErrClosed    = errors.New("ristretto provider: closed")
)

type Provider struct {
	mu     sync.Mutex
	c      *rc.Cache
	closed bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64 // 0 => 10x MaxItems
	MaxItems    int64 // 0 => 1e6; each entry costs 1
	BufferItems int64 // 0 => 64
	Metrics     bool
}

type set map[string]struct{}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters < 0 || cfg.MaxItems < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto provider: invalid config")
	}
	maxItems := cfg.MaxItems
	if maxItems == 0 {
		maxItems = 1_000_000
	}
	counters := cfg.NumCounters
	if counters == 0 {
		counters = maxItems * 10
	}
	buffer := cfg.BufferItems
	if buffer == 0 {
		buffer = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        counters,
		MaxCost:            maxItems,
		BufferItems:        buffer,
		Metrics:            cfg.Metrics,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrClosed
	}
	return p.getBytes(key)
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.put(key, clone(value), ttl)
}

func (p *Provider) Del(_ context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	for _, k := range keys {
		p.c.Del(k)
	}
	return nil
}

func (p *Provider) Incr(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.incr(key)
}

func (p *Provider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrClosed
	}
	if _, ok := p.c.Get(key); ok {
		return false, nil
	}
	if err := p.put(key, clone(value), ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, false, ErrClosed
	}
	d, ok := p.c.GetTTL(key)
	return d, ok, nil
}

func (p *Provider) Exec(_ context.Context, guard pr.Guard, ops ...pr.Op) ([]pr.Result, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrClosed
	}
	if !guard.IsZero() {
		cur, ok, err := p.getBytes(guard.Key)
		if err != nil {
			return nil, false, err
		}
		if !ok || !bytes.Equal(cur, guard.Value) {
			return nil, false, nil
		}
	}
	out := make([]pr.Result, len(ops))
	for i, op := range ops {
		r, err := p.apply(op)
		if err != nil {
			// Ops already applied stay applied, as with a failing command inside MULTI.
			return nil, false, fmt.Errorf("ristretto provider: op %d (%s): %w", i, op.Kind, err)
		}
		out[i] = r
	}
	return out, true, nil
}

func (p *Provider) CompareAndDelete(_ context.Context, key string, value []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrClosed
	}
	cur, ok, err := p.getBytes(key)
	if err != nil || !ok || !bytes.Equal(cur, value) {
		return false, err
	}
	p.c.Del(key)
	return true, nil
}

func (p *Provider) Touch(_ context.Context, key string, expiration, threshold time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrClosed
	}
	left, ok := p.c.GetTTL(key)
	if !ok || left <= 0 || left >= threshold {
		return false, nil
	}
	v, ok := p.c.Get(key)
	if !ok {
		return false, nil
	}
	if err := p.put(key, v, expiration); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func (p *Provider) apply(op pr.Op) (pr.Result, error) {
	switch op.Kind {
	case pr.OpGet:
		b, ok, err := p.getBytes(op.Key)
		return pr.Result{Value: b, Found: ok}, err
	case pr.OpSet:
		return pr.Result{}, p.put(op.Key, clone(op.Value), op.TTL)
	case pr.OpDel:
		if _, ok := p.c.Get(op.Key); !ok {
			return pr.Result{}, nil
		}
		p.c.Del(op.Key)
		return pr.Result{Int: 1}, nil
	case pr.OpIncr:
		n, err := p.incr(op.Key)
		return pr.Result{Int: n}, err
	case pr.OpAddMember, pr.OpRemoveMember:
		return p.member(op)
	case pr.OpExpire:
		v, ok := p.c.Get(op.Key)
		if !ok {
			return pr.Result{}, nil
		}
		return pr.Result{Int: 1}, p.put(op.Key, v, op.TTL)
	default:
		return pr.Result{}, fmt.Errorf("unsupported op %d", op.Kind)
	}
}

func (p *Provider) member(op pr.Op) (pr.Result, error) {
	var s set
	ttl := time.Duration(0)
	if v, ok := p.c.Get(op.Key); ok {
		cur, isSet := v.(set)
		if !isSet {
			return pr.Result{}, ErrWrongType
		}
		if d, ok := p.c.GetTTL(op.Key); ok {
			ttl = d
		}
		s = make(set, len(cur)+1)
		for m := range cur {
			s[m] = struct{}{}
		}
	} else {
		s = make(set, 1)
	}
	_, had := s[op.Member]
	if op.Kind == pr.OpAddMember {
		if had {
			return pr.Result{}, nil
		}
		s[op.Member] = struct{}{}
		return pr.Result{Int: 1}, p.put(op.Key, s, ttl)
	}
	if !had {
		return pr.Result{}, nil
	}
	delete(s, op.Member)
	if len(s) == 0 {
		p.c.Del(op.Key)
		return pr.Result{Int: 1}, nil
	}
	return pr.Result{Int: 1}, p.put(op.Key, s, ttl)
}

func (p *Provider) incr(key string) (int64, error) {
	var n int64
	ttl := time.Duration(0)
	if b, ok, err := p.getBytes(key); err != nil {
		return 0, err
	} else if ok {
		v, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("ristretto provider: %q is not an integer", key)
		}
		n = v
		if d, ok := p.c.GetTTL(key); ok {
			ttl = d
		}
	}
	n++
	if err := p.put(key, []byte(strconv.FormatInt(n, 10)), ttl); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) getBytes(key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		return nil, false, ErrWrongType
	}
	return clone(b), true, nil
}

// put must be called with p.mu held.
func (p *Provider) put(key string, v any, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, v, 1, ttl) {
		return ErrRejected
	}
	p.c.Wait()
	if _, ok := p.c.Get(key); !ok {
		return ErrRejected // dropped by admission policy
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
