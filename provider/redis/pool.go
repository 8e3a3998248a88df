package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Pool hands out one Redis provider per logical database, all built from the
// same base options. Use it as the database selector when regions live in
// different databases of one server.
type Pool struct {
	base goredis.Options

	mu     sync.Mutex
	dbs    map[int]*Redis
	closed bool
}

func NewPool(base *goredis.Options) (*Pool, error) {
	if base == nil {
		return nil, errors.New("redis provider: nil base options")
	}
	return &Pool{base: *base, dbs: make(map[int]*Redis)}, nil
}

// Select returns the provider for db, dialing lazily on first use.
func (p *Pool) Select(db int) (*Redis, error) {
	if db < 0 {
		return nil, fmt.Errorf("redis provider: invalid database %d", db)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, goredis.ErrClosed
	}
	if r, ok := p.dbs[db]; ok {
		return r, nil
	}
	opts := p.base
	opts.DB = db
	r, err := New(Config{Client: goredis.NewClient(&opts), CloseClient: true})
	if err != nil {
		return nil, err
	}
	p.dbs[db] = r
	return r, nil
}

// Close closes every client created by Select.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for db, r := range p.dbs {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("db %d: %w", db, err))
		}
		delete(p.dbs, db)
	}
	return errors.Join(errs...)
}
