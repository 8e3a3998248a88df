package regioncache

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/regioncache/retry"
)

type cache[V any] struct {
	opts    Options[V]
	enabled bool

	mu         sync.Mutex
	configured map[string]RegionConfig
	regions    map[string]*region[V]
	closed     bool
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("%w: codec is required", ErrInvalidConfig)
	}
	if opts.LockRegistrySize < 0 {
		return nil, fmt.Errorf("%w: lock registry size must not be negative", ErrInvalidConfig)
	}

	// defaults
	opts.KeyPrefix = coalesce(opts.KeyPrefix, DefaultKeyPrefix)
	opts.LockRegistrySize = coalesce(opts.LockRegistrySize, DefaultLockRegistrySize)
	opts.Logger = coalesce[Logger](opts.Logger, NopLogger{})
	opts.Hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	opts.LockRetry = coalesce[retry.Strategy](opts.LockRetry, retry.FullJitter{})
	opts.GenerationRetry = coalesce[retry.Strategy](opts.GenerationRetry, DefaultGenerationRetry())
	if opts.OnError == nil {
		opts.OnError = DefaultErrorHandler
	}
	if opts.OnLockFailed == nil {
		opts.OnLockFailed = DefaultLockFailedHandler
	}
	if opts.OnUnlockFailed == nil {
		opts.OnUnlockFailed = DefaultUnlockFailedHandler
	}
	if opts.TokenFactory == nil {
		opts.TokenFactory = UUIDTokens
	}

	c := &cache[V]{
		opts:       opts,
		enabled:    !opts.Disabled,
		configured: make(map[string]RegionConfig, len(opts.Regions)),
		regions:    make(map[string]*region[V], len(opts.Regions)),
	}

	// the template must be valid on its own
	tmpl := opts.DefaultRegion.withDefaults(RegionConfig{})
	tmpl.Name = "default"
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	for _, rc := range opts.Regions {
		if _, dup := c.configured[rc.Name]; dup {
			return nil, fmt.Errorf("%w: region %q configured twice", ErrInvalidConfig, rc.Name)
		}
		rc = rc.withDefaults(opts.DefaultRegion)
		if err := rc.Validate(); err != nil {
			return nil, err
		}
		c.configured[rc.Name] = rc
	}
	for _, rc := range opts.Regions {
		if _, err := c.region(rc.Name); err != nil {
			return nil, err
		}
	}

	opts.Logger.Debug("region cache ready", Fields{
		"prefix":  opts.KeyPrefix,
		"regions": len(opts.Regions),
		"enabled": c.enabled,
	})
	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Region(name string) (Region[V], error) {
	r, err := c.region(name)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *cache[V]) region(name string) (*region[V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if r, ok := c.regions[name]; ok {
		return r, nil
	}

	rc, ok := c.configured[name]
	if !ok {
		rc = c.opts.DefaultRegion.withDefaults(RegionConfig{})
		rc.Name = name
		if err := rc.Validate(); err != nil {
			return nil, err
		}
	}

	p := c.opts.Provider
	if c.opts.Database != nil {
		sel, err := c.opts.Database(rc)
		if err != nil {
			return nil, fmt.Errorf("regioncache: region %q: select database %d: %w", name, rc.Database, err)
		}
		if sel != nil {
			p = sel
		}
	}

	r := newRegion(c, rc, p)
	c.regions[name] = r
	return r, nil
}

func (c *cache[V]) Put(ctx context.Context, region, key string, value V) error {
	r, err := c.region(region)
	if err != nil {
		return err
	}
	return r.Put(ctx, key, value)
}

func (c *cache[V]) Get(ctx context.Context, region, key string) (V, bool, error) {
	r, err := c.region(region)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return r.Get(ctx, key)
}

func (c *cache[V]) Remove(ctx context.Context, region, key string) error {
	r, err := c.region(region)
	if err != nil {
		return err
	}
	return r.Remove(ctx, key)
}

func (c *cache[V]) Clear(ctx context.Context, region string) error {
	r, err := c.region(region)
	if err != nil {
		return err
	}
	return r.Clear(ctx)
}

func (c *cache[V]) Lock(ctx context.Context, region, key string) error {
	r, err := c.region(region)
	if err != nil {
		return err
	}
	return r.Lock(ctx, key)
}

func (c *cache[V]) Unlock(ctx context.Context, region, key string) error {
	r, err := c.region(region)
	if err != nil {
		return err
	}
	return r.Unlock(ctx, key)
}

// Close marks the cache closed and, with CloseProvider, closes Provider.
// Stores returned by Options.Database belong to the caller. Locks still held
// expire on their own.
func (c *cache[V]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.opts.CloseProvider {
		return c.opts.Provider.Close(ctx)
	}
	return nil
}
